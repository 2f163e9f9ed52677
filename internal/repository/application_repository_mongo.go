package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kycdesk/intake-service/internal/domain"
)

// applicationDocument is the stored shape of an application. formData is
// kept as an ordered document so key order survives a round trip.
type applicationDocument struct {
	ID            string           `bson:"_id"`
	Region        string           `bson:"region"`
	ApplicantType string           `bson:"applicantType"`
	FormKey       string           `bson:"formKey"`
	FormData      bson.D           `bson:"formData"`
	Files         []domain.FileRef `bson:"files"`
	EditToken     string           `bson:"editToken"`
	EditUntil     time.Time        `bson:"editUntil"`
	CreatedAt     time.Time        `bson:"createdAt"`
	UpdatedAt     time.Time        `bson:"updatedAt"`
}

type mongoApplicationRepository struct {
	coll *mongo.Collection
}

// NewMongoApplicationRepository returns a repository over coll.
func NewMongoApplicationRepository(coll *mongo.Collection) ApplicationRepository {
	return &mongoApplicationRepository{coll: coll}
}

// EnsureApplicationIndexes creates the updatedAt index of every category
// collection in db.
func EnsureApplicationIndexes(ctx context.Context, db *mongo.Database) error {
	for _, c := range domain.Categories {
		_, err := db.Collection(c.Collection()).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "updatedAt", Value: -1}},
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", c.Collection(), err)
		}
	}
	return nil
}

func (r *mongoApplicationRepository) Insert(ctx context.Context, app *domain.Application) error {
	doc, err := toApplicationDocument(app)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, app.ID)
		}
		return err
	}
	return nil
}

func (r *mongoApplicationRepository) FindByID(ctx context.Context, id string) (*domain.Application, error) {
	var doc applicationDocument
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (r *mongoApplicationRepository) Update(ctx context.Context, app *domain.Application) error {
	formData, err := formDataToBSON(app.FormData)
	if err != nil {
		return err
	}
	files := app.Files
	if files == nil {
		files = []domain.FileRef{}
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "formData", Value: formData},
		{Key: "files", Value: files},
		{Key: "updatedAt", Value: app.UpdatedAt},
	}}}
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: app.ID}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoApplicationRepository) ListRecent(ctx context.Context, limit int) ([]domain.Application, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []applicationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	apps := make([]domain.Application, 0, len(docs))
	for _, doc := range docs {
		app, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

func toApplicationDocument(app *domain.Application) (*applicationDocument, error) {
	formData, err := formDataToBSON(app.FormData)
	if err != nil {
		return nil, err
	}
	files := app.Files
	if files == nil {
		files = []domain.FileRef{}
	}
	return &applicationDocument{
		ID:            app.ID,
		Region:        string(app.Region),
		ApplicantType: string(app.ApplicantType),
		FormKey:       app.FormKey,
		FormData:      formData,
		Files:         files,
		EditToken:     app.EditToken,
		EditUntil:     app.EditUntil,
		CreatedAt:     app.CreatedAt,
		UpdatedAt:     app.UpdatedAt,
	}, nil
}

func (d applicationDocument) toDomain() (*domain.Application, error) {
	formData, err := bson.MarshalExtJSON(d.FormData, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode formData of %s: %w", d.ID, err)
	}
	return &domain.Application{
		ID:            d.ID,
		Region:        domain.Region(d.Region),
		ApplicantType: domain.ApplicantType(d.ApplicantType),
		FormKey:       d.FormKey,
		FormData:      domain.FormData(formData),
		Files:         d.Files,
		EditToken:     d.EditToken,
		EditUntil:     d.EditUntil,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func formDataToBSON(data domain.FormData) (bson.D, error) {
	var doc bson.D
	if len(data) == 0 {
		return bson.D{}, nil
	}
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("decode formData: %w", err)
	}
	return doc, nil
}
