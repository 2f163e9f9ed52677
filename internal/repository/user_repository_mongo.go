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

type userDocument struct {
	ID                  string     `bson:"_id"`
	Name                string     `bson:"name"`
	Email               string     `bson:"email"`
	Tel                 string     `bson:"tel"`
	PasswordHash        string     `bson:"passwordHash"`
	ResetTokenHash      *string    `bson:"resetTokenHash,omitempty"`
	ResetTokenExpiresAt *time.Time `bson:"resetTokenExpiresAt,omitempty"`
	CreatedAt           time.Time  `bson:"createdAt"`
	UpdatedAt           time.Time  `bson:"updatedAt"`
}

type mongoUserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoUserRepository returns a repository over the users collection of db.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection("users"), now: time.Now}
}

// EnsureUserIndexes creates the unique email index of the users collection.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resetTokenHash", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	doc := userDocument{
		ID:           user.ID,
		Name:         user.Name,
		Email:        domain.NormalizeEmail(user.Email),
		Tel:          user.Tel,
		PasswordHash: user.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, doc.Email)
		}
		return err
	}
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: domain.NormalizeEmail(email)}})
}

func (r *mongoUserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return r.updateOne(ctx, userID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "resetTokenHash", Value: tokenHash},
		{Key: "resetTokenExpiresAt", Value: expiresAt},
		{Key: "updatedAt", Value: r.now().UTC()},
	}}})
}

func (r *mongoUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	return r.findOne(ctx, bson.D{
		{Key: "resetTokenHash", Value: tokenHash},
		{Key: "resetTokenExpiresAt", Value: bson.D{{Key: "$gt", Value: now}}},
	})
}

func (r *mongoUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.updateOne(ctx, userID, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "passwordHash", Value: passwordHash},
			{Key: "updatedAt", Value: r.now().UTC()},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "resetTokenHash", Value: ""},
			{Key: "resetTokenExpiresAt", Value: ""},
		}},
	})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &domain.User{
		ID:                  doc.ID,
		Name:                doc.Name,
		Email:               doc.Email,
		Tel:                 doc.Tel,
		PasswordHash:        doc.PasswordHash,
		ResetTokenHash:      doc.ResetTokenHash,
		ResetTokenExpiresAt: doc.ResetTokenExpiresAt,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}, nil
}

func (r *mongoUserRepository) updateOne(ctx context.Context, userID string, update bson.D) error {
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID}}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
