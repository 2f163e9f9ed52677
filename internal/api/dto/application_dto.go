package dto

import (
	"time"

	"github.com/kycdesk/intake-service/internal/domain"
)

// ApplicationEnvelope is the JSON carried in the multipart "data" field.
type ApplicationEnvelope struct {
	Region        domain.Region        `json:"region"`
	ApplicantType domain.ApplicantType `json:"applicantType"`
	FormKey       string               `json:"formKey"`
	FormData      domain.FormData      `json:"formData"`
}

// SubmitResponse is returned by create and update.
type SubmitResponse struct {
	ID             string    `json:"id"`
	EditUntil      time.Time `json:"editUntil"`
	EditWindowDays int       `json:"editWindowDays"`
}

// ApplicationResponse is the full record; the edit token is never exposed.
type ApplicationResponse struct {
	ID            string               `json:"id"`
	Region        domain.Region        `json:"region"`
	ApplicantType domain.ApplicantType `json:"applicantType"`
	FormKey       string               `json:"formKey"`
	FormData      domain.FormData      `json:"formData"`
	Files         []domain.FileRef     `json:"files"`
	EditUntil     time.Time            `json:"editUntil"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// NewApplicationResponse maps a record to its response.
func NewApplicationResponse(app *domain.Application) ApplicationResponse {
	files := app.Files
	if files == nil {
		files = []domain.FileRef{}
	}
	return ApplicationResponse{
		ID:            app.ID,
		Region:        app.Region,
		ApplicantType: app.ApplicantType,
		FormKey:       app.FormKey,
		FormData:      app.FormData,
		Files:         files,
		EditUntil:     app.EditUntil,
		CreatedAt:     app.CreatedAt,
		UpdatedAt:     app.UpdatedAt,
	}
}

// ApplicationRow is one line of the admin list.
type ApplicationRow struct {
	ID            string               `json:"id"`
	Region        domain.Region        `json:"region"`
	ApplicantType domain.ApplicantType `json:"applicantType"`
	FormKey       string               `json:"formKey"`
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	Phone         string               `json:"phone"`
	FileCount     int                  `json:"fileCount"`
	EditUntil     time.Time            `json:"editUntil"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// AdminListResponse wraps the admin list.
type AdminListResponse struct {
	Category domain.Category  `json:"category"`
	Count    int              `json:"count"`
	Rows     []ApplicationRow `json:"rows"`
}
