package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kycdesk/intake-service/internal/api/dto"
	"github.com/kycdesk/intake-service/internal/domain"
	"github.com/kycdesk/intake-service/internal/service"
	"github.com/kycdesk/intake-service/internal/storage"
	apperrors "github.com/kycdesk/intake-service/pkg/util/errorutil"
)

// dataField is the multipart field holding the JSON envelope.
const dataField = "data"

// ApplicationsHandler exposes the application intake endpoints.
type ApplicationsHandler struct {
	service *service.ApplicationService
}

// NewApplicationsHandler constructs handler.
func NewApplicationsHandler(applicationService *service.ApplicationService) *ApplicationsHandler {
	return &ApplicationsHandler{service: applicationService}
}

// Create handles POST /api/applications.
func (h *ApplicationsHandler) Create(c *fiber.Ctx) error {
	input, err := parseSubmission(c)
	if err != nil {
		return err
	}
	res, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(h.submitResponse(res))
}

// Get handles GET /api/applications/:id.
func (h *ApplicationsHandler) Get(c *fiber.Ctx) error {
	app, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewApplicationResponse(app))
}

// Update handles PUT /api/applications/:id.
func (h *ApplicationsHandler) Update(c *fiber.Ctx) error {
	input, err := parseSubmission(c)
	if err != nil {
		return err
	}
	res, err := h.service.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(h.submitResponse(res))
}

// ListByCategory handles GET /api/applications/admin/:category.
func (h *ApplicationsHandler) ListByCategory(c *fiber.Ctx) error {
	key := c.Params("category")
	rows, err := h.service.ListForCategory(c.UserContext(), key, parseIntQuery(c, "limit", 0))
	if err != nil {
		return err
	}

	category, _ := domain.ParseCategory(key)
	resp := dto.AdminListResponse{Category: category, Count: len(rows), Rows: make([]dto.ApplicationRow, 0, len(rows))}
	for _, r := range rows {
		resp.Rows = append(resp.Rows, dto.ApplicationRow{
			ID:            r.ID,
			Region:        r.Region,
			ApplicantType: r.ApplicantType,
			FormKey:       r.FormKey,
			Name:          r.Name,
			Email:         r.Email,
			Phone:         r.Phone,
			FileCount:     r.FileCount,
			EditUntil:     r.EditUntil,
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
		})
	}
	return c.JSON(resp)
}

func (h *ApplicationsHandler) submitResponse(res *service.SubmitResult) dto.SubmitResponse {
	return dto.SubmitResponse{ID: res.ID, EditUntil: res.EditUntil, EditWindowDays: h.service.EditWindowDays()}
}

// parseSubmission reads the envelope from the multipart "data" field and
// turns every file part into an upload. A plain JSON body is accepted as an
// envelope without files.
func parseSubmission(c *fiber.Ctx) (service.ApplicationInput, error) {
	var env dto.ApplicationEnvelope

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(c.Body(), &env); err != nil {
			return service.ApplicationInput{}, apperrors.NewValidationError("Invalid JSON body", nil)
		}
		return envelopeInput(env, nil), nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return service.ApplicationInput{}, apperrors.NewValidationError("Expected a multipart/form-data body", nil)
	}
	values := form.Value[dataField]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return service.ApplicationInput{}, apperrors.NewValidationError("Missing data field", nil)
	}
	if err := json.Unmarshal([]byte(values[0]), &env); err != nil {
		return service.ApplicationInput{}, apperrors.NewValidationError("Invalid JSON in data field", nil)
	}

	fields := fileFieldOrder(c.Body(), string(c.Request().Header.MultipartFormBoundary()))
	for field := range form.File {
		if !slices.Contains(fields, field) {
			fields = append(fields, field)
		}
	}

	var uploads []storage.Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			fh := fh
			uploads = append(uploads, storage.Upload{
				Field:       field,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}
	return envelopeInput(env, uploads), nil
}

// fileFieldOrder lists the file field names of a multipart body in the order
// their first part arrives. A field repeated later keeps its first position.
func fileFieldOrder(body []byte, boundary string) []string {
	if boundary == "" {
		return nil
	}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	seen := make(map[string]struct{})
	var fields []string
	for {
		part, err := mr.NextRawPart()
		if err != nil {
			return fields
		}
		name := part.FormName()
		if part.FileName() == "" || name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			fields = append(fields, name)
		}
	}
}

func envelopeInput(env dto.ApplicationEnvelope, uploads []storage.Upload) service.ApplicationInput {
	return service.ApplicationInput{
		Region:        env.Region,
		ApplicantType: env.ApplicantType,
		FormKey:       env.FormKey,
		FormData:      env.FormData,
		Uploads:       uploads,
	}
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}
