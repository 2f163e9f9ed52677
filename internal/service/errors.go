package service

import (
	"net/http"

	apperrors "github.com/kycdesk/intake-service/pkg/util/errorutil"
)

// Errors returned by the application and auth services. Handlers pass them
// through unchanged; the error middleware renders code, message and status.
var (
	ErrInvalidClassification  = apperrors.NewDomainError("INVALID_CLASSIFICATION", "Invalid region/applicantType", http.StatusBadRequest, nil)
	ErrMissingField           = apperrors.NewDomainError("MISSING_FIELD", "Missing formKey or formData", http.StatusBadRequest, nil)
	ErrApplicationNotFound    = apperrors.NewDomainError("NOT_FOUND", "Application not found", http.StatusNotFound, nil)
	ErrEditWindowExpired      = apperrors.NewDomainError("EDIT_WINDOW_EXPIRED", "Edit window has expired", http.StatusForbidden, nil)
	ErrClassificationMismatch = apperrors.NewDomainError("CLASSIFICATION_MISMATCH", "region, applicantType and formKey cannot change", http.StatusBadRequest, nil)
	ErrFileTooLarge           = apperrors.NewDomainError("FILE_TOO_LARGE", "Uploaded file is too large", http.StatusRequestEntityTooLarge, nil)

	ErrEmailTaken            = apperrors.NewDomainError("EMAIL_TAKEN", "Email already registered", http.StatusConflict, nil)
	ErrWeakPassword          = apperrors.NewDomainError("WEAK_PASSWORD", "Password must be at least 8 characters", http.StatusBadRequest, nil)
	ErrInvalidCredentials    = apperrors.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized, nil)
	ErrUnauthorized          = apperrors.NewDomainError("UNAUTHORIZED", "Unauthorized", http.StatusUnauthorized, nil)
	ErrInvalidOrExpiredToken = apperrors.NewDomainError("INVALID_OR_EXPIRED_TOKEN", "Invalid or expired token", http.StatusBadRequest, nil)
)
