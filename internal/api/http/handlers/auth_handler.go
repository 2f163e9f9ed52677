package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kycdesk/intake-service/internal/api/dto"
	"github.com/kycdesk/intake-service/internal/auth"
	"github.com/kycdesk/intake-service/internal/service"
	apperrors "github.com/kycdesk/intake-service/pkg/util/errorutil"
)

// AuthHandler exposes the account endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Tel:      req.Tel,
	})
	if err != nil {
		return err
	}
	return c.JSON(authResponse(res))
}

// Signin handles POST /api/auth/signin.
func (h *AuthHandler) Signin(c *fiber.Ctx) error {
	var req dto.SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.Signin(c.UserContext(), req.Email, req.Password, req.Remember)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(res))
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.ErrUnauthorized
	}
	return c.JSON(fiber.Map{"user": dto.NewUserResponse(principal.User)})
}

// ForgotPassword handles POST /api/auth/forgot-password. The response does
// not reveal whether the email is registered.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(dto.OKResponse{OK: true})
}

func authResponse(res *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: dto.NewUserResponse(res.User)}
}
