package domain

import (
	"strings"
	"time"
)

// User is a registered account allowed to call the application API.
type User struct {
	ID                  string
	Name                string
	Email               string
	Tel                 string
	PasswordHash        string
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
