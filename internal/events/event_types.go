package events

import (
	"time"

	"github.com/kycdesk/intake-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventApplicationSubmitted   EventType = "application.submitted"
	EventApplicationUpdated     EventType = "application.updated"
	EventPasswordResetRequested EventType = "auth.password_reset_requested"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ApplicationPayload carries the stored record after a create or update.
type ApplicationPayload struct {
	Category    domain.Category    `json:"category"`
	Application domain.Application `json:"application"`
}

// Action is the label used for the event in emails and PDFs.
func (t EventType) Action() string {
	switch t {
	case EventApplicationSubmitted:
		return "Submitted"
	case EventApplicationUpdated:
		return "Updated"
	}
	return string(t)
}

// PasswordResetPayload carries the raw reset link for the account owner.
type PasswordResetPayload struct {
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	ResetURL  string        `json:"-"`
	ExpiresIn time.Duration `json:"expires_in"`
}
