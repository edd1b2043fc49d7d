package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/umkm-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered  EventType = "user_registered"
	EventUserLoggedIn    EventType = "user_logged_in"
	EventUserLoginFailed EventType = "user_login_failed"
	EventUserLoggedOut   EventType = "user_logged_out"
	EventAccountCreated  EventType = "account_created"
)

// AllEventTypes lists every event the Auth API emits.
func AllEventTypes() []EventType {
	return []EventType{
		EventUserRegistered,
		EventUserLoggedIn,
		EventUserLoginFailed,
		EventUserLoggedOut,
		EventAccountCreated,
	}
}

// Actor identifies who triggered an event.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	IP     string      `json:"ip,omitempty"`
}

// Event represents an auth event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SubjectID string    `json:"subject_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, subjectID string, actor Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// AccountPayload describes the account an event concerns.
type AccountPayload struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// LoggedOutPayload payload.
type LoggedOutPayload struct {
	TokenID string `json:"token_id"`
}
