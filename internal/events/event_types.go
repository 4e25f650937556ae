package events

import (
	"time"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketSubmitted     EventType = "ticket_submitted"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventStaffReplied        EventType = "staff_replied"
	EventTicketResolved      EventType = "ticket_resolved"
	EventTicketReopened      EventType = "ticket_reopened"
	EventSurveySubmitted     EventType = "survey_submitted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role   domain.Role `json:"role"`
	UserID string      `json:"user_id"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketSubmittedPayload payload.
type TicketSubmittedPayload struct {
	Subject         string                `json:"subject"`
	Priority        domain.TicketPriority `json:"priority"`
	CustomerID      string                `json:"customer_id"`
	AssignedStaffID *string               `json:"assigned_staff_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Subject    string              `json:"subject"`
	CustomerID string              `json:"customer_id"`
	OldStatus  domain.TicketStatus `json:"old_status"`
	NewStatus  domain.TicketStatus `json:"new_status"`
}

// StaffRepliedPayload payload.
type StaffRepliedPayload struct {
	Subject     string `json:"subject"`
	CustomerID  string `json:"customer_id"`
	MessageID   string `json:"message_id"`
	BodyPreview string `json:"body_preview"`
}

// TicketResolvedPayload credits the assigned staff member for a resolution.
type TicketResolvedPayload struct {
	StaffID             string  `json:"staff_id"`
	ResolutionTimeHours float64 `json:"resolution_time_hours"`
}

// TicketReopenedPayload withdraws the credit of an earlier resolution.
type TicketReopenedPayload struct {
	StaffID                  string  `json:"staff_id"`
	PriorResolutionTimeHours float64 `json:"prior_resolution_time_hours"`
}

// SurveySubmittedPayload payload.
type SurveySubmittedPayload struct {
	StaffID string `json:"staff_id"`
	Rating  int    `json:"rating"`
}
