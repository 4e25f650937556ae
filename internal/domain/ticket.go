package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ParseTicketStatus normalizes a raw status value.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return status, true
	}
	return "", false
}

// IsTerminal reports whether the status counts as resolved work.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// ParseTicketPriority normalizes a raw priority value.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	priority := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	switch priority {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return priority, true
	}
	return "", false
}

// Ticket is the aggregate for support requests.
//
// ResolvedAt and ResolutionTimeHours are either both nil or both set, and are
// only set after the ticket moved into resolved/closed from an open state.
// Version is bumped on every write and guards full-row updates.
type Ticket struct {
	ID                  string
	Subject             string
	Description         string
	Status              TicketStatus
	Priority            TicketPriority
	CustomerID          string
	AssignedStaffID     *string
	CustomerRating      *int
	FirstResponseAt     *time.Time
	ResolvedAt          *time.Time
	ResolutionTimeHours *float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Version             int
}

// IsAssigned reports whether a staff member owns the ticket.
func (t Ticket) IsAssigned() bool {
	return t.AssignedStaffID != nil && *t.AssignedStaffID != ""
}
