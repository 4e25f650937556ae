package domain

import "time"

// TicketHistoryChangeType enumerates audited ticket changes.
type TicketHistoryChangeType string

const (
	TicketHistoryStatus   TicketHistoryChangeType = "status"
	TicketHistoryPriority TicketHistoryChangeType = "priority"
	TicketHistoryAssignee TicketHistoryChangeType = "assignee"
	TicketHistoryRating   TicketHistoryChangeType = "rating"
)

// TicketHistory records a single change to a ticket.
type TicketHistory struct {
	ID          string
	TicketID    string
	ChangedByID *string
	ChangeType  TicketHistoryChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
