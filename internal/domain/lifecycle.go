package domain

import (
	"time"

	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// TransitionKind classifies the side effects a status change triggers.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionResolved
	TransitionReopened
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionResolved:
		return "resolved"
	case TransitionReopened:
		return "reopened"
	default:
		return "none"
	}
}

// Transition describes an applied status change.
//
// For a resolution ResolutionTimeHours is the freshly computed duration; for a
// reopen it is the value held by the ticket before it was cleared.
type Transition struct {
	Kind                TransitionKind
	From                TicketStatus
	To                  TicketStatus
	StaffID             *string
	ActingStaffID       string
	ResolutionTimeHours float64
	At                  time.Time
}

// Changed reports whether the status value moved.
func (tr Transition) Changed() bool {
	return tr.From != tr.To
}

// ApplyStatusChange moves a ticket to the requested status and derives its
// resolution timing. Every known status is reachable from every other; only
// entering or leaving the resolved/closed class produces a resolution or
// reopen transition. The input ticket is not modified.
func ApplyStatusChange(ticket Ticket, requested TicketStatus, actingStaffID string, now time.Time) (Ticket, Transition, error) {
	next, ok := ParseTicketStatus(string(requested))
	if !ok {
		return ticket, Transition{}, apperrors.NewInvalidTransition(string(ticket.Status), string(requested))
	}

	prev := ticket.Status
	tr := Transition{
		Kind:          TransitionNone,
		From:          prev,
		To:            next,
		StaffID:       ticket.AssignedStaffID,
		ActingStaffID: actingStaffID,
		At:            now,
	}

	switch {
	case next.IsTerminal() && !prev.IsTerminal():
		hours := now.Sub(ticket.CreatedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		resolvedAt := now
		ticket.ResolvedAt = &resolvedAt
		ticket.ResolutionTimeHours = &hours
		tr.Kind = TransitionResolved
		tr.ResolutionTimeHours = hours
	case !next.IsTerminal() && prev.IsTerminal():
		if ticket.ResolutionTimeHours != nil {
			tr.ResolutionTimeHours = *ticket.ResolutionTimeHours
		}
		ticket.ResolvedAt = nil
		ticket.ResolutionTimeHours = nil
		tr.Kind = TransitionReopened
	}

	ticket.Status = next
	if tr.Changed() {
		ticket.UpdatedAt = now
	}
	return ticket, tr, nil
}
