package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

var created = time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

func assignedTicket(status TicketStatus) Ticket {
	staff := "staff-1"
	return Ticket{
		ID:              "t-1",
		Status:          status,
		Priority:        TicketPriorityMedium,
		AssignedStaffID: &staff,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func resolutionPairHolds(t *testing.T, tk Ticket) {
	t.Helper()
	assert.Equal(t, tk.ResolvedAt == nil, tk.ResolutionTimeHours == nil, "resolution fields must be set together")
	if tk.ResolvedAt != nil {
		assert.True(t, tk.Status.IsTerminal())
	}
}

func TestApplyStatusChange_Transitions(t *testing.T) {
	statuses := []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed}
	now := created.Add(2 * time.Hour)

	for _, from := range statuses {
		for _, to := range statuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				start := assignedTicket(from)
				if from.IsTerminal() {
					hours := 1.5
					at := created.Add(90 * time.Minute)
					start.ResolvedAt = &at
					start.ResolutionTimeHours = &hours
				}

				got, tr, err := ApplyStatusChange(start, to, "actor", now)
				require.NoError(t, err)
				assert.Equal(t, to, got.Status)
				resolutionPairHolds(t, got)

				switch {
				case to.IsTerminal() && !from.IsTerminal():
					assert.Equal(t, TransitionResolved, tr.Kind)
					assert.InDelta(t, 2.0, tr.ResolutionTimeHours, 1e-9)
					assert.Equal(t, now, *got.ResolvedAt)
				case !to.IsTerminal() && from.IsTerminal():
					assert.Equal(t, TransitionReopened, tr.Kind)
					assert.InDelta(t, 1.5, tr.ResolutionTimeHours, 1e-9)
					assert.Nil(t, got.ResolvedAt)
				default:
					assert.Equal(t, TransitionNone, tr.Kind)
					assert.Equal(t, start.ResolvedAt, got.ResolvedAt)
				}

				if from == to {
					assert.False(t, tr.Changed())
					assert.Equal(t, created, got.UpdatedAt)
				} else {
					assert.True(t, tr.Changed())
					assert.Equal(t, now, got.UpdatedAt)
				}
			})
		}
	}
}

func TestApplyStatusChange_ResolveReopenResolve(t *testing.T) {
	tk := assignedTicket(TicketStatusOpen)

	tk, tr, err := ApplyStatusChange(tk, TicketStatusResolved, "a", created.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, TransitionResolved, tr.Kind)
	assert.Equal(t, "staff-1", *tr.StaffID)

	tk, tr, err = ApplyStatusChange(tk, TicketStatusOpen, "a", created.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, TransitionReopened, tr.Kind)
	assert.InDelta(t, 2.0, tr.ResolutionTimeHours, 1e-9)

	tk, tr, err = ApplyStatusChange(tk, TicketStatusClosed, "a", created.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, TransitionResolved, tr.Kind)
	assert.InDelta(t, 0.5, *tk.ResolutionTimeHours, 1e-9)
}

func TestApplyStatusChange_ClockSkewClampsToZero(t *testing.T) {
	tk, tr, err := ApplyStatusChange(assignedTicket(TicketStatusOpen), TicketStatusResolved, "a", created.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.ResolutionTimeHours)
	assert.Equal(t, 0.0, *tk.ResolutionTimeHours)
}

func TestApplyStatusChange_UnknownStatus(t *testing.T) {
	start := assignedTicket(TicketStatusInProgress)
	got, tr, err := ApplyStatusChange(start, TicketStatus("escalated"), "a", created)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Equal(t, start, got)
	assert.Equal(t, TransitionNone, tr.Kind)
}

func TestApplyStatusChange_DoesNotMutateInput(t *testing.T) {
	start := assignedTicket(TicketStatusOpen)
	_, _, err := ApplyStatusChange(start, TicketStatusResolved, "a", created.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, TicketStatusOpen, start.Status)
	assert.Nil(t, start.ResolvedAt)
}

func TestParseTicketStatusAndPriority(t *testing.T) {
	s, ok := ParseTicketStatus(" In_Progress ")
	assert.True(t, ok)
	assert.Equal(t, TicketStatusInProgress, s)
	_, ok = ParseTicketStatus("pending")
	assert.False(t, ok)

	p, ok := ParseTicketPriority("URGENT")
	assert.True(t, ok)
	assert.Equal(t, TicketPriorityUrgent, p)
	_, ok = ParseTicketPriority("")
	assert.False(t, ok)
}
