package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
)

func TestReconciler_RepairsMissedEnrichment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	staffID := env.createUser(t, "quin", domain.RoleStaff)
	idleID := env.createUser(t, "rae", domain.RoleStaff)
	env.createUser(t, "cust", domain.RoleCustomer)
	env.seedAchievements(t, domain.Achievement{Key: domain.AchievementFirstResolution, Name: "First Resolution", PointsReward: 25})

	// Ticket and points written, but aggregates and achievements never ran.
	hours := 3.0
	resolvedAt := t0.Add(3 * time.Hour)
	require.NoError(t, env.repos.Tickets.Create(ctx, &domain.Ticket{
		Subject:             "lost event",
		Status:              domain.TicketStatusResolved,
		Priority:            domain.TicketPriorityMedium,
		CustomerID:          "cust",
		AssignedStaffID:     &staffID,
		ResolvedAt:          &resolvedAt,
		ResolutionTimeHours: &hours,
		CreatedAt:           t0,
	}))
	_, err := env.engine.Ledger.Award(ctx, staffID, hours)
	require.NoError(t, err)

	report, err := env.engine.Reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Staff)
	assert.Equal(t, 1, report.Unlocked)
	assert.Empty(t, report.Failures)

	p := env.profile(t, staffID)
	assert.InDelta(t, 3.0, p.AverageResolutionTimeHours, 1e-9)
	assert.Equal(t, 65, p.Points)
	assert.Equal(t, 0, env.profile(t, idleID).Points)

	report, err = env.engine.Reconciler.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Unlocked)
	assert.Equal(t, 65, env.profile(t, staffID).Points)
}
