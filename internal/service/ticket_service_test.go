package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-labs/support-rewards/internal/auth"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/events"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	"github.com/helpdesk-labs/support-rewards/internal/service"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

func status(s domain.TicketStatus) *string {
	v := string(s)
	return &v
}

func openTicket(t *testing.T, env *testEnv, customerID, staffID string) *domain.Ticket {
	t.Helper()
	input := service.TicketCreateInput{Subject: "Printer on fire", Description: "Third floor", Priority: "high"}
	if staffID != "" {
		input.AssignedStaffID = &staffID
	}
	ticket, err := env.engine.Tickets.CreateTicket(context.Background(), auth.Customer(customerID), input)
	require.NoError(t, err)
	return ticket
}

func TestTicketService_ResolveAwardsPoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, staffID)

	env.clock.Set(t0.Add(2 * time.Hour))
	updated, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{
		Status: status(domain.TicketStatusResolved),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	require.NotNil(t, updated.ResolutionTimeHours)
	assert.InDelta(t, 2.0, *updated.ResolutionTimeHours, 1e-9)

	p := env.profile(t, staffID)
	assert.Equal(t, 40, p.Points)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 1, p.TicketsResolved)
	assert.InDelta(t, 2.0, p.AverageResolutionTimeHours, 1e-9)
}

func TestTicketService_ReopenAndReresolve(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	actor := auth.Staff(staffID)
	ticket := openTicket(t, env, customerID, staffID)

	env.clock.Set(t0.Add(2 * time.Hour))
	_, err := env.engine.Tickets.UpdateTicket(ctx, actor, ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)
	assert.Equal(t, 40, env.profile(t, staffID).Points)

	reopened, err := env.engine.Tickets.UpdateTicket(ctx, actor, ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusInProgress)})
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Nil(t, reopened.ResolutionTimeHours)

	p := env.profile(t, staffID)
	assert.Equal(t, 0, p.Points)
	assert.Equal(t, 0, p.TicketsResolved)

	// Resolution time is measured from creation.
	env.clock.Set(t0.Add(30 * time.Minute))
	_, err = env.engine.Tickets.UpdateTicket(ctx, actor, ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusClosed)})
	require.NoError(t, err)

	p = env.profile(t, staffID)
	assert.Equal(t, 50, p.Points)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 1, p.TicketsResolved)
	assert.InDelta(t, 0.5, p.AverageResolutionTimeHours, 1e-9)
}

func TestTicketService_TerminalToTerminalIsNotAResolution(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, staffID)

	env.clock.Set(t0.Add(90 * time.Minute))
	resolved, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)

	env.clock.Set(t0.Add(48 * time.Hour))
	closed, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusClosed)})
	require.NoError(t, err)

	assert.Equal(t, *resolved.ResolvedAt, *closed.ResolvedAt)
	assert.Equal(t, *resolved.ResolutionTimeHours, *closed.ResolutionTimeHours)
	assert.Equal(t, 40, env.profile(t, staffID).Points)
}

func TestTicketService_UnassignedResolutionIsANoOp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, "")

	env.clock.Set(t0.Add(time.Hour))
	updated, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)
	assert.NotNil(t, updated.ResolvedAt)

	p := env.profile(t, staffID)
	assert.Equal(t, 0, p.Points)
	assert.Equal(t, 0, p.TicketsResolved)
}

func TestTicketService_UnknownStatusIsInvalidTransition(t *testing.T) {
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, staffID)

	bogus := "archived"
	_, err := env.engine.Tickets.UpdateTicket(context.Background(), auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: &bogus})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	stored, err := env.repos.Tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestTicketService_UpdateValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, "")

	t.Run("customers cannot update", func(t *testing.T) {
		_, err := env.engine.Tickets.UpdateTicket(ctx, auth.Customer(customerID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("unknown ticket", func(t *testing.T) {
		_, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), "missing", service.TicketUpdateInput{})
		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
	})

	t.Run("unknown assignee", func(t *testing.T) {
		_, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{AssignedStaffID: ptr("ghost")})
		assert.ErrorIs(t, err, apperrors.ErrStaffNotFound)
	})

	t.Run("customers cannot be assignees", func(t *testing.T) {
		_, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{AssignedStaffID: &customerID})
		assert.ErrorIs(t, err, apperrors.ErrStaffNotFound)
	})

	t.Run("unknown priority", func(t *testing.T) {
		_, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Priority: ptr("someday")})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestTicketService_AssignAndResolveInOneUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, "")

	env.clock.Set(t0.Add(3 * time.Hour))
	updated, err := env.engine.Tickets.UpdateTicket(ctx, auth.Admin("boss"), ticket.ID, service.TicketUpdateInput{
		AssignedStaffID: &staffID,
		Priority:        ptr("urgent"),
		Status:          status(domain.TicketStatusResolved),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, updated.Priority)
	assert.Equal(t, 40, env.profile(t, staffID).Points)

	history, err := env.engine.Tickets.ListHistory(ctx, auth.Staff(staffID), ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.TicketHistoryAssignee, history[0].ChangeType)
	assert.Equal(t, domain.TicketHistoryPriority, history[1].ChangeType)
	assert.Equal(t, domain.TicketHistoryStatus, history[2].ChangeType)
	assert.Equal(t, "resolved", history[2].NewValue["transition"])
}

func TestTicketService_HandlerFailureDoesNotFailUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, staffID)

	env.engine.Dispatcher.Subscribe(events.EventTicketResolved, "broken", func(context.Context, events.Event) error {
		return errors.New("downstream unavailable")
	})

	env.clock.Set(t0.Add(2 * time.Hour))
	updated, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)

	stored, err := env.repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	assert.Equal(t, 40, env.profile(t, staffID).Points)
	assert.Equal(t, int64(1), env.metrics.Count(observability.CounterEnrichmentFailures))
}

func TestTicketService_ReplayedEventAwardsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	staffID := env.createUser(t, "sam", domain.RoleStaff)

	event := events.Event{
		ID:        "evt-1",
		Type:      events.EventTicketResolved,
		TicketID:  "t-1",
		Timestamp: t0,
		Payload:   events.TicketResolvedPayload{StaffID: staffID, ResolutionTimeHours: 0.5},
	}
	require.NoError(t, env.engine.Dispatcher.Publish(ctx, event))
	require.NoError(t, env.engine.Dispatcher.Publish(ctx, event))

	p := env.profile(t, staffID)
	assert.Equal(t, 50, p.Points)
	assert.Equal(t, 1, p.TicketsResolved)
	assert.Equal(t, int64(1), env.metrics.Count(observability.CounterLedgerReplayed))
}

func TestTicketService_StaffReply(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, staffID)

	env.clock.Set(t0.Add(4 * time.Minute))
	_, err := env.engine.Tickets.RecordStaffReply(ctx, auth.Staff(staffID), ticket.ID, "internal note", true)
	require.NoError(t, err)
	stored, err := env.repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.FirstResponseAt)

	env.clock.Set(t0.Add(5 * time.Minute))
	msg, err := env.engine.Tickets.RecordStaffReply(ctx, auth.Staff(staffID), ticket.ID, "On it.", false)
	require.NoError(t, err)
	assert.Equal(t, staffID, msg.AuthorID)

	env.clock.Set(t0.Add(50 * time.Minute))
	_, err = env.engine.Tickets.RecordStaffReply(ctx, auth.Staff(staffID), ticket.ID, "Fixed it.", false)
	require.NoError(t, err)

	stored, err = env.repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FirstResponseAt)
	assert.Equal(t, t0.Add(5*time.Minute), *stored.FirstResponseAt)

	env.clock.Set(t0.Add(time.Hour))
	_, err = env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)

	p := env.profile(t, staffID)
	require.NotNil(t, p.AverageResponseTimeMinutes)
	assert.InDelta(t, 5.0, *p.AverageResponseTimeMinutes, 1e-9)

	_, err = env.engine.Tickets.RecordStaffReply(ctx, auth.Staff(staffID), ticket.ID, "   ", false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = env.engine.Tickets.RecordStaffReply(ctx, auth.Customer(customerID), ticket.ID, "hi", false)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestTicketService_SubmitSurvey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	strangerID := env.createUser(t, "stranger", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, staffID)

	_, err := env.engine.Tickets.SubmitSurvey(ctx, auth.Customer(customerID), ticket.ID, 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "open tickets cannot be rated")

	env.clock.Set(t0.Add(time.Hour))
	_, err = env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)

	_, err = env.engine.Tickets.SubmitSurvey(ctx, auth.Customer(strangerID), ticket.ID, 5)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = env.engine.Tickets.SubmitSurvey(ctx, auth.Customer(customerID), ticket.ID, 6)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	rated, err := env.engine.Tickets.SubmitSurvey(ctx, auth.Customer(customerID), ticket.ID, 4)
	require.NoError(t, err)
	require.NotNil(t, rated.CustomerRating)
	assert.Equal(t, 4, *rated.CustomerRating)
	assert.InDelta(t, 4.0, env.profile(t, staffID).CustomerSatisfactionRating, 1e-9)

	_, err = env.engine.Tickets.SubmitSurvey(ctx, auth.Customer(customerID), ticket.ID, 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "a ticket is rated once")
}

func TestTicketService_Visibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	otherID := env.createUser(t, "other", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)
	ticket := openTicket(t, env, customerID, staffID)
	openTicket(t, env, otherID, staffID)

	_, err := env.engine.Tickets.GetTicket(ctx, auth.Customer(otherID), ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	got, err := env.engine.Tickets.GetTicket(ctx, auth.Staff(staffID), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)

	mine, err := env.engine.Tickets.ListTickets(ctx, auth.Customer(customerID), repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ticket.ID, mine[0].ID)

	all, err := env.engine.Tickets.ListTickets(ctx, auth.Staff(staffID), repository.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = env.engine.Tickets.CreateTicket(ctx, auth.Customer(customerID), service.TicketCreateInput{Subject: "  "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = env.engine.Tickets.CreateTicket(ctx, auth.Staff(staffID), service.TicketCreateInput{Subject: "x"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
