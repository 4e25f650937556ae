package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

func newTicket(t *testing.T, repos repository.Set) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		Subject:    "VPN down",
		Status:     domain.TicketStatusOpen,
		Priority:   domain.TicketPriorityHigh,
		CustomerID: "c1",
	}
	require.NoError(t, repos.Tickets.Create(context.Background(), ticket))
	return ticket
}

func TestTicketUpdateIsVersionChecked(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	ticket := newTicket(t, repos)
	assert.Equal(t, 1, ticket.Version)

	first, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	second, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)

	first.Status = domain.TicketStatusInProgress
	require.NoError(t, repos.Tickets.Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Priority = domain.TicketPriorityLow
	assert.ErrorIs(t, repos.Tickets.Update(ctx, second), repository.ErrStaleTicket)

	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
	assert.Equal(t, domain.TicketPriorityHigh, stored.Priority)

	missing := &domain.Ticket{ID: "nope", Version: 1}
	assert.ErrorIs(t, repos.Tickets.Update(ctx, missing), apperrors.ErrTicketNotFound)
}

func TestTicketColumnWrites(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	ticket := newTicket(t, repos)
	at := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)

	ok, err := repos.Tickets.SetRating(ctx, ticket.ID, 5, at)
	require.NoError(t, err)
	assert.False(t, ok, "open tickets cannot be rated")

	ok, err = repos.Tickets.SetFirstResponse(ctx, ticket.ID, at)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repos.Tickets.SetFirstResponse(ctx, ticket.ID, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FirstResponseAt)
	assert.Equal(t, at, *stored.FirstResponseAt)
	assert.Equal(t, 2, stored.Version)

	stored.Status = domain.TicketStatusResolved
	require.NoError(t, repos.Tickets.Update(ctx, stored))

	ok, err = repos.Tickets.SetRating(ctx, ticket.ID, 4, at)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repos.Tickets.SetRating(ctx, ticket.ID, 1, at)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CustomerRating)
	assert.Equal(t, 4, *stored.CustomerRating)

	_, err = repos.Tickets.SetRating(ctx, "nope", 3, at)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}
