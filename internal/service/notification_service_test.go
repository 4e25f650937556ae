package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/auth"
	"github.com/helpdesk-labs/support-rewards/internal/config"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/events"
	"github.com/helpdesk-labs/support-rewards/internal/mocks"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository/memstore"
	"github.com/helpdesk-labs/support-rewards/internal/service"
)

func ofType(kind domain.NotificationType, recipient string) any {
	return mock.MatchedBy(func(n domain.Notification) bool {
		return n.Type == kind && n.Recipient == recipient
	})
}

func shutdown(t *testing.T, ns *service.NotificationService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ns.Shutdown(ctx))
}

func TestNotificationService_DeliversTicketEvents(t *testing.T) {
	ctx := context.Background()
	notifier := mocks.NewMockNotifier()
	env := newTestEnv(t, notifier)
	env.engine.Notifications.RegisterHandlers()

	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)

	notifier.On("Send", mock.Anything, ofType(domain.NotificationTicketSubmitted, "sam@example.com")).Return(nil).Once()
	notifier.On("Send", mock.Anything, ofType(domain.NotificationStaffReply, "cust@example.com")).Return(nil).Once()
	notifier.On("Send", mock.Anything, ofType(domain.NotificationStatusChange, "cust@example.com")).Return(nil).Once()

	ticket := openTicket(t, env, customerID, staffID)
	_, err := env.engine.Tickets.RecordStaffReply(ctx, auth.Staff(staffID), ticket.ID, "Looking now", false)
	require.NoError(t, err)
	_, err = env.engine.Tickets.RecordStaffReply(ctx, auth.Staff(staffID), ticket.ID, "internal only", true)
	require.NoError(t, err)
	_, err = env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)

	shutdown(t, env.engine.Notifications)
	notifier.AssertExpectations(t)
	assert.Equal(t, int64(3), env.metrics.Count(observability.CounterNotificationsSent))
}

func TestNotificationService_UnassignedTicketGoesToSupport(t *testing.T) {
	notifier := mocks.NewMockNotifier()
	env := newTestEnv(t, notifier)
	env.engine.Notifications.RegisterHandlers()
	customerID := env.createUser(t, "cust", domain.RoleCustomer)

	notifier.On("Send", mock.Anything, ofType(domain.NotificationTicketSubmitted, "support@example.com")).Return(nil).Once()

	openTicket(t, env, customerID, "")
	shutdown(t, env.engine.Notifications)
	notifier.AssertExpectations(t)
}

func TestNotificationService_FailuresAreOnlyCounted(t *testing.T) {
	ctx := context.Background()
	notifier := mocks.NewMockNotifier()
	env := newTestEnv(t, notifier)
	env.engine.Notifications.RegisterHandlers()
	customerID := env.createUser(t, "cust", domain.RoleCustomer)
	staffID := env.createUser(t, "sam", domain.RoleStaff)

	notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	ticket := openTicket(t, env, customerID, staffID)
	env.clock.Set(t0.Add(time.Hour))
	updated, err := env.engine.Tickets.UpdateTicket(ctx, auth.Staff(staffID), ticket.ID, service.TicketUpdateInput{Status: status(domain.TicketStatusResolved)})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)

	shutdown(t, env.engine.Notifications)
	assert.Equal(t, int64(2), env.metrics.Count(observability.CounterNotificationsFailed))
	assert.Equal(t, int64(0), env.metrics.Count(observability.CounterEnrichmentFailures))
	assert.Equal(t, 50, env.profile(t, staffID).Points)
}

func TestNotificationService_DisabledRegistersNothing(t *testing.T) {
	notifier := mocks.NewMockNotifier()
	dispatcher := events.NewInMemoryDispatcher()
	repos := memstore.New().Repositories()

	ns := service.NewNotificationService(dispatcher, notifier, repos.Users, zap.NewNop(), observability.NewMetrics(), config.NotificationConfig{Enabled: false})
	ns.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketSubmitted,
		Payload: events.TicketSubmittedPayload{Subject: "x"},
	})
	require.NoError(t, err)
	shutdown(t, ns)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
