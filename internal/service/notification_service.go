package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/config"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/events"
	"github.com/helpdesk-labs/support-rewards/internal/notify"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
)

// NotificationService turns ticket events into notifications. Delivery runs
// in the background: handlers return immediately and failures are only
// logged.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	users      repository.UserRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
	wg         sync.WaitGroup
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, users repository.UserRepository, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		users:      users,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil || !n.cfg.Enabled {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketSubmitted, "notify.ticket_submitted", n.handleTicketSubmitted)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, "notify.status_change", n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventStaffReplied, "notify.staff_reply", n.handleStaffReplied)
}

// Shutdown waits for in-flight deliveries or until ctx ends.
func (n *NotificationService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *NotificationService) handleTicketSubmitted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketSubmittedPayload)
	if !ok {
		return nil
	}
	note := domain.Notification{
		Type:     domain.NotificationTicketSubmitted,
		TicketID: event.TicketID,
		Subject:  payload.Subject,
		Metadata: map[string]string{"priority": string(payload.Priority)},
	}
	recipientID := ""
	if payload.AssignedStaffID != nil {
		recipientID = *payload.AssignedStaffID
	}
	n.dispatch(note, recipientID)
	return nil
}

func (n *NotificationService) handleStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	n.dispatch(domain.Notification{
		Type:     domain.NotificationStatusChange,
		TicketID: event.TicketID,
		Subject:  payload.Subject,
		Metadata: map[string]string{
			"old_status": string(payload.OldStatus),
			"new_status": string(payload.NewStatus),
		},
	}, payload.CustomerID)
	return nil
}

func (n *NotificationService) handleStaffReplied(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StaffRepliedPayload)
	if !ok {
		return nil
	}
	n.dispatch(domain.Notification{
		Type:     domain.NotificationStaffReply,
		TicketID: event.TicketID,
		Subject:  payload.Subject,
		Metadata: map[string]string{
			"message_id": payload.MessageID,
			"preview":    payload.BodyPreview,
		},
	}, payload.CustomerID)
	return nil
}

// dispatch resolves the recipient and sends in the background, detached from
// the caller's context.
func (n *NotificationService) dispatch(note domain.Notification, recipientID string) {
	timeout := n.cfg.SendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		note.Recipient = n.cfg.SupportRecipient
		if recipientID != "" {
			user, err := n.users.GetByID(ctx, recipientID)
			if err != nil {
				n.metrics.Inc(observability.CounterNotificationsFailed)
				n.logger.Warn("notification recipient lookup failed",
					zap.String("ticket_id", note.TicketID),
					zap.String("recipient_id", recipientID),
					zap.Error(err))
				return
			}
			note.Recipient = user.Email
		}

		if err := n.notifier.Send(ctx, note); err != nil {
			n.metrics.Inc(observability.CounterNotificationsFailed)
			n.logger.Warn("notification delivery failed",
				zap.String("type", string(note.Type)),
				zap.String("ticket_id", note.TicketID),
				zap.Error(err))
			return
		}
		n.metrics.Inc(observability.CounterNotificationsSent)
	}()
}
