package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/auth"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/events"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// TicketService coordinates ticket workflows and emits the events the
// gamification pipeline and notifications consume.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	staff      repository.StaffRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	locker     Locker
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	maxRetries   uint
	retryInitial time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	StaffRepo   repository.StaffRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	// Locker orders concurrent writers of one ticket so their events are
	// published in write order; defaults to an in-process keyed mutex.
	Locker      Locker
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	// Now overrides the clock; defaults to time.Now in UTC.
	Now func() time.Time
	// MaxRetries bounds attempts at a ticket write that keeps losing a
	// version race.
	MaxRetries   uint
	RetryInitial time.Duration
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject         string
	Description     string
	Priority        string
	AssignedStaffID *string
}

// TicketUpdateInput lists the fields a staff update may change. Nil fields are
// left alone; an empty AssignedStaffID unassigns the ticket.
type TicketUpdateInput struct {
	Status          *string
	Priority        *string
	AssignedStaffID *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewKeyedMutex()
	}
	maxRetries := deps.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	retryInitial := deps.RetryInitial
	if retryInitial <= 0 {
		retryInitial = 20 * time.Millisecond
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		staff:      deps.StaffRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		locker:     locker,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        now,

		maxRetries:   maxRetries,
		retryInitial: retryInitial,
	}
}

// CreateTicket opens a ticket for the calling customer.
func (s *TicketService) CreateTicket(ctx context.Context, actor auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if err := auth.RequireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject is required", nil)
	}

	priority := domain.TicketPriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		parsed, ok := domain.ParseTicketPriority(input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
		}
		priority = parsed
	}

	assignee, err := s.resolveAssignee(ctx, input.AssignedStaffID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:              uuid.NewString(),
		Subject:         subject,
		Description:     strings.TrimSpace(input.Description),
		Status:          domain.TicketStatusOpen,
		Priority:        priority,
		CustomerID:      actor.ID,
		AssignedStaffID: assignee,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketSubmitted,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.TicketSubmittedPayload{
			Subject:         ticket.Subject,
			Priority:        ticket.Priority,
			CustomerID:      ticket.CustomerID,
			AssignedStaffID: ticket.AssignedStaffID,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket visible to the caller.
func (s *TicketService) GetTicket(ctx context.Context, actor auth.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", ticketID)
	}
	if err := canView(actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets lists tickets; customers only see their own.
func (s *TicketService) ListTickets(ctx context.Context, actor auth.Principal, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if err := auth.RequireRole(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() {
		id := actor.ID
		filter.CustomerID = &id
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateTicket applies a staff update. The write is conditional on the
// version that was read; a lost race re-reads and recomputes the change. The
// winning write publishes its events while still holding the ticket lock, so
// consumers see resolutions and reopens in the order they were persisted.
// Consumer failures are logged without failing the update.
func (s *TicketService) UpdateTicket(ctx context.Context, actor auth.Principal, ticketID string, input TicketUpdateInput) (result *domain.Ticket, err error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}

	ctx, span := startSpan(ctx, "tickets.update", attribute.String("ticket.id", ticketID))
	defer func() { endSpan(span, err) }()

	var assignee *string
	if input.AssignedStaffID != nil {
		if assignee, err = s.resolveAssignee(ctx, input.AssignedStaffID); err != nil {
			return nil, err
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	updated, err := backoff.Retry(ctx, func() (domain.Ticket, error) {
		current, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return domain.Ticket{}, backoff.Permanent(notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", ticketID))
		}
		plan, err := planTicketUpdate(*current, input, assignee, actor.ID, s.now())
		if err != nil {
			return domain.Ticket{}, backoff.Permanent(err)
		}
		if len(plan.changes) == 0 {
			return plan.after, nil
		}
		if err := s.commitUpdate(ctx, actor, plan); err != nil {
			if errors.Is(err, repository.ErrStaleTicket) {
				s.logger.Debug("ticket changed concurrently, retrying", zap.String("ticket_id", ticketID))
				return domain.Ticket{}, err
			}
			return domain.Ticket{}, backoff.Permanent(err)
		}
		return plan.after, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.maxRetries))
	if err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return nil, apperrors.NewConcurrentModification("ticket", err)
		}
		return nil, err
	}
	return &updated, nil
}

// commitUpdate writes plan under the ticket lock and publishes its events
// before releasing it.
func (s *TicketService) commitUpdate(ctx context.Context, actor auth.Principal, plan *ticketUpdate) error {
	unlock, err := s.locker.Lock(ctx, "ticket:"+plan.after.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.tickets.Update(ctx, &plan.after); err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return err
		}
		return notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", plan.after.ID)
	}
	s.recordHistory(ctx, actor, plan.after.ID, plan.changes)

	s.publishTransition(ctx, actor, &plan.before, &plan.after, plan.transition)
	if tr := plan.transition; tr.Changed() {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: plan.after.ID,
			Actor:    actorOf(actor),
			Payload: events.TicketStatusChangedPayload{
				Subject:    plan.after.Subject,
				CustomerID: plan.after.CustomerID,
				OldStatus:  tr.From,
				NewStatus:  tr.To,
			},
		})
	}
	return nil
}

type ticketUpdate struct {
	before     domain.Ticket
	after      domain.Ticket
	transition domain.Transition
	changes    []domain.TicketHistory
}

// planTicketUpdate computes the new row and its audit entries from a fresh
// read. It performs no I/O so it can be rerun after a version conflict.
func planTicketUpdate(current domain.Ticket, input TicketUpdateInput, assignee *string, actingStaffID string, now time.Time) (*ticketUpdate, error) {
	plan := &ticketUpdate{before: current, after: current}

	if input.AssignedStaffID != nil && derefString(assignee) != derefString(current.AssignedStaffID) {
		plan.after.AssignedStaffID = assignee
		plan.changes = append(plan.changes, domain.TicketHistory{
			ChangeType: domain.TicketHistoryAssignee,
			OldValue:   map[string]any{"assigned_staff_id": derefString(current.AssignedStaffID)},
			NewValue:   map[string]any{"assigned_staff_id": derefString(assignee)},
		})
	}

	if input.Priority != nil {
		priority, ok := domain.ParseTicketPriority(*input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		if priority != current.Priority {
			plan.after.Priority = priority
			plan.changes = append(plan.changes, domain.TicketHistory{
				ChangeType: domain.TicketHistoryPriority,
				OldValue:   map[string]any{"priority": current.Priority},
				NewValue:   map[string]any{"priority": priority},
			})
		}
	}

	if input.Status != nil {
		var err error
		plan.after, plan.transition, err = domain.ApplyStatusChange(plan.after, domain.TicketStatus(*input.Status), actingStaffID, now)
		if err != nil {
			return nil, err
		}
		if tr := plan.transition; tr.Changed() {
			plan.changes = append(plan.changes, domain.TicketHistory{
				ChangeType: domain.TicketHistoryStatus,
				OldValue:   map[string]any{"status": tr.From},
				NewValue:   map[string]any{"status": tr.To, "transition": tr.Kind.String()},
			})
		}
	}

	if len(plan.changes) > 0 {
		plan.after.UpdatedAt = now
	}
	return plan, nil
}

// publishTransition emits resolution and reopen events. A resolution credits
// the assignee after this update; a reopen debits the assignee the ticket had
// while it was resolved. Unassigned tickets emit nothing.
func (s *TicketService) publishTransition(ctx context.Context, actor auth.Principal, before, after *domain.Ticket, tr domain.Transition) {
	switch tr.Kind {
	case domain.TransitionResolved:
		if !after.IsAssigned() {
			s.logger.Debug("resolved ticket has no assignee", zap.String("ticket_id", after.ID))
			return
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketResolved,
			TicketID: after.ID,
			Actor:    actorOf(actor),
			Payload: events.TicketResolvedPayload{
				StaffID:             *after.AssignedStaffID,
				ResolutionTimeHours: tr.ResolutionTimeHours,
			},
		})
	case domain.TransitionReopened:
		if !before.IsAssigned() {
			s.logger.Debug("reopened ticket has no assignee", zap.String("ticket_id", after.ID))
			return
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketReopened,
			TicketID: after.ID,
			Actor:    actorOf(actor),
			Payload: events.TicketReopenedPayload{
				StaffID:                  *before.AssignedStaffID,
				PriorResolutionTimeHours: tr.ResolutionTimeHours,
			},
		})
	}
}

// RecordStaffReply posts a staff message. The first public reply stamps the
// ticket's first response time.
func (s *TicketService) RecordStaffReply(ctx context.Context, actor auth.Principal, ticketID, body string, internal bool) (*domain.TicketMessage, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("reply body is required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", ticketID)
	}

	msg := &domain.TicketMessage{
		ID:       uuid.NewString(),
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Body:     body,
		Internal: internal,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	if internal {
		return msg, nil
	}

	if ticket.FirstResponseAt == nil {
		if _, err := s.tickets.SetFirstResponse(ctx, ticket.ID, s.now()); err != nil {
			return nil, notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", ticketID)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventStaffReplied,
		TicketID: ticket.ID,
		Actor:    actorOf(actor),
		Payload: events.StaffRepliedPayload{
			Subject:     ticket.Subject,
			CustomerID:  ticket.CustomerID,
			MessageID:   msg.ID,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// SubmitSurvey stores the customer's rating on a resolved or closed ticket
// and refreshes the assignee's averages.
func (s *TicketService) SubmitSurvey(ctx context.Context, actor auth.Principal, ticketID string, rating int) (*domain.Ticket, error) {
	if err := auth.RequireRole(actor, domain.RoleCustomer); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", ticketID)
	}
	if ticket.CustomerID != actor.ID {
		return nil, apperrors.NewForbidden("only the ticket's customer may rate it")
	}
	if !ticket.Status.IsTerminal() {
		return nil, apperrors.NewValidationError("ticket is not resolved", map[string]any{"status": ticket.Status})
	}
	if ticket.CustomerRating != nil {
		return nil, apperrors.NewValidationError("survey already submitted", map[string]any{"rating": *ticket.CustomerRating})
	}

	applied, err := s.tickets.SetRating(ctx, ticket.ID, rating, s.now())
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", ticketID)
	}
	if ticket, err = s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, notFoundOr(err, apperrors.ErrTicketNotFound, "ticket", ticketID)
	}
	if !applied {
		if !ticket.Status.IsTerminal() {
			return nil, apperrors.NewValidationError("ticket is not resolved", map[string]any{"status": ticket.Status})
		}
		return nil, apperrors.NewValidationError("survey already submitted", nil)
	}
	s.recordHistory(ctx, actor, ticket.ID, []domain.TicketHistory{{
		ChangeType: domain.TicketHistoryRating,
		NewValue:   map[string]any{"rating": rating},
	}})

	if ticket.IsAssigned() {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventSurveySubmitted,
			TicketID: ticket.ID,
			Actor:    actorOf(actor),
			Payload: events.SurveySubmittedPayload{
				StaffID: *ticket.AssignedStaffID,
				Rating:  rating,
			},
		})
	}
	return ticket, nil
}

// ListHistory returns the audit trail of a ticket visible to the caller.
func (s *TicketService) ListHistory(ctx context.Context, actor auth.Principal, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	history, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

func (s *TicketService) resolveAssignee(ctx context.Context, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	id := strings.TrimSpace(*raw)
	if id == "" {
		return nil, nil
	}
	if _, err := s.staff.GetProfile(ctx, id); err != nil {
		return nil, notFoundOr(err, apperrors.ErrStaffNotFound, "staff member", id)
	}
	return &id, nil
}

func (s *TicketService) recordHistory(ctx context.Context, actor auth.Principal, ticketID string, changes []domain.TicketHistory) {
	if s.history == nil {
		return
	}
	actorID := actor.ID
	for i := range changes {
		entry := changes[i]
		entry.TicketID = ticketID
		entry.ChangedByID = &actorID
		if err := s.history.Create(ctx, &entry); err != nil {
			s.logger.Warn("record ticket history",
				zap.String("ticket_id", ticketID),
				zap.String("change", string(entry.ChangeType)),
				zap.Error(err))
		}
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.metrics.Inc(observability.CounterEnrichmentFailures)
		s.logger.Warn("event handlers failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func canView(actor auth.Principal, ticket *domain.Ticket) error {
	if err := auth.RequireRole(actor); err != nil {
		return err
	}
	if actor.Role.IsStaff() || ticket.CustomerID == actor.ID {
		return nil
	}
	return apperrors.NewForbidden("ticket belongs to another customer")
}

func actorOf(p auth.Principal) events.Actor {
	return events.Actor{Role: p.Role, UserID: p.ID}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// stringPreview shortens body to at most max runes.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
