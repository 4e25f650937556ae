package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = r.s.now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	ticket.Version = 1
	r.s.tickets[ticket.ID] = cloneTicket(*ticket)
	r.s.ticketOrder = append(r.s.ticketOrder, ticket.ID)
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return apperrors.ErrTicketNotFound
	}
	if stored.Version != ticket.Version {
		return repository.ErrStaleTicket
	}
	ticket.Version++
	r.s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r ticketRepo) SetFirstResponse(_ context.Context, id string, at time.Time) (bool, error) {
	return r.patch(id, func(t *domain.Ticket) bool {
		if t.FirstResponseAt != nil {
			return false
		}
		t.FirstResponseAt = &at
		t.UpdatedAt = at
		return true
	})
}

func (r ticketRepo) SetRating(_ context.Context, id string, rating int, at time.Time) (bool, error) {
	return r.patch(id, func(t *domain.Ticket) bool {
		if t.CustomerRating != nil || !t.Status.IsTerminal() {
			return false
		}
		t.CustomerRating = &rating
		t.UpdatedAt = at
		return true
	})
}

// patch applies fn to the stored ticket under the store lock.
func (r ticketRepo) patch(id string, fn func(*domain.Ticket) bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return false, apperrors.ErrTicketNotFound
	}
	if !fn(&t) {
		return false, nil
	}
	t.Version++
	r.s.tickets[id] = cloneTicket(t)
	return true, nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	out := cloneTicket(t)
	return &out, nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	statuses := make(map[domain.TicketStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}

	var result []domain.Ticket
	for i := len(r.s.ticketOrder) - 1; i >= 0; i-- {
		t := r.s.tickets[r.s.ticketOrder[i]]
		if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.AssignedStaffID != nil && (t.AssignedStaffID == nil || *t.AssignedStaffID != *filter.AssignedStaffID) {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[t.Status]; !ok {
				continue
			}
		}
		result = append(result, cloneTicket(t))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r ticketRepo) ListResolvedByStaff(_ context.Context, staffID string) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Ticket
	for _, id := range r.s.ticketOrder {
		t := r.s.tickets[id]
		if t.AssignedStaffID == nil || *t.AssignedStaffID != staffID {
			continue
		}
		if !t.Status.IsTerminal() || t.ResolutionTimeHours == nil {
			continue
		}
		result = append(result, cloneTicket(t))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ResolvedAt.Before(*result[j].ResolvedAt)
	})
	return result, nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	history.CreatedAt = r.s.now()
	r.s.history[history.TicketID] = append(r.s.history[history.TicketID], *history)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketHistory(nil), r.s.history[ticketID]...), nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = r.s.now()
	r.s.messages[msg.TicketID] = append(r.s.messages[msg.TicketID], *msg)
	return nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketMessage(nil), r.s.messages[ticketID]...), nil
}
