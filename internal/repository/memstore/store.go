// Package memstore is an in-process implementation of the repository ports.
// It backs the engine when no Postgres DSN is configured and in service tests.
package memstore

import (
	"sync"
	"time"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
)

// Store holds every record in memory. Points mutations are serialized per
// staff member; everything else is guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	users     map[string]domain.StaffProfile
	userOrder []string

	tickets     map[string]domain.Ticket
	ticketOrder []string
	history     map[string][]domain.TicketHistory
	messages    map[string][]domain.TicketMessage

	achievements     map[string]domain.Achievement
	achievementOrder []string
	unlocks          map[string][]domain.UserAchievement

	items     map[string]domain.MarketplaceItem
	purchases []domain.Purchase

	ledger     []domain.LedgerEntry
	ledgerKeys map[string]struct{}

	staffLocks map[string]*sync.Mutex
	now        func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]domain.StaffProfile),
		tickets:      make(map[string]domain.Ticket),
		history:      make(map[string][]domain.TicketHistory),
		messages:     make(map[string][]domain.TicketMessage),
		achievements: make(map[string]domain.Achievement),
		unlocks:      make(map[string][]domain.UserAchievement),
		items:        make(map[string]domain.MarketplaceItem),
		ledgerKeys:   make(map[string]struct{}),
		staffLocks:   make(map[string]*sync.Mutex),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store through the repository ports.
func (s *Store) Repositories() repository.Set {
	return repository.Set{
		Users:        userRepo{s},
		Staff:        staffRepo{s},
		Tickets:      ticketRepo{s},
		History:      historyRepo{s},
		Messages:     messageRepo{s},
		Achievements: achievementRepo{s},
		Marketplace:  marketplaceRepo{s},
	}
}

func (s *Store) staffLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.staffLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.staffLocks[id] = l
	}
	return l
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.AssignedStaffID != nil {
		v := *t.AssignedStaffID
		t.AssignedStaffID = &v
	}
	if t.CustomerRating != nil {
		v := *t.CustomerRating
		t.CustomerRating = &v
	}
	if t.FirstResponseAt != nil {
		v := *t.FirstResponseAt
		t.FirstResponseAt = &v
	}
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		t.ResolvedAt = &v
	}
	if t.ResolutionTimeHours != nil {
		v := *t.ResolutionTimeHours
		t.ResolutionTimeHours = &v
	}
	return t
}

func cloneProfile(p domain.StaffProfile) domain.StaffProfile {
	if p.AverageResponseTimeMinutes != nil {
		v := *p.AverageResponseTimeMinutes
		p.AverageResponseTimeMinutes = &v
	}
	if p.SpecialRecognition != nil {
		v := *p.SpecialRecognition
		p.SpecialRecognition = &v
	}
	return p
}
