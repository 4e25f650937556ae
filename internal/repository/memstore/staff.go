package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

type staffRepo struct{ s *Store }

func (r staffRepo) GetProfile(_ context.Context, id string) (*domain.StaffProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.users[id]
	if !ok || !p.Role.IsStaff() {
		return nil, apperrors.ErrStaffNotFound
	}
	out := cloneProfile(p)
	return &out, nil
}

func (r staffRepo) ListProfiles(_ context.Context, filter repository.StaffFilter) ([]domain.StaffProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.StaffProfile
	for _, id := range r.s.userOrder {
		p := r.s.users[id]
		if !p.Role.IsStaff() {
			continue
		}
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		result = append(result, cloneProfile(p))
	}

	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(result) {
			return nil, nil
		}
		end := offset + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[offset:end]
	}
	return result, nil
}

func (r staffRepo) UpdateAggregates(_ context.Context, id string, agg domain.StaffAggregates) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.users[id]
	if !ok || !p.Role.IsStaff() {
		return apperrors.ErrStaffNotFound
	}
	p.AverageResolutionTimeHours = agg.AverageResolutionTimeHours
	if agg.CustomerSatisfactionRating != nil {
		p.CustomerSatisfactionRating = *agg.CustomerSatisfactionRating
	}
	if agg.AverageResponseTimeMinutes != nil {
		v := *agg.AverageResponseTimeMinutes
		p.AverageResponseTimeMinutes = &v
	}
	p.UpdatedAt = r.s.now()
	r.s.users[id] = p
	return nil
}

func (r staffRepo) SetRecognition(_ context.Context, id string, recognition *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.users[id]
	if !ok || !p.Role.IsStaff() {
		return apperrors.ErrStaffNotFound
	}
	if recognition != nil {
		v := *recognition
		recognition = &v
	}
	p.SpecialRecognition = recognition
	p.UpdatedAt = r.s.now()
	r.s.users[id] = p
	return nil
}

func (r staffRepo) MutatePoints(_ context.Context, staffID string, mutation repository.PointsMutation) (repository.MutationResult, error) {
	lock := r.s.staffLock(staffID)
	lock.Lock()
	defer lock.Unlock()

	r.s.mu.RLock()
	p, ok := r.s.users[staffID]
	_, replayed := r.s.ledgerKeys[mutation.IdempotencyKey]
	r.s.mu.RUnlock()

	if !ok || !p.Role.IsStaff() {
		return repository.MutationResult{}, apperrors.ErrStaffNotFound
	}
	account := p.Account()
	if mutation.IdempotencyKey != "" && replayed {
		return repository.MutationResult{Account: account, Replayed: true}, nil
	}

	before := account.Points
	if mutation.Apply != nil {
		if err := mutation.Apply(&account); err != nil {
			return repository.MutationResult{}, err
		}
	}
	account.Normalize()

	now := r.s.now()
	entry := &domain.LedgerEntry{
		ID:          uuid.NewString(),
		StaffID:     staffID,
		Reason:      mutation.Reason,
		Delta:       account.Points - before,
		PointsAfter: account.Points,
		LevelAfter:  account.Level,
		Note:        mutation.Note,
		CreatedAt:   now,
	}
	if mutation.IdempotencyKey != "" {
		key := mutation.IdempotencyKey
		entry.IdempotencyKey = &key
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p = r.s.users[staffID]
	p.Points = account.Points
	p.Level = account.Level
	p.TicketsResolved = account.TicketsResolved
	p.TotalTicketsHandled = account.TotalTicketsHandled
	p.UpdatedAt = now
	r.s.users[staffID] = p

	r.s.ledger = append(r.s.ledger, *entry)
	if mutation.IdempotencyKey != "" {
		r.s.ledgerKeys[mutation.IdempotencyKey] = struct{}{}
	}
	if pur := mutation.Purchase; pur != nil {
		if pur.ID == "" {
			pur.ID = uuid.NewString()
		}
		if pur.PurchasedAt.IsZero() {
			pur.PurchasedAt = now
		}
		pur.StaffID = staffID
		r.s.purchases = append(r.s.purchases, *pur)
	}
	return repository.MutationResult{Account: account, Entry: entry}, nil
}

func (r staffRepo) ListLedger(_ context.Context, staffID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0 && len(result) < limit; i-- {
		if r.s.ledger[i].StaffID == staffID {
			result = append(result, r.s.ledger[i])
		}
	}
	return result, nil
}
