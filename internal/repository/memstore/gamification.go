package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

type achievementRepo struct{ s *Store }

func (r achievementRepo) Upsert(_ context.Context, a *domain.Achievement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range r.s.achievementOrder {
		existing := r.s.achievements[id]
		if existing.Name != a.Name {
			continue
		}
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		r.s.achievements[id] = *a
		return nil
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = r.s.now()
	r.s.achievements[a.ID] = *a
	r.s.achievementOrder = append(r.s.achievementOrder, a.ID)
	return nil
}

func (r achievementRepo) GetByID(_ context.Context, id string) (*domain.Achievement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.achievements[id]
	if !ok {
		return nil, apperrors.ErrAchievementNotFound
	}
	return &a, nil
}

func (r achievementRepo) ListActive(_ context.Context) ([]domain.Achievement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Achievement
	for _, id := range r.s.achievementOrder {
		if a := r.s.achievements[id]; a.IsActive {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r achievementRepo) ListUnlocked(_ context.Context, staffID string) ([]domain.UserAchievement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.UserAchievement(nil), r.s.unlocks[staffID]...), nil
}

func (r achievementRepo) Unlock(_ context.Context, staffID, achievementID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ua := range r.s.unlocks[staffID] {
		if ua.AchievementID == achievementID {
			return false, nil
		}
	}
	r.s.unlocks[staffID] = append(r.s.unlocks[staffID], domain.UserAchievement{
		StaffID:       staffID,
		AchievementID: achievementID,
		UnlockedAt:    at,
	})
	return true, nil
}

type marketplaceRepo struct{ s *Store }

func (r marketplaceRepo) UpsertItem(_ context.Context, item *domain.MarketplaceItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.items[item.ID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else {
		item.CreatedAt = r.s.now()
	}
	r.s.items[item.ID] = *item
	return nil
}

func (r marketplaceRepo) GetItem(_ context.Context, id string) (*domain.MarketplaceItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	item, ok := r.s.items[id]
	if !ok {
		return nil, apperrors.ErrItemNotFound
	}
	return &item, nil
}

func (r marketplaceRepo) ListItems(_ context.Context) ([]domain.MarketplaceItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.MarketplaceItem, 0, len(r.s.items))
	for _, item := range r.s.items {
		result = append(result, item)
	}
	sortItems(result)
	return result, nil
}

func (r marketplaceRepo) ListPurchases(_ context.Context, staffID string) ([]domain.Purchase, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Purchase
	for i := len(r.s.purchases) - 1; i >= 0; i-- {
		if r.s.purchases[i].StaffID == staffID {
			result = append(result, r.s.purchases[i])
		}
	}
	return result, nil
}

func sortItems(items []domain.MarketplaceItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].PointsCost != items[j].PointsCost {
			return items[i].PointsCost < items[j].PointsCost
		}
		return items[i].ID < items[j].ID
	})
}
