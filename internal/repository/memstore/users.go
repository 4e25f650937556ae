package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return apperrors.NewValidationError("email already registered", map[string]any{"email": user.Email})
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.s.users[user.ID] = domain.StaffProfile{User: *user, Level: 1}
	r.s.userOrder = append(r.s.userOrder, user.ID)
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	user := p.User
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, id := range r.s.userOrder {
		if p := r.s.users[id]; p.Email == email {
			user := p.User
			return &user, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}
