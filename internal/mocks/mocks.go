// Package mocks holds testify doubles for the engine's ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
)

// MockNotifier is a mock implementation of notify.Notifier
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockLocker is a mock implementation of service.Locker
type MockLocker struct {
	mock.Mock
}

func NewMockLocker() *MockLocker {
	return &MockLocker{}
}

func (m *MockLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockStaffRepository is a mock implementation of repository.StaffRepository
type MockStaffRepository struct {
	mock.Mock
}

func NewMockStaffRepository() *MockStaffRepository {
	return &MockStaffRepository{}
}

func (m *MockStaffRepository) GetProfile(ctx context.Context, id string) (*domain.StaffProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StaffProfile), args.Error(1)
}

func (m *MockStaffRepository) ListProfiles(ctx context.Context, filter repository.StaffFilter) ([]domain.StaffProfile, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StaffProfile), args.Error(1)
}

func (m *MockStaffRepository) UpdateAggregates(ctx context.Context, id string, agg domain.StaffAggregates) error {
	args := m.Called(ctx, id, agg)
	return args.Error(0)
}

func (m *MockStaffRepository) SetRecognition(ctx context.Context, id string, recognition *string) error {
	args := m.Called(ctx, id, recognition)
	return args.Error(0)
}

func (m *MockStaffRepository) MutatePoints(ctx context.Context, staffID string, mutation repository.PointsMutation) (repository.MutationResult, error) {
	args := m.Called(ctx, staffID, mutation)
	return args.Get(0).(repository.MutationResult), args.Error(1)
}

func (m *MockStaffRepository) ListLedger(ctx context.Context, staffID string, limit int) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, staffID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}
