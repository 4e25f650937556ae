package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/config"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/notify"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	"github.com/helpdesk-labs/support-rewards/internal/repository/memstore"
	"github.com/helpdesk-labs/support-rewards/internal/service"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	engine  *service.Engine
	repos   repository.Set
	metrics *observability.Metrics
	clock   *fakeClock
}

func testConfig() config.Config {
	return config.Config{
		Notification: config.NotificationConfig{
			Enabled:          true,
			SupportRecipient: "support@example.com",
			SendTimeout:      time.Second,
		},
		Engine: config.EngineConfig{
			LedgerMaxRetries:        3,
			LedgerRetryInitial:      time.Millisecond,
			LockWaitTimeout:         time.Second,
			LeaderboardDefaultLimit: 10,
		},
	}
}

func newTestEnv(t *testing.T, notifier notify.Notifier) *testEnv {
	t.Helper()
	return newTestEnvWith(t, notifier, nil)
}

// newTestEnvWith lets a test decorate the in-memory repositories before the
// engine is wired.
func newTestEnvWith(t *testing.T, notifier notify.Notifier, wrap func(repository.Set) repository.Set) *testEnv {
	t.Helper()
	repos := memstore.New().Repositories()
	if wrap != nil {
		repos = wrap(repos)
	}
	metrics := observability.NewMetrics()
	clock := newFakeClock(t0)
	engine := service.NewEngine(service.EngineDependencies{
		Repos:    repos,
		Notifier: notifier,
		Logger:   zap.NewNop(),
		Metrics:  metrics,
		Config:   testConfig(),
		Now:      clock.Now,
	})
	return &testEnv{engine: engine, repos: repos, metrics: metrics, clock: clock}
}

func (e *testEnv) createUser(t *testing.T, name string, role domain.Role) string {
	t.Helper()
	user := &domain.User{
		Name:   name,
		Email:  name + "@example.com",
		Role:   role,
		Active: true,
	}
	require.NoError(t, e.repos.Users.Create(context.Background(), user))
	return user.ID
}

func (e *testEnv) profile(t *testing.T, staffID string) domain.StaffProfile {
	t.Helper()
	p, err := e.repos.Staff.GetProfile(context.Background(), staffID)
	require.NoError(t, err)
	return *p
}

func (e *testEnv) seedAchievements(t *testing.T, achievements ...domain.Achievement) []domain.Achievement {
	t.Helper()
	out := make([]domain.Achievement, 0, len(achievements))
	for _, a := range achievements {
		a := a
		a.IsActive = true
		require.NoError(t, e.repos.Achievements.Upsert(context.Background(), &a))
		out = append(out, a)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
