package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/config"
	"github.com/helpdesk-labs/support-rewards/internal/events"
	"github.com/helpdesk-labs/support-rewards/internal/notify"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
)

// Engine holds the wired services.
type Engine struct {
	Dispatcher    events.Dispatcher
	Ledger        *PointsLedger
	Aggregates    *AggregateRecalculator
	Achievements  *AchievementEngine
	Leaderboard   *LeaderboardService
	Marketplace   *MarketplaceService
	Tickets       *TicketService
	Staff         *StaffService
	Notifications *NotificationService
	Reconciler    *Reconciler
}

// EngineDependencies bundles what NewEngine needs. A nil Locker falls back to
// an in-process keyed mutex; a nil Notifier disables notifications.
type EngineDependencies struct {
	Repos    repository.Set
	Locker   Locker
	Notifier notify.Notifier
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Config   config.Config
	Now      func() time.Time
}

// NewEngine wires every service and subscribes the gamification pipeline.
// Notification handlers are registered separately by the notification worker.
// UpdateTicket publishes the resolution or reopen event ahead of the status
// change, and dispatch is synchronous, so points settle before the customer's
// status notification is queued.
func NewEngine(deps EngineDependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewKeyedMutex()
	}
	repos := deps.Repos
	dispatcher := events.NewInMemoryDispatcher()

	ledger := NewPointsLedger(repos.Staff, logger.Named("ledger"), metrics, deps.Config.Engine)
	aggregates := NewAggregateRecalculator(repos.Tickets, repos.Staff, locker, logger.Named("aggregates"))
	achievements := NewAchievementEngine(repos.Achievements, repos.Staff, ledger, logger.Named("achievements"), metrics)

	NewGamificationPipeline(ledger, aggregates, achievements, logger.Named("pipeline")).RegisterHandlers(dispatcher)

	notifications := NewNotificationService(dispatcher, deps.Notifier, repos.Users, logger.Named("notifications"), metrics, deps.Config.Notification)

	return &Engine{
		Dispatcher:   dispatcher,
		Ledger:       ledger,
		Aggregates:   aggregates,
		Achievements: achievements,
		Leaderboard:  NewLeaderboardService(repos.Staff, repos.Marketplace, achievements, deps.Config.Engine.LeaderboardDefaultLimit),
		Marketplace:  NewMarketplaceService(repos.Marketplace, ledger, logger.Named("marketplace"), metrics),
		Tickets: NewTicketService(TicketDependencies{
			TicketRepo:   repos.Tickets,
			MessageRepo:  repos.Messages,
			StaffRepo:    repos.Staff,
			HistoryRepo:  repos.History,
			Dispatcher:   dispatcher,
			Locker:       locker,
			Logger:       logger.Named("tickets"),
			Metrics:      metrics,
			Now:          deps.Now,
			MaxRetries:   deps.Config.Engine.LedgerMaxRetries,
			RetryInitial: deps.Config.Engine.LedgerRetryInitial,
		}),
		Staff:         NewStaffService(repos.Users, repos.Staff, logger.Named("staff")),
		Notifications: notifications,
		Reconciler:    NewReconciler(repos.Staff, aggregates, achievements, logger.Named("reconciler")),
	}
}
