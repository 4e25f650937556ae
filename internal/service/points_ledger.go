package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/auth"
	"github.com/helpdesk-labs/support-rewards/internal/config"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// Balance is the point state returned by every ledger mutation.
type Balance struct {
	Points int
	Level  int
}

// PointsLedger is the only writer of staff points and level.
type PointsLedger struct {
	staff        repository.StaffRepository
	logger       *zap.Logger
	metrics      *observability.Metrics
	maxRetries   uint
	retryInitial time.Duration
}

// NewPointsLedger constructs the ledger.
func NewPointsLedger(staff repository.StaffRepository, logger *zap.Logger, metrics *observability.Metrics, cfg config.EngineConfig) *PointsLedger {
	maxRetries := cfg.LedgerMaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}
	retryInitial := cfg.LedgerRetryInitial
	if retryInitial <= 0 {
		retryInitial = 20 * time.Millisecond
	}
	return &PointsLedger{
		staff:        staff,
		logger:       logger,
		metrics:      metrics,
		maxRetries:   maxRetries,
		retryInitial: retryInitial,
	}
}

// Award credits a resolution: base points plus the speed bonus for hours.
func (l *PointsLedger) Award(ctx context.Context, staffID string, hours float64) (Balance, error) {
	b, _, err := l.award(ctx, staffID, hours, "")
	return b, err
}

// Deduct withdraws what a resolution of priorHours earned. Points and the
// resolved counter never drop below zero.
func (l *PointsLedger) Deduct(ctx context.Context, staffID string, priorHours float64) (Balance, error) {
	b, _, err := l.deduct(ctx, staffID, priorHours, "")
	return b, err
}

// Spend removes cost points if the balance covers it.
func (l *PointsLedger) Spend(ctx context.Context, staffID string, cost int) (Balance, error) {
	return l.spend(ctx, staffID, cost, nil)
}

// GrantBonus lets an admin credit a staff member.
func (l *PointsLedger) GrantBonus(ctx context.Context, actor auth.Principal, staffID string, amount int, note string) (Balance, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return Balance{}, err
	}
	if amount <= 0 {
		return Balance{}, apperrors.NewValidationError("bonus must be positive", map[string]any{"amount": amount})
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = "admin bonus"
	}

	res, err := l.mutate(ctx, staffID, repository.PointsMutation{
		Reason: domain.LedgerReasonBonus,
		Note:   fmt.Sprintf("%s (by %s)", note, actor.ID),
		Apply: func(a *domain.PointsAccount) error {
			a.Points += amount
			return nil
		},
	})
	if err != nil {
		return Balance{}, err
	}
	l.metrics.Add(observability.CounterPointsBonus, int64(amount))
	return balanceOf(res), nil
}

// History lists recent ledger entries for a staff member.
func (l *PointsLedger) History(ctx context.Context, actor auth.Principal, staffID string, limit int) ([]domain.LedgerEntry, error) {
	if err := auth.RequireSelfOrAdmin(actor, staffID); err != nil {
		return nil, err
	}
	entries, err := l.staff.ListLedger(ctx, staffID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (l *PointsLedger) award(ctx context.Context, staffID string, hours float64, key string) (Balance, bool, error) {
	amount := domain.ResolutionPoints(hours)
	res, err := l.mutate(ctx, staffID, repository.PointsMutation{
		Reason:         domain.LedgerReasonAward,
		IdempotencyKey: key,
		Note:           fmt.Sprintf("resolved in %.2fh", hours),
		Apply: func(a *domain.PointsAccount) error {
			a.Points += amount
			a.TicketsResolved++
			a.TotalTicketsHandled++
			return nil
		},
	})
	if err != nil {
		return Balance{}, false, err
	}
	if !res.Replayed {
		l.metrics.Add(observability.CounterPointsAwarded, int64(amount))
	}
	return balanceOf(res), res.Replayed, nil
}

func (l *PointsLedger) deduct(ctx context.Context, staffID string, priorHours float64, key string) (Balance, bool, error) {
	amount := domain.ResolutionPoints(priorHours)
	res, err := l.mutate(ctx, staffID, repository.PointsMutation{
		Reason:         domain.LedgerReasonDeduct,
		IdempotencyKey: key,
		Note:           fmt.Sprintf("reopened after %.2fh", priorHours),
		Apply: func(a *domain.PointsAccount) error {
			a.Points -= amount
			a.TicketsResolved--
			return nil
		},
	})
	if err != nil {
		return Balance{}, false, err
	}
	if !res.Replayed && res.Entry != nil {
		l.metrics.Add(observability.CounterPointsDeducted, int64(-res.Entry.Delta))
	}
	return balanceOf(res), res.Replayed, nil
}

func (l *PointsLedger) spend(ctx context.Context, staffID string, cost int, purchase *domain.Purchase) (Balance, error) {
	if cost <= 0 {
		return Balance{}, apperrors.NewValidationError("cost must be positive", map[string]any{"cost": cost})
	}
	note := "spend"
	if purchase != nil {
		note = "purchase " + purchase.ItemID
	}
	res, err := l.mutate(ctx, staffID, repository.PointsMutation{
		Reason:   domain.LedgerReasonSpend,
		Note:     note,
		Purchase: purchase,
		Apply: func(a *domain.PointsAccount) error {
			if cost > a.Points {
				return apperrors.NewInsufficientPoints(a.Points, cost)
			}
			a.Points -= cost
			return nil
		},
	})
	if err != nil {
		return Balance{}, err
	}
	l.metrics.Add(observability.CounterPointsSpent, int64(cost))
	return balanceOf(res), nil
}

// grantAchievement credits an achievement reward once per staff member and
// achievement.
func (l *PointsLedger) grantAchievement(ctx context.Context, staffID string, a domain.Achievement) (Balance, bool, error) {
	res, err := l.mutate(ctx, staffID, repository.PointsMutation{
		Reason:         domain.LedgerReasonAchievement,
		IdempotencyKey: achievementKey(staffID, a.ID),
		Note:           a.Name,
		Apply: func(acc *domain.PointsAccount) error {
			acc.Points += a.PointsReward
			return nil
		},
	})
	if err != nil {
		return Balance{}, false, err
	}
	return balanceOf(res), res.Replayed, nil
}

// mutate funnels a mutation into the repository, retrying transient
// serialization failures with exponential backoff.
func (l *PointsLedger) mutate(ctx context.Context, staffID string, m repository.PointsMutation) (res repository.MutationResult, err error) {
	ctx, span := startSpan(ctx, "ledger."+string(m.Reason),
		attribute.String("staff.id", staffID),
		attribute.String("ledger.key", m.IdempotencyKey),
	)
	defer func() { endSpan(span, err) }()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryInitial

	res, err = backoff.Retry(ctx, func() (repository.MutationResult, error) {
		out, err := l.staff.MutatePoints(ctx, staffID, m)
		if err == nil {
			return out, nil
		}
		if !repository.IsRetryable(err) {
			return out, backoff.Permanent(err)
		}
		l.metrics.Inc(observability.CounterLedgerConflicts)
		l.logger.Debug("ledger mutation conflict, retrying", zap.String("staff_id", staffID), zap.Error(err))
		return out, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(l.maxRetries))

	switch {
	case err == nil:
	case repository.IsRetryable(err):
		return res, apperrors.NewConcurrentModification("staff points", err)
	case errors.Is(err, apperrors.ErrStaffNotFound):
		return res, apperrors.NewNotFound(apperrors.ErrStaffNotFound, "staff member", map[string]any{"staff_id": staffID})
	default:
		return res, err
	}

	if res.Replayed {
		l.metrics.Inc(observability.CounterLedgerReplayed)
		l.logger.Debug("ledger mutation already applied",
			zap.String("staff_id", staffID),
			zap.String("idempotency_key", m.IdempotencyKey))
	}
	return res, nil
}

func balanceOf(res repository.MutationResult) Balance {
	return Balance{Points: res.Account.Points, Level: res.Account.Level}
}

func achievementKey(staffID, achievementID string) string {
	return "achievement:" + staffID + ":" + achievementID
}
