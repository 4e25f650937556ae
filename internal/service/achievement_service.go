package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

const (
	resolutionMasterThreshold = 100
	customerChampionRating    = 4.8
	lightningFastMinutes      = 5.0
)

// AchievementPredicate decides whether a profile qualifies for an unlock.
type AchievementPredicate func(domain.StaffProfile) bool

var achievementPredicates = map[domain.AchievementKey]AchievementPredicate{
	domain.AchievementFirstResolution: func(p domain.StaffProfile) bool {
		return p.TicketsResolved >= 1
	},
	domain.AchievementResolutionMaster: func(p domain.StaffProfile) bool {
		return p.TicketsResolved >= resolutionMasterThreshold
	},
	domain.AchievementCustomerChampion: func(p domain.StaffProfile) bool {
		return p.CustomerSatisfactionRating >= customerChampionRating
	},
	domain.AchievementLightningFast: func(p domain.StaffProfile) bool {
		return p.AverageResponseTimeMinutes != nil && *p.AverageResponseTimeMinutes <= lightningFastMinutes
	},
}

// Qualifies reports whether the profile meets the achievement's threshold.
// Unknown keys never qualify.
func Qualifies(key domain.AchievementKey, profile domain.StaffProfile) bool {
	pred, ok := achievementPredicates[key]
	return ok && pred(profile)
}

// AchievementEngine unlocks achievements against the current profile.
type AchievementEngine struct {
	achievements repository.AchievementRepository
	staff        repository.StaffRepository
	ledger       *PointsLedger
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewAchievementEngine constructs the engine.
func NewAchievementEngine(achievements repository.AchievementRepository, staff repository.StaffRepository, ledger *PointsLedger, logger *zap.Logger, metrics *observability.Metrics) *AchievementEngine {
	return &AchievementEngine{
		achievements: achievements,
		staff:        staff,
		ledger:       ledger,
		logger:       logger,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate unlocks every active achievement the staff member newly qualifies
// for and returns them. Rewards go through the ledger before the unlock is
// recorded; both steps are idempotent, so an interrupted run is completed by
// the next one.
func (e *AchievementEngine) Evaluate(ctx context.Context, staffID string) (unlocked []domain.Achievement, err error) {
	ctx, span := startSpan(ctx, "achievements.evaluate", attribute.String("staff.id", staffID))
	defer func() { endSpan(span, err) }()

	profile, err := e.staff.GetProfile(ctx, staffID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStaffNotFound) {
			return nil, apperrors.NewNotFound(apperrors.ErrStaffNotFound, "staff member", map[string]any{"staff_id": staffID})
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}

	active, err := e.achievements.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	held, err := e.achievements.ListUnlocked(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("list unlocked: %w", err)
	}
	owned := make(map[string]struct{}, len(held))
	for _, ua := range held {
		owned[ua.AchievementID] = struct{}{}
	}

	var errs []error
	for _, a := range active {
		if _, ok := owned[a.ID]; ok {
			continue
		}
		if _, known := achievementPredicates[a.Key]; !known {
			e.logger.Warn("achievement has no predicate", zap.String("achievement", a.Name), zap.String("key", string(a.Key)))
			continue
		}
		if !Qualifies(a.Key, *profile) {
			continue
		}

		if a.PointsReward > 0 {
			if _, _, err := e.ledger.grantAchievement(ctx, staffID, a); err != nil {
				errs = append(errs, fmt.Errorf("grant %s: %w", a.Name, err))
				continue
			}
		}
		inserted, err := e.achievements.Unlock(ctx, staffID, a.ID, e.now())
		if err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", a.Name, err))
			continue
		}
		if !inserted {
			continue
		}

		e.metrics.Inc(observability.CounterAchievementUnlocked)
		e.logger.Info("achievement unlocked",
			zap.String("staff_id", staffID),
			zap.String("achievement", a.Name),
			zap.Int("reward", a.PointsReward))
		unlocked = append(unlocked, a)
	}
	return unlocked, errors.Join(errs...)
}

// Unlocked lists the achievements a staff member holds.
func (e *AchievementEngine) Unlocked(ctx context.Context, staffID string) ([]domain.Achievement, error) {
	held, err := e.achievements.ListUnlocked(ctx, staffID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Achievement, 0, len(held))
	for _, ua := range held {
		a, err := e.achievements.GetByID(ctx, ua.AchievementID)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, nil
}
