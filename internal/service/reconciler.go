package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// ReconcileReport summarizes a reconciliation run.
type ReconcileReport struct {
	Staff    int
	Unlocked int
	Failures map[string]error
}

// Reconciler recomputes aggregates and achievements for every staff member.
// It repairs state left behind when an event handler failed after the ticket
// itself was persisted.
type Reconciler struct {
	staff        repository.StaffRepository
	aggregates   *AggregateRecalculator
	achievements *AchievementEngine
	logger       *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(staff repository.StaffRepository, aggregates *AggregateRecalculator, achievements *AchievementEngine, logger *zap.Logger) *Reconciler {
	return &Reconciler{staff: staff, aggregates: aggregates, achievements: achievements, logger: logger}
}

// Reconcile walks all staff. A failure for one member is recorded and the run
// continues with the next.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	profiles, err := r.staff.ListProfiles(ctx, repository.StaffFilter{})
	if err != nil {
		return ReconcileReport{}, apperrors.MapError(err)
	}

	report := ReconcileReport{Failures: map[string]error{}}
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Staff++
		if _, err := r.aggregates.Recalculate(ctx, p.ID); err != nil {
			report.Failures[p.ID] = fmt.Errorf("recalculate: %w", err)
			r.logger.Warn("reconcile aggregates", zap.String("staff_id", p.ID), zap.Error(err))
			continue
		}
		unlocked, err := r.achievements.Evaluate(ctx, p.ID)
		if err != nil {
			report.Failures[p.ID] = fmt.Errorf("evaluate: %w", err)
			r.logger.Warn("reconcile achievements", zap.String("staff_id", p.ID), zap.Error(err))
			continue
		}
		report.Unlocked += len(unlocked)
	}

	r.logger.Info("reconcile finished",
		zap.Int("staff", report.Staff),
		zap.Int("unlocked", report.Unlocked),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}
