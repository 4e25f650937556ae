package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// AggregateRecalculator recomputes a staff member's averages from their
// resolved tickets.
type AggregateRecalculator struct {
	tickets repository.TicketRepository
	staff   repository.StaffRepository
	locker  Locker
	logger  *zap.Logger
}

// NewAggregateRecalculator constructs the recalculator.
func NewAggregateRecalculator(tickets repository.TicketRepository, staff repository.StaffRepository, locker Locker, logger *zap.Logger) *AggregateRecalculator {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &AggregateRecalculator{tickets: tickets, staff: staff, locker: locker, logger: logger}
}

// Recalculate reads the staff member's tickets fresh and stores the averages.
// Calls for the same staff member are serialized.
func (r *AggregateRecalculator) Recalculate(ctx context.Context, staffID string) (agg domain.StaffAggregates, err error) {
	ctx, span := startSpan(ctx, "aggregates.recalculate", attribute.String("staff.id", staffID))
	defer func() { endSpan(span, err) }()

	release, err := r.locker.Lock(ctx, "staff-aggregates:"+staffID)
	if err != nil {
		return agg, fmt.Errorf("lock aggregates: %w", err)
	}
	defer release()

	tickets, err := r.tickets.ListResolvedByStaff(ctx, staffID)
	if err != nil {
		return agg, fmt.Errorf("list resolved tickets: %w", err)
	}

	agg = ComputeAggregates(tickets)
	if err := r.staff.UpdateAggregates(ctx, staffID, agg); err != nil {
		if errors.Is(err, apperrors.ErrStaffNotFound) {
			return agg, apperrors.NewNotFound(apperrors.ErrStaffNotFound, "staff member", map[string]any{"staff_id": staffID})
		}
		return agg, fmt.Errorf("store aggregates: %w", err)
	}

	r.logger.Debug("aggregates recalculated",
		zap.String("staff_id", staffID),
		zap.Int("resolved", len(tickets)),
		zap.Float64("avg_resolution_hours", agg.AverageResolutionTimeHours))
	return agg, nil
}

// ComputeAggregates derives averages from resolved tickets. Tickets without a
// resolution time are ignored. The rating and response-time averages stay nil
// when no ticket carries the input.
func ComputeAggregates(tickets []domain.Ticket) domain.StaffAggregates {
	var (
		agg                         domain.StaffAggregates
		hoursSum, ratingSum, minSum float64
		resolved, rated, responded  int
	)

	for _, t := range tickets {
		if !t.Status.IsTerminal() || t.ResolutionTimeHours == nil {
			continue
		}
		resolved++
		hoursSum += *t.ResolutionTimeHours

		if t.CustomerRating != nil {
			rated++
			ratingSum += float64(*t.CustomerRating)
		}
		if t.FirstResponseAt != nil {
			responded++
			minSum += t.FirstResponseAt.Sub(t.CreatedAt).Minutes()
		}
	}

	if resolved > 0 {
		agg.AverageResolutionTimeHours = hoursSum / float64(resolved)
	}
	if rated > 0 {
		avg := ratingSum / float64(rated)
		agg.CustomerSatisfactionRating = &avg
	}
	if responded > 0 {
		avg := minSum / float64(responded)
		agg.AverageResponseTimeMinutes = &avg
	}
	return agg
}
