package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/events"
)

// GamificationPipeline wires the ledger, recalculator and achievement engine
// to ticket events. Handlers run in registration order:
//
//	resolved: award -> recalculate -> evaluate
//	reopened: deduct -> recalculate
//	survey:   recalculate
type GamificationPipeline struct {
	ledger       *PointsLedger
	aggregates   *AggregateRecalculator
	achievements *AchievementEngine
	logger       *zap.Logger
}

// NewGamificationPipeline constructs the pipeline.
func NewGamificationPipeline(ledger *PointsLedger, aggregates *AggregateRecalculator, achievements *AchievementEngine, logger *zap.Logger) *GamificationPipeline {
	return &GamificationPipeline{
		ledger:       ledger,
		aggregates:   aggregates,
		achievements: achievements,
		logger:       logger,
	}
}

// RegisterHandlers subscribes the pipeline to d.
func (p *GamificationPipeline) RegisterHandlers(d events.Dispatcher) {
	d.Subscribe(events.EventTicketResolved, "ledger.award", p.handleAward)
	d.Subscribe(events.EventTicketResolved, "aggregates.recalculate", p.handleRecalculate)
	d.Subscribe(events.EventTicketResolved, "achievements.evaluate", p.handleEvaluate)

	d.Subscribe(events.EventTicketReopened, "ledger.deduct", p.handleDeduct)
	d.Subscribe(events.EventTicketReopened, "aggregates.recalculate", p.handleRecalculate)

	d.Subscribe(events.EventSurveySubmitted, "aggregates.recalculate", p.handleRecalculate)
}

func (p *GamificationPipeline) handleAward(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	balance, replayed, err := p.ledger.award(ctx, payload.StaffID, payload.ResolutionTimeHours, event.ID+":award")
	if err != nil {
		return err
	}
	p.logger.Info("resolution awarded",
		zap.String("ticket_id", event.TicketID),
		zap.String("staff_id", payload.StaffID),
		zap.Float64("hours", payload.ResolutionTimeHours),
		zap.Int("points", balance.Points),
		zap.Int("level", balance.Level),
		zap.Bool("replayed", replayed))
	return nil
}

func (p *GamificationPipeline) handleDeduct(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReopenedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	balance, replayed, err := p.ledger.deduct(ctx, payload.StaffID, payload.PriorResolutionTimeHours, event.ID+":deduct")
	if err != nil {
		return err
	}
	p.logger.Info("resolution withdrawn",
		zap.String("ticket_id", event.TicketID),
		zap.String("staff_id", payload.StaffID),
		zap.Float64("prior_hours", payload.PriorResolutionTimeHours),
		zap.Int("points", balance.Points),
		zap.Int("level", balance.Level),
		zap.Bool("replayed", replayed))
	return nil
}

func (p *GamificationPipeline) handleRecalculate(ctx context.Context, event events.Event) error {
	staffID, err := staffIDOf(event)
	if err != nil {
		return err
	}
	_, err = p.aggregates.Recalculate(ctx, staffID)
	return err
}

func (p *GamificationPipeline) handleEvaluate(ctx context.Context, event events.Event) error {
	staffID, err := staffIDOf(event)
	if err != nil {
		return err
	}
	_, err = p.achievements.Evaluate(ctx, staffID)
	return err
}

func staffIDOf(event events.Event) (string, error) {
	switch payload := event.Payload.(type) {
	case events.TicketResolvedPayload:
		return payload.StaffID, nil
	case events.TicketReopenedPayload:
		return payload.StaffID, nil
	case events.SurveySubmittedPayload:
		return payload.StaffID, nil
	default:
		return "", fmt.Errorf("unexpected payload %T", event.Payload)
	}
}
