package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/helpdesk-labs/support-rewards/internal/auth"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/observability"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// PurchaseResult is returned by a successful redemption.
type PurchaseResult struct {
	Purchase domain.Purchase
	Balance  Balance
}

// MarketplaceService redeems points against the item catalog. It writes only
// through the points ledger and never triggers recalculation or achievements.
type MarketplaceService struct {
	items   repository.MarketplaceRepository
	ledger  *PointsLedger
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewMarketplaceService constructs the service.
func NewMarketplaceService(items repository.MarketplaceRepository, ledger *PointsLedger, logger *zap.Logger, metrics *observability.Metrics) *MarketplaceService {
	return &MarketplaceService{
		items:   items,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListItems returns the catalog.
func (s *MarketplaceService) ListItems(ctx context.Context) ([]domain.MarketplaceItem, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// Purchase redeems itemID for the calling staff member. expectedCost is the
// price the caller saw; a different catalog price is rejected. The balance
// check, deduction and purchase record are applied atomically.
func (s *MarketplaceService) Purchase(ctx context.Context, actor auth.Principal, itemID string, expectedCost int) (result PurchaseResult, err error) {
	if err := auth.RequireStaff(actor); err != nil {
		return PurchaseResult{}, err
	}

	ctx, span := startSpan(ctx, "marketplace.purchase",
		attribute.String("staff.id", actor.ID),
		attribute.String("item.id", itemID),
	)
	defer func() { endSpan(span, err) }()

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return PurchaseResult{}, notFoundOr(err, apperrors.ErrItemNotFound, "marketplace item", itemID)
	}
	if expectedCost != item.PointsCost {
		return PurchaseResult{}, apperrors.NewPriceMismatch(expectedCost, item.PointsCost)
	}

	purchase := &domain.Purchase{
		ID:          uuid.NewString(),
		StaffID:     actor.ID,
		ItemID:      item.ID,
		PointsCost:  item.PointsCost,
		PurchasedAt: s.now(),
	}
	balance, err := s.ledger.spend(ctx, actor.ID, item.PointsCost, purchase)
	if err != nil {
		return PurchaseResult{}, err
	}

	s.metrics.Inc(observability.CounterPurchases)
	s.logger.Info("marketplace purchase",
		zap.String("staff_id", actor.ID),
		zap.String("item_id", item.ID),
		zap.Int("cost", item.PointsCost),
		zap.Int("points", balance.Points))
	return PurchaseResult{Purchase: *purchase, Balance: balance}, nil
}

// ListPurchases returns the caller's purchases, newest first.
func (s *MarketplaceService) ListPurchases(ctx context.Context, actor auth.Principal, staffID string) ([]domain.Purchase, error) {
	if err := auth.RequireSelfOrAdmin(actor, staffID); err != nil {
		return nil, err
	}
	purchases, err := s.items.ListPurchases(ctx, staffID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return purchases, nil
}
