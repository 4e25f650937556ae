package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// MarketplaceRepository reads the item catalog and purchase history.
// Purchases are written by StaffRepository.MutatePoints.
type MarketplaceRepository interface {
	UpsertItem(ctx context.Context, item *domain.MarketplaceItem) error
	GetItem(ctx context.Context, id string) (*domain.MarketplaceItem, error)
	ListItems(ctx context.Context) ([]domain.MarketplaceItem, error)
	ListPurchases(ctx context.Context, staffID string) ([]domain.Purchase, error)
}

type marketplaceRepository struct {
	pool *pgxpool.Pool
}

// NewMarketplaceRepository builds repository.
func NewMarketplaceRepository(pool *pgxpool.Pool) MarketplaceRepository {
	return &marketplaceRepository{pool: pool}
}

func (r *marketplaceRepository) UpsertItem(ctx context.Context, item *domain.MarketplaceItem) error {
	const query = `
        INSERT INTO marketplace_items (id, name, description, points_cost)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO UPDATE
        SET name=EXCLUDED.name, description=EXCLUDED.description, points_cost=EXCLUDED.points_cost
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		item.ID,
		item.Name,
		item.Description,
		item.PointsCost,
	).Scan(&item.CreatedAt)
}

func (r *marketplaceRepository) GetItem(ctx context.Context, id string) (*domain.MarketplaceItem, error) {
	const query = `
        SELECT id, name, description, points_cost, created_at
        FROM marketplace_items WHERE id=$1`
	var item domain.MarketplaceItem
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.PointsCost,
		&item.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *marketplaceRepository) ListItems(ctx context.Context) ([]domain.MarketplaceItem, error) {
	const query = `
        SELECT id, name, description, points_cost, created_at
        FROM marketplace_items ORDER BY points_cost ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MarketplaceItem
	for rows.Next() {
		var item domain.MarketplaceItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.PointsCost, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *marketplaceRepository) ListPurchases(ctx context.Context, staffID string) ([]domain.Purchase, error) {
	const query = `
        SELECT id, staff_id, item_id, points_cost, purchased_at
        FROM purchases WHERE staff_id=$1 ORDER BY purchased_at DESC`
	rows, err := r.pool.Query(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.StaffID, &p.ItemID, &p.PointsCost, &p.PurchasedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
