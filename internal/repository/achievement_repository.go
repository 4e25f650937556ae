package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// AchievementRepository persists the achievement catalog and unlocks.
type AchievementRepository interface {
	// Upsert inserts or refreshes a catalog entry keyed by name.
	Upsert(ctx context.Context, achievement *domain.Achievement) error
	GetByID(ctx context.Context, id string) (*domain.Achievement, error)
	ListActive(ctx context.Context) ([]domain.Achievement, error)
	ListUnlocked(ctx context.Context, staffID string) ([]domain.UserAchievement, error)
	// Unlock records the pair if absent and reports whether it inserted.
	Unlock(ctx context.Context, staffID, achievementID string, at time.Time) (bool, error)
}

type achievementRepository struct {
	pool *pgxpool.Pool
}

// NewAchievementRepository builds repository.
func NewAchievementRepository(pool *pgxpool.Pool) AchievementRepository {
	return &achievementRepository{pool: pool}
}

func (r *achievementRepository) Upsert(ctx context.Context, a *domain.Achievement) error {
	const query = `
        INSERT INTO achievements (id, key, name, description, points_reward, is_active)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (name) DO UPDATE
        SET key=EXCLUDED.key, description=EXCLUDED.description,
            points_reward=EXCLUDED.points_reward, is_active=EXCLUDED.is_active
        RETURNING id, created_at`
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return r.pool.QueryRow(ctx, query,
		a.ID,
		a.Key,
		a.Name,
		a.Description,
		a.PointsReward,
		a.IsActive,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *achievementRepository) GetByID(ctx context.Context, id string) (*domain.Achievement, error) {
	const query = `
        SELECT id, key, name, description, points_reward, is_active, created_at
        FROM achievements WHERE id=$1`
	var a domain.Achievement
	if err := scanAchievement(r.pool.QueryRow(ctx, query, id), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAchievementNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *achievementRepository) ListActive(ctx context.Context) ([]domain.Achievement, error) {
	const query = `
        SELECT id, key, name, description, points_reward, is_active, created_at
        FROM achievements WHERE is_active ORDER BY created_at ASC, name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Achievement
	for rows.Next() {
		var a domain.Achievement
		if err := scanAchievement(rows, &a); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *achievementRepository) ListUnlocked(ctx context.Context, staffID string) ([]domain.UserAchievement, error) {
	const query = `
        SELECT staff_id, achievement_id, unlocked_at
        FROM user_achievements WHERE staff_id=$1 ORDER BY unlocked_at ASC`
	rows, err := r.pool.Query(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserAchievement
	for rows.Next() {
		var ua domain.UserAchievement
		if err := rows.Scan(&ua.StaffID, &ua.AchievementID, &ua.UnlockedAt); err != nil {
			return nil, err
		}
		result = append(result, ua)
	}
	return result, rows.Err()
}

func (r *achievementRepository) Unlock(ctx context.Context, staffID, achievementID string, at time.Time) (bool, error) {
	const query = `
        INSERT INTO user_achievements (staff_id, achievement_id, unlocked_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (staff_id, achievement_id) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, staffID, achievementID, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanAchievement(row pgx.Row, a *domain.Achievement) error {
	return row.Scan(
		&a.ID,
		&a.Key,
		&a.Name,
		&a.Description,
		&a.PointsReward,
		&a.IsActive,
		&a.CreatedAt,
	)
}
