package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// StaffRepository handles staff profiles and the points ledger.
//
// MutatePoints is the only path that writes points, level and the resolution
// counters.
type StaffRepository interface {
	GetProfile(ctx context.Context, id string) (*domain.StaffProfile, error)
	ListProfiles(ctx context.Context, filter StaffFilter) ([]domain.StaffProfile, error)
	UpdateAggregates(ctx context.Context, id string, agg domain.StaffAggregates) error
	SetRecognition(ctx context.Context, id string, recognition *string) error
	MutatePoints(ctx context.Context, staffID string, mutation PointsMutation) (MutationResult, error)
	ListLedger(ctx context.Context, staffID string, limit int) ([]domain.LedgerEntry, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Active *bool
	Limit  int
	Offset int
}

// PointsMutation describes one ledger operation. Apply runs against the
// locked account; its error aborts the mutation untouched. Normalization
// (floors and level) happens after Apply.
type PointsMutation struct {
	Reason         domain.LedgerReason
	IdempotencyKey string
	Note           string
	Apply          func(*domain.PointsAccount) error
	// Purchase is recorded in the same transaction as the deduction.
	Purchase *domain.Purchase
}

// MutationResult reports the account after a mutation.
type MutationResult struct {
	Account  domain.PointsAccount
	Entry    *domain.LedgerEntry
	Replayed bool
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const profileColumns = `
        id, name, email, role, active_flag, created_at, updated_at,
        points, level, tickets_resolved, total_tickets_handled,
        average_resolution_time_hours, customer_satisfaction_rating, average_response_time_minutes,
        current_streak, monthly_growth, special_recognition`

func scanProfile(row pgx.Row, p *domain.StaffProfile) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Role,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Points,
		&p.Level,
		&p.TicketsResolved,
		&p.TotalTicketsHandled,
		&p.AverageResolutionTimeHours,
		&p.CustomerSatisfactionRating,
		&p.AverageResponseTimeMinutes,
		&p.CurrentStreak,
		&p.MonthlyGrowth,
		&p.SpecialRecognition,
	)
}

func (r *staffRepository) GetProfile(ctx context.Context, id string) (*domain.StaffProfile, error) {
	query := `SELECT` + profileColumns + `
        FROM users WHERE id=$1 AND role IN ('staff', 'admin')`

	var profile domain.StaffProfile
	if err := scanProfile(r.pool.QueryRow(ctx, query, id), &profile); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStaffNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *staffRepository) ListProfiles(ctx context.Context, filter StaffFilter) ([]domain.StaffProfile, error) {
	query := `SELECT` + profileColumns + `
        FROM users`
	args := []any{}
	clauses := []string{"role IN ('staff', 'admin')"}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	query += " WHERE " + strings.Join(clauses, " AND ")
	query += " ORDER BY created_at ASC, id ASC"

	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffProfile
	for rows.Next() {
		var profile domain.StaffProfile
		if err := scanProfile(rows, &profile); err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, rows.Err()
}

func (r *staffRepository) UpdateAggregates(ctx context.Context, id string, agg domain.StaffAggregates) error {
	const query = `
        UPDATE users
        SET average_resolution_time_hours=$1,
            customer_satisfaction_rating=COALESCE($2, customer_satisfaction_rating),
            average_response_time_minutes=COALESCE($3, average_response_time_minutes),
            updated_at=NOW()
        WHERE id=$4 AND role IN ('staff', 'admin')`

	cmd, err := r.pool.Exec(ctx, query,
		agg.AverageResolutionTimeHours,
		agg.CustomerSatisfactionRating,
		agg.AverageResponseTimeMinutes,
		id,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.ErrStaffNotFound
	}
	return nil
}

func (r *staffRepository) SetRecognition(ctx context.Context, id string, recognition *string) error {
	const query = `
        UPDATE users SET special_recognition=$1, updated_at=NOW()
        WHERE id=$2 AND role IN ('staff', 'admin')`

	cmd, err := r.pool.Exec(ctx, query, recognition, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.ErrStaffNotFound
	}
	return nil
}

// MutatePoints locks the staff row, skips already-applied idempotency keys,
// applies the mutation and writes the ledger entry in one transaction.
func (r *staffRepository) MutatePoints(ctx context.Context, staffID string, mutation PointsMutation) (MutationResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return MutationResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const lockQuery = `
        SELECT id, points, level, tickets_resolved, total_tickets_handled
        FROM users WHERE id=$1 AND role IN ('staff', 'admin')
        FOR UPDATE`

	var account domain.PointsAccount
	if err := tx.QueryRow(ctx, lockQuery, staffID).Scan(
		&account.StaffID,
		&account.Points,
		&account.Level,
		&account.TicketsResolved,
		&account.TotalTicketsHandled,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MutationResult{}, apperrors.ErrStaffNotFound
		}
		return MutationResult{}, err
	}

	if mutation.IdempotencyKey != "" {
		var applied bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM points_ledger WHERE idempotency_key=$1)`,
			mutation.IdempotencyKey,
		).Scan(&applied); err != nil {
			return MutationResult{}, err
		}
		if applied {
			return MutationResult{Account: account, Replayed: true}, nil
		}
	}

	before := account.Points
	if mutation.Apply != nil {
		if err := mutation.Apply(&account); err != nil {
			return MutationResult{}, err
		}
	}
	account.Normalize()

	const updateQuery = `
        UPDATE users
        SET points=$1, level=$2, tickets_resolved=$3, total_tickets_handled=$4, updated_at=NOW()
        WHERE id=$5`
	if _, err := tx.Exec(ctx, updateQuery,
		account.Points,
		account.Level,
		account.TicketsResolved,
		account.TotalTicketsHandled,
		staffID,
	); err != nil {
		return MutationResult{}, err
	}

	entry := &domain.LedgerEntry{
		ID:          uuid.NewString(),
		StaffID:     staffID,
		Reason:      mutation.Reason,
		Delta:       account.Points - before,
		PointsAfter: account.Points,
		LevelAfter:  account.Level,
		Note:        mutation.Note,
	}
	if mutation.IdempotencyKey != "" {
		key := mutation.IdempotencyKey
		entry.IdempotencyKey = &key
	}

	const ledgerQuery = `
        INSERT INTO points_ledger (id, staff_id, reason, delta, points_after, level_after, idempotency_key, note)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	if err := tx.QueryRow(ctx, ledgerQuery,
		entry.ID,
		entry.StaffID,
		entry.Reason,
		entry.Delta,
		entry.PointsAfter,
		entry.LevelAfter,
		entry.IdempotencyKey,
		entry.Note,
	).Scan(&entry.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return r.replayed(ctx, staffID)
		}
		return MutationResult{}, err
	}

	if p := mutation.Purchase; p != nil {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.PurchasedAt.IsZero() {
			p.PurchasedAt = time.Now().UTC()
		}
		const purchaseQuery = `
            INSERT INTO purchases (id, staff_id, item_id, points_cost, purchased_at)
            VALUES ($1,$2,$3,$4,$5)`
		if _, err := tx.Exec(ctx, purchaseQuery, p.ID, staffID, p.ItemID, p.PointsCost, p.PurchasedAt); err != nil {
			return MutationResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Account: account, Entry: entry}, nil
}

func (r *staffRepository) replayed(ctx context.Context, staffID string) (MutationResult, error) {
	profile, err := r.GetProfile(ctx, staffID)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Account: profile.Account(), Replayed: true}, nil
}

func (r *staffRepository) ListLedger(ctx context.Context, staffID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, staff_id, reason, delta, points_after, level_after, idempotency_key, note, created_at
        FROM points_ledger WHERE staff_id=$1
        ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, staffID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.StaffID,
			&entry.Reason,
			&entry.Delta,
			&entry.PointsAfter,
			&entry.LevelAfter,
			&entry.IdempotencyKey,
			&entry.Note,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
