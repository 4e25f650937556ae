package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID      *string
	AssignedStaffID *string
	Statuses        []domain.TicketStatus
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes the full row only while the stored version still equals
	// ticket.Version, then bumps ticket.Version. A lost race returns
	// ErrStaleTicket.
	Update(ctx context.Context, ticket *domain.Ticket) error
	// SetFirstResponse stamps first_response_at unless it is already set.
	SetFirstResponse(ctx context.Context, id string, at time.Time) (bool, error)
	// SetRating stores a rating on an unrated resolved or closed ticket and
	// reports whether the write happened.
	SetRating(ctx context.Context, id string, rating int, at time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListResolvedByStaff returns the staff member's resolved or closed
	// tickets that carry a resolution time.
	ListResolvedByStaff(ctx context.Context, staffID string) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        id, subject, description, status, priority, customer_id, assigned_staff_id,
        customer_rating, first_response_at, resolved_at, resolution_time_hours, created_at, updated_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, subject, description, status, priority, customer_id, assigned_staff_id, created_at, updated_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8,1)`
	ticket.Version = 1
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CustomerID,
		ticket.AssignedStaffID,
		ticket.CreatedAt,
	)
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, assigned_staff_id=$5,
            customer_rating=$6, first_response_at=$7, resolved_at=$8, resolution_time_hours=$9, updated_at=$10,
            version=version+1
        WHERE id=$11 AND version=$12`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedStaffID,
		ticket.CustomerRating,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.ResolutionTimeHours,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.missOrStale(ctx, ticket.ID)
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) SetFirstResponse(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET first_response_at=$2, updated_at=$2, version=version+1
        WHERE id=$1 AND first_response_at IS NULL`
	return r.conditionalWrite(ctx, id, query, id, at)
}

func (r *ticketRepository) SetRating(ctx context.Context, id string, rating int, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET customer_rating=$2, updated_at=$3, version=version+1
        WHERE id=$1 AND customer_rating IS NULL AND status IN ('resolved', 'closed')`
	return r.conditionalWrite(ctx, id, query, id, rating, at)
}

func (r *ticketRepository) conditionalWrite(ctx context.Context, id, query string, args ...any) (bool, error) {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}
	if err := r.missOrStale(ctx, id); errors.Is(err, apperrors.ErrTicketNotFound) {
		return false, err
	}
	return false, nil
}

// missOrStale explains a zero-row conditional update.
func (r *ticketRepository) missOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrTicketNotFound
	}
	return ErrStaleTicket
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ` FROM tickets WHERE id=$1`

	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ` FROM tickets`
	args := []any{}
	clauses := []string{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssignedStaffID != nil {
		args = append(args, *filter.AssignedStaffID)
		clauses = append(clauses, fmt.Sprintf("assigned_staff_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	return r.fetchMany(ctx, query, args...)
}

func (r *ticketRepository) ListResolvedByStaff(ctx context.Context, staffID string) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + `
        FROM tickets
        WHERE assigned_staff_id=$1 AND status IN ('resolved', 'closed') AND resolution_time_hours IS NOT NULL
        ORDER BY resolved_at ASC`
	return r.fetchMany(ctx, query, staffID)
}

func (r *ticketRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CustomerID,
		&ticket.AssignedStaffID,
		&ticket.CustomerRating,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.ResolutionTimeHours,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
	)
}
