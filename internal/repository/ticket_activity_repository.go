package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-labs/support-rewards/internal/domain"
)

// TicketMessageRepository stores replies posted on a ticket thread.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

// TicketHistoryRepository stores the audit trail of ticket changes.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return r.pool.QueryRow(ctx, `
        INSERT INTO ticket_messages (id, ticket_id, author_id, body, internal)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`,
		msg.ID, msg.TicketID, msg.AuthorID, msg.Body, msg.Internal,
	).Scan(&msg.CreatedAt)
}

// ListByTicket returns the thread oldest first. Column order matches the
// struct layout of domain.TicketMessage.
func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	return listByTicket[domain.TicketMessage](ctx, r.pool, `
        SELECT id, ticket_id, author_id, body, internal, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`, ticketID)
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	return r.pool.QueryRow(ctx, `
        INSERT INTO ticket_history (id, ticket_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`,
		history.ID, history.TicketID, history.ChangedByID, history.ChangeType, history.OldValue, history.NewValue,
	).Scan(&history.CreatedAt)
}

// ListByTicket returns audit rows oldest first. Column order matches the
// struct layout of domain.TicketHistory.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return listByTicket[domain.TicketHistory](ctx, r.pool, `
        SELECT id, ticket_id, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`, ticketID)
}

func listByTicket[T any](ctx context.Context, pool *pgxpool.Pool, query, ticketID string) ([]T, error) {
	rows, err := pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[T])
}
