package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Set bundles every repository the engine depends on.
type Set struct {
	Users        UserRepository
	Staff        StaffRepository
	Tickets      TicketRepository
	History      TicketHistoryRepository
	Messages     TicketMessageRepository
	Achievements AchievementRepository
	Marketplace  MarketplaceRepository
}

// NewPostgresSet builds the Postgres-backed repositories.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Users:        NewUserRepository(pool),
		Staff:        NewStaffRepository(pool),
		Tickets:      NewTicketRepository(pool),
		History:      NewTicketHistoryRepository(pool),
		Messages:     NewTicketMessageRepository(pool),
		Achievements: NewAchievementRepository(pool),
		Marketplace:  NewMarketplaceRepository(pool),
	}
}
