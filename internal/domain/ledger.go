package domain

import "time"

// LedgerReason classifies a points mutation.
type LedgerReason string

const (
	LedgerReasonAward       LedgerReason = "award"
	LedgerReasonDeduct      LedgerReason = "deduct"
	LedgerReasonSpend       LedgerReason = "spend"
	LedgerReasonAchievement LedgerReason = "achievement"
	LedgerReasonBonus       LedgerReason = "bonus"
)

// PointsAccount is the row a ledger mutation operates on.
type PointsAccount struct {
	StaffID             string
	Points              int
	Level               int
	TicketsResolved     int
	TotalTicketsHandled int
}

// Normalize applies the non-negative floors and re-derives the level.
func (a *PointsAccount) Normalize() {
	if a.Points < 0 {
		a.Points = 0
	}
	if a.TicketsResolved < 0 {
		a.TicketsResolved = 0
	}
	if a.TotalTicketsHandled < 0 {
		a.TotalTicketsHandled = 0
	}
	a.Level = LevelForPoints(a.Points)
}

// LedgerEntry is the audit row written alongside every applied mutation.
type LedgerEntry struct {
	ID             string
	StaffID        string
	Reason         LedgerReason
	Delta          int
	PointsAfter    int
	LevelAfter     int
	IdempotencyKey *string
	Note           string
	CreatedAt      time.Time
}
