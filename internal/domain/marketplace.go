package domain

import "time"

// MarketplaceItem is a redeemable reward from the fixed catalog.
type MarketplaceItem struct {
	ID          string
	Name        string
	Description string
	PointsCost  int
	CreatedAt   time.Time
}

// Purchase records a completed redemption.
type Purchase struct {
	ID          string
	StaffID     string
	ItemID      string
	PointsCost  int
	PurchasedAt time.Time
}
