package domain

import "time"

// AchievementKey identifies the predicate an achievement is evaluated with.
type AchievementKey string

const (
	AchievementFirstResolution  AchievementKey = "first_resolution"
	AchievementResolutionMaster AchievementKey = "resolution_master"
	AchievementCustomerChampion AchievementKey = "customer_champion"
	AchievementLightningFast    AchievementKey = "lightning_fast"
)

// Achievement is a catalog entry unlockable once per staff member.
type Achievement struct {
	ID           string
	Key          AchievementKey
	Name         string
	Description  string
	PointsReward int
	IsActive     bool
	CreatedAt    time.Time
}

// UserAchievement records an unlock.
type UserAchievement struct {
	StaffID       string
	AchievementID string
	UnlockedAt    time.Time
}
