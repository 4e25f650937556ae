package domain

const (
	// BaseResolutionPoints is credited for every resolution regardless of speed.
	BaseResolutionPoints = 20
	// PointsPerLevel is the width of a level band.
	PointsPerLevel = 500
)

// SpeedBonus returns the tiered bonus for a resolution duration.
func SpeedBonus(hours float64) int {
	switch {
	case hours <= 1:
		return 30
	case hours <= 4:
		return 20
	case hours <= 24:
		return 10
	default:
		return 0
	}
}

// ResolutionPoints is the amount awarded for a resolution and withdrawn by a
// reopen of the same duration.
func ResolutionPoints(hours float64) int {
	return BaseResolutionPoints + SpeedBonus(hours)
}

// LevelForPoints derives the level from a point balance.
func LevelForPoints(points int) int {
	level := points/PointsPerLevel + 1
	if level < 1 {
		return 1
	}
	return level
}

// PointsToNextLevel returns how many points separate the balance from the
// next level band.
func PointsToNextLevel(points int) int {
	if points < 0 {
		points = 0
	}
	return LevelForPoints(points)*PointsPerLevel - points
}
