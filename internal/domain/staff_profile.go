package domain

// RecognitionStaffOfTheMonth marks the leaderboard's top performer.
const RecognitionStaffOfTheMonth = "Staff of the Month"

// StaffProfile carries the gamification state of a staff or admin user.
//
// Points and Level are owned by the points ledger. The averages are owned by
// the aggregate recalculator. CustomerSatisfactionRating is zero until the
// first rated ticket is recalculated.
type StaffProfile struct {
	User
	Points                     int
	Level                      int
	TicketsResolved            int
	TotalTicketsHandled        int
	AverageResolutionTimeHours float64
	CustomerSatisfactionRating float64
	AverageResponseTimeMinutes *float64
	CurrentStreak              int
	MonthlyGrowth              float64
	SpecialRecognition         *string
}

// IsTopPerformer reports whether the profile holds the monthly recognition.
func (p StaffProfile) IsTopPerformer() bool {
	return p.SpecialRecognition != nil && *p.SpecialRecognition == RecognitionStaffOfTheMonth
}

// Account extracts the ledger-owned counters.
func (p StaffProfile) Account() PointsAccount {
	return PointsAccount{
		StaffID:             p.ID,
		Points:              p.Points,
		Level:               p.Level,
		TicketsResolved:     p.TicketsResolved,
		TotalTicketsHandled: p.TotalTicketsHandled,
	}
}

// StaffAggregates is the recalculator's output for one staff member. Nil
// pointers leave the stored value unchanged.
type StaffAggregates struct {
	AverageResolutionTimeHours float64
	CustomerSatisfactionRating *float64
	AverageResponseTimeMinutes *float64
}
