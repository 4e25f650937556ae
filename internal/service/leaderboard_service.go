package service

import (
	"context"
	"sort"
	"strings"

	"github.com/helpdesk-labs/support-rewards/internal/auth"
	"github.com/helpdesk-labs/support-rewards/internal/domain"
	"github.com/helpdesk-labs/support-rewards/internal/repository"
	apperrors "github.com/helpdesk-labs/support-rewards/pkg/util"
)

// LeaderboardMetric selects the ranking key.
type LeaderboardMetric string

const (
	MetricPoints       LeaderboardMetric = "points"
	MetricResolved     LeaderboardMetric = "resolved"
	MetricSatisfaction LeaderboardMetric = "satisfaction"
	MetricGrowth       LeaderboardMetric = "growth"
)

// ParseLeaderboardMetric validates a metric name; empty means points.
func ParseLeaderboardMetric(raw string) (LeaderboardMetric, error) {
	switch m := LeaderboardMetric(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return MetricPoints, nil
	case MetricPoints, MetricResolved, MetricSatisfaction, MetricGrowth:
		return m, nil
	default:
		return "", apperrors.NewValidationError("unknown leaderboard metric", map[string]any{"metric": raw})
	}
}

func metricValue(p domain.StaffProfile, metric LeaderboardMetric) float64 {
	switch metric {
	case MetricResolved:
		return float64(p.TicketsResolved)
	case MetricSatisfaction:
		return p.CustomerSatisfactionRating
	case MetricGrowth:
		return p.MonthlyGrowth
	default:
		return float64(p.Points)
	}
}

// Rank orders staff by metric descending. Ties keep their input order. A
// positive limit truncates the result; the input is not modified.
func Rank(staff []domain.StaffProfile, metric LeaderboardMetric, limit int) []domain.StaffProfile {
	ranked := append([]domain.StaffProfile(nil), staff...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return metricValue(ranked[i], metric) > metricValue(ranked[j], metric)
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// RankOf returns 1 plus the number of staff with strictly more points,
// regardless of the metric a leaderboard is displayed by. Unknown ids rank 0.
func RankOf(staff []domain.StaffProfile, staffID string) int {
	var target *domain.StaffProfile
	for i := range staff {
		if staff[i].ID == staffID {
			target = &staff[i]
			break
		}
	}
	if target == nil {
		return 0
	}
	rank := 1
	for _, p := range staff {
		if p.Points > target.Points {
			rank++
		}
	}
	return rank
}

// TopPerformer returns the first profile holding the monthly recognition.
func TopPerformer(staff []domain.StaffProfile) *domain.StaffProfile {
	for i := range staff {
		if staff[i].IsTopPerformer() {
			p := staff[i]
			return &p
		}
	}
	return nil
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Position int
	Profile  domain.StaffProfile
}

// Leaderboard is the ranked view returned to callers.
type Leaderboard struct {
	Metric       LeaderboardMetric
	Entries      []LeaderboardEntry
	TotalStaff   int
	TopPerformer *domain.StaffProfile
	// CallerRank is the caller's points rank, 0 for non-staff callers.
	CallerRank int
}

// StaffStats is a staff member's personal summary.
type StaffStats struct {
	Profile           domain.StaffProfile
	Rank              int
	TotalStaff        int
	PointsToNextLevel int
	Achievements      []domain.Achievement
	Purchases         []domain.Purchase
}

// LeaderboardService serves ranked and personal views.
type LeaderboardService struct {
	staff        repository.StaffRepository
	marketplace  repository.MarketplaceRepository
	achievements *AchievementEngine
	defaultLimit int
}

// NewLeaderboardService constructs the service.
func NewLeaderboardService(staff repository.StaffRepository, marketplace repository.MarketplaceRepository, achievements *AchievementEngine, defaultLimit int) *LeaderboardService {
	return &LeaderboardService{
		staff:        staff,
		marketplace:  marketplace,
		achievements: achievements,
		defaultLimit: defaultLimit,
	}
}

func (s *LeaderboardService) activeStaff(ctx context.Context) ([]domain.StaffProfile, error) {
	active := true
	profiles, err := s.staff.ListProfiles(ctx, repository.StaffFilter{Active: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return profiles, nil
}

// Leaderboard ranks active staff. A non-positive limit uses the configured
// default; TotalStaff and TopPerformer always cover the full list.
func (s *LeaderboardService) Leaderboard(ctx context.Context, caller auth.Principal, metric LeaderboardMetric, limit int) (Leaderboard, error) {
	if err := auth.RequireRole(caller); err != nil {
		return Leaderboard{}, err
	}
	if metric == "" {
		metric = MetricPoints
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	profiles, err := s.activeStaff(ctx)
	if err != nil {
		return Leaderboard{}, err
	}

	ranked := Rank(profiles, metric, limit)
	board := Leaderboard{
		Metric:       metric,
		Entries:      make([]LeaderboardEntry, 0, len(ranked)),
		TotalStaff:   len(profiles),
		TopPerformer: TopPerformer(profiles),
	}
	for i, p := range ranked {
		board.Entries = append(board.Entries, LeaderboardEntry{Position: i + 1, Profile: p})
	}
	if caller.Role.IsStaff() {
		board.CallerRank = RankOf(profiles, caller.ID)
	}
	return board, nil
}

// StaffStats returns a staff member's profile, points rank, unlocked
// achievements and purchases.
func (s *LeaderboardService) StaffStats(ctx context.Context, caller auth.Principal, staffID string) (StaffStats, error) {
	if err := auth.RequireSelfOrAdmin(caller, staffID); err != nil {
		return StaffStats{}, err
	}

	profile, err := s.staff.GetProfile(ctx, staffID)
	if err != nil {
		return StaffStats{}, notFoundOr(err, apperrors.ErrStaffNotFound, "staff member", staffID)
	}
	profiles, err := s.activeStaff(ctx)
	if err != nil {
		return StaffStats{}, err
	}
	unlocked, err := s.achievements.Unlocked(ctx, staffID)
	if err != nil {
		return StaffStats{}, apperrors.MapError(err)
	}
	purchases, err := s.marketplace.ListPurchases(ctx, staffID)
	if err != nil {
		return StaffStats{}, apperrors.MapError(err)
	}

	return StaffStats{
		Profile:           *profile,
		Rank:              RankOf(profiles, staffID),
		TotalStaff:        len(profiles),
		PointsToNextLevel: domain.PointsToNextLevel(profile.Points),
		Achievements:      unlocked,
		Purchases:         purchases,
	}, nil
}
