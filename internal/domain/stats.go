package domain

import (
	"sort"
	"time"
)

// RecentIdentityScoreLimit caps how many identity samples feed the average.
const RecentIdentityScoreLimit = 30

// Ratio is a derived percentage or mean. Valid is false when there was
// nothing to divide by, in which case Value is zero.
type Ratio struct {
	Value float64
	Valid bool
}

func ratioOf(numerator, denominator int) Ratio {
	if denominator == 0 {
		return Ratio{}
	}
	return Ratio{Value: float64(numerator) / float64(denominator) * 100, Valid: true}
}

// CategorySplit counts log entries per recognised category.
type CategorySplit struct {
	Job     int
	Company int
	Family  int
}

// ImpactSplit counts log entries per recognised impact level.
type ImpactSplit struct {
	High int
	Med  int
	Low  int
}

// Stats is the dashboard summary derived from the journal.
type Stats struct {
	TotalLogs        int
	Streak           int
	CategorySplit    CategorySplit
	ImpactSplit      ImpactSplit
	GrowthRatio      Ratio
	GoalProgress     Ratio
	AvgIdentityScore Ratio
}

// StatsInput bundles the collections the summary is computed from.
// Scores are expected most recent first and already limited.
type StatsInput struct {
	Logs    []LogEntry
	Goals   []Goal
	Reviews []Review
	Scores  []IdentityScore
}

// ComputeStats folds the journal into a Stats summary as of today.
// Reviews are accepted but do not contribute to any field.
func ComputeStats(in StatsInput, today time.Time) Stats {
	stats := Stats{TotalLogs: len(in.Logs)}

	growth := 0
	dates := make([]string, 0, len(in.Logs))
	for _, entry := range in.Logs {
		dates = append(dates, entry.Date)

		category := ParseCategory(entry.Category)
		impact := ParseImpact(entry.Impact)

		switch category {
		case CategoryJob:
			stats.CategorySplit.Job++
		case CategoryCompany:
			stats.CategorySplit.Company++
		case CategoryFamily:
			stats.CategorySplit.Family++
		case CategoryUnknown:
		}

		switch impact {
		case ImpactHigh:
			stats.ImpactSplit.High++
		case ImpactMed:
			stats.ImpactSplit.Med++
		case ImpactLow:
			stats.ImpactSplit.Low++
		case ImpactUnknown:
		}

		if category == CategoryCompany || impact == ImpactHigh {
			growth++
		}
	}

	stats.Streak = Streak(dates, today)
	stats.GrowthRatio = ratioOf(growth, len(in.Logs))

	completed := 0
	for _, goal := range in.Goals {
		if goal.Status == GoalStatusCompleted {
			completed++
		}
	}
	stats.GoalProgress = ratioOf(completed, len(in.Goals))

	if len(in.Scores) > 0 {
		sum := 0
		for _, sample := range in.Scores {
			sum += sample.Score
		}
		stats.AvgIdentityScore = Ratio{Value: float64(sum) / float64(len(in.Scores)), Valid: true}
	}

	return stats
}

// Streak counts consecutive calendar days with at least one log, ending today
// or, when nothing has been logged yet today, ending yesterday.
//
// Dates are compared as YYYY-MM-DD strings against the expected calendar
// sequence, so the first gap going backwards ends the run. Malformed dates
// never match and therefore end the run where they sort.
func Streak(dates []string, today time.Time) int {
	distinct := distinctDescending(dates)
	if len(distinct) == 0 {
		return 0
	}

	anchor := calendarDay(today)
	switch distinct[0] {
	case anchor.Format(DateLayout):
	case anchor.AddDate(0, 0, -1).Format(DateLayout):
		anchor = anchor.AddDate(0, 0, -1)
	default:
		return 0
	}

	streak := 0
	for i, date := range distinct {
		if date != anchor.AddDate(0, 0, -i).Format(DateLayout) {
			break
		}
		streak++
	}
	return streak
}

func distinctDescending(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, date := range dates {
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		out = append(out, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// calendarDay pins t to noon in its own location so day arithmetic is not
// disturbed by DST transitions.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, t.Location())
}
