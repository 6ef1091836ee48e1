package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statsNow = time.Date(2026, time.October, 18, 15, 30, 0, 0, time.UTC)

func daysAgo(n int) string {
	return statsNow.AddDate(0, 0, -n).Format(DateLayout)
}

func TestStreak(t *testing.T) {
	cases := []struct {
		name  string
		dates []string
		want  int
	}{
		{name: "empty", dates: nil, want: 0},
		{name: "three consecutive ending today", dates: []string{daysAgo(0), daysAgo(1), daysAgo(2)}, want: 3},
		{name: "missing today and yesterday", dates: []string{daysAgo(2), daysAgo(3)}, want: 0},
		{name: "gap two days back", dates: []string{daysAgo(0), daysAgo(1), daysAgo(3)}, want: 2},
		{name: "duplicates collapse", dates: []string{daysAgo(0), daysAgo(0), daysAgo(1)}, want: 2},
		{name: "unordered input", dates: []string{daysAgo(2), daysAgo(0), daysAgo(1)}, want: 3},
		{name: "ends yesterday", dates: []string{daysAgo(1), daysAgo(2), daysAgo(4)}, want: 2},
		{name: "future date breaks run", dates: []string{"2099-01-01", daysAgo(0)}, want: 0},
		{name: "malformed date sorts first and voids run", dates: []string{daysAgo(0), daysAgo(1), "yesterday"}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Streak(tc.dates, statsNow))
		})
	}
}

func TestStreakAcrossMonthBoundary(t *testing.T) {
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	dates := []string{"2026-03-01", "2026-02-28", "2026-02-27"}
	assert.Equal(t, 3, Streak(dates, now))
}

func TestStreakUsesClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 20:00 UTC on the 17th is already the 18th at UTC+9.
	now := time.Date(2026, time.October, 17, 20, 0, 0, 0, time.UTC).In(loc)
	assert.Equal(t, 1, Streak([]string{"2026-10-18"}, now))
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(StatsInput{}, statsNow)

	assert.Equal(t, 0, stats.TotalLogs)
	assert.Equal(t, 0, stats.Streak)
	assert.False(t, stats.GrowthRatio.Valid)
	assert.False(t, stats.GoalProgress.Valid)
	assert.False(t, stats.AvgIdentityScore.Valid)
}

func TestComputeStatsScenario(t *testing.T) {
	in := StatsInput{
		Logs: []LogEntry{
			{Date: daysAgo(0), Category: "job", Impact: "High"},
			{Date: daysAgo(0), Category: "company", Impact: "Med"},
			{Date: daysAgo(1), Category: "family", Impact: "Low"},
		},
	}

	stats := ComputeStats(in, statsNow)

	assert.Equal(t, 3, stats.TotalLogs)
	assert.Equal(t, 2, stats.Streak)
	assert.Equal(t, CategorySplit{Job: 1, Company: 1, Family: 1}, stats.CategorySplit)
	assert.Equal(t, ImpactSplit{High: 1, Med: 1, Low: 1}, stats.ImpactSplit)
	require.True(t, stats.GrowthRatio.Valid)
	assert.InDelta(t, 66.6667, stats.GrowthRatio.Value, 0.001)
}

func TestComputeStatsUnknownValuesOnlyCountTowardTotal(t *testing.T) {
	in := StatsInput{
		Logs: []LogEntry{
			{Date: daysAgo(0), Category: "hobby", Impact: "Huge"},
			{Date: daysAgo(0), Category: "job", Impact: ""},
			{Date: daysAgo(0), Category: "", Impact: "Low"},
		},
	}

	stats := ComputeStats(in, statsNow)

	assert.Equal(t, 3, stats.TotalLogs)
	split := stats.CategorySplit
	assert.Equal(t, 1, split.Job+split.Company+split.Family)
	impact := stats.ImpactSplit
	assert.Equal(t, 1, impact.High+impact.Med+impact.Low)
	require.True(t, stats.GrowthRatio.Valid)
	assert.Zero(t, stats.GrowthRatio.Value)
}

func TestComputeStatsPaddedValuesAreUnrecognised(t *testing.T) {
	in := StatsInput{Logs: []LogEntry{{Date: daysAgo(0), Category: " company", Impact: "High "}}}

	stats := ComputeStats(in, statsNow)

	assert.Equal(t, 1, stats.TotalLogs)
	assert.Equal(t, CategorySplit{}, stats.CategorySplit)
	assert.Equal(t, ImpactSplit{}, stats.ImpactSplit)
	require.True(t, stats.GrowthRatio.Valid)
	assert.Zero(t, stats.GrowthRatio.Value)
}

func TestComputeStatsGrowthRatioSingleCompanyLog(t *testing.T) {
	stats := ComputeStats(StatsInput{Logs: []LogEntry{{Date: daysAgo(0), Category: "company", Impact: "Low"}}}, statsNow)

	require.True(t, stats.GrowthRatio.Valid)
	assert.InDelta(t, 100, stats.GrowthRatio.Value, 0.0001)
}

func TestComputeStatsGoalProgress(t *testing.T) {
	in := StatsInput{Goals: []Goal{{Status: GoalStatusCompleted}, {Status: GoalStatusActive}}}

	stats := ComputeStats(in, statsNow)

	require.True(t, stats.GoalProgress.Valid)
	assert.InDelta(t, 50, stats.GoalProgress.Value, 0.0001)
}

func TestComputeStatsAverageIdentityScore(t *testing.T) {
	in := StatsInput{Scores: []IdentityScore{{Score: 8}, {Score: 6}, {Score: 7}}}

	stats := ComputeStats(in, statsNow)

	require.True(t, stats.AvgIdentityScore.Valid)
	assert.InDelta(t, 7, stats.AvgIdentityScore.Value, 0.0001)
}

func TestComputeStatsIgnoresReviews(t *testing.T) {
	base := StatsInput{Logs: []LogEntry{{Date: daysAgo(0), Category: "job", Impact: "Med"}}}
	withReviews := base
	withReviews.Reviews = []Review{{Type: ReviewTypeDaily, Date: daysAgo(0)}, {Type: ReviewTypeWeekly, Date: daysAgo(3)}}

	assert.Equal(t, ComputeStats(base, statsNow), ComputeStats(withReviews, statsNow))
}

func TestParseEnumsFallThroughToUnknown(t *testing.T) {
	assert.Equal(t, CategoryUnknown, ParseCategory(" company "))
	assert.Equal(t, CategoryCompany, ParseCategory("company"))
	assert.Equal(t, ImpactUnknown, ParseImpact("High "))
	assert.Equal(t, CategoryUnknown, ParseCategory("Company"))
	assert.Equal(t, ImpactHigh, ParseImpact("High"))
	assert.Equal(t, ImpactUnknown, ParseImpact("high"))
}
