package domain

import "time"

// DateLayout is the calendar-day format used for every journal date.
const DateLayout = "2006-01-02"

// Category classifies where a logged action was spent.
type Category string

const (
	CategoryJob     Category = "job"
	CategoryCompany Category = "company"
	CategoryFamily  Category = "family"
	// CategoryUnknown marks stored values outside the recognised set.
	CategoryUnknown Category = ""
)

// ParseCategory maps a raw value onto the closed set; anything else is CategoryUnknown.
func ParseCategory(raw string) Category {
	switch Category(raw) {
	case CategoryJob:
		return CategoryJob
	case CategoryCompany:
		return CategoryCompany
	case CategoryFamily:
		return CategoryFamily
	}
	return CategoryUnknown
}

// Impact rates how much a logged action moved the needle.
type Impact string

const (
	ImpactHigh    Impact = "High"
	ImpactMed     Impact = "Med"
	ImpactLow     Impact = "Low"
	ImpactUnknown Impact = ""
)

// ParseImpact maps a raw value onto the closed set; anything else is ImpactUnknown.
func ParseImpact(raw string) Impact {
	switch Impact(raw) {
	case ImpactHigh:
		return ImpactHigh
	case ImpactMed:
		return ImpactMed
	case ImpactLow:
		return ImpactLow
	}
	return ImpactUnknown
}

// LogEntry is a single recorded action on a calendar day.
type LogEntry struct {
	ID         string
	Date       string
	Title      string
	Category   string
	TimeSpent  *int
	Impact     string
	Notes      string
	NextAction string
	CreatedAt  time.Time
}

// GoalType distinguishes long-running outcomes from weekly targets.
type GoalType string

const (
	GoalTypeOutcome GoalType = "outcome"
	GoalTypeWeekly  GoalType = "weekly"
)

// GoalStatus is the lifecycle of a goal.
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
)

// Goal tracks progress toward a target value.
type Goal struct {
	ID           string
	Type         GoalType
	Title        string
	TargetValue  *float64
	CurrentValue float64
	Status       GoalStatus
	CreatedAt    time.Time
}

// ReviewType is the cadence of a review.
type ReviewType string

const (
	ReviewTypeDaily  ReviewType = "daily"
	ReviewTypeWeekly ReviewType = "weekly"
)

// Review holds free-text reflection for a day or week.
type Review struct {
	ID           string
	Type         ReviewType
	Date         string
	Win          string
	Mistake      string
	Priority     string
	Summary      string
	Losses       string
	GoalMovement string
	TimeWaste    string
	NextTheme    string
	CreatedAt    time.Time
}

// IdentityScore is the daily self-rating; Date is unique.
type IdentityScore struct {
	Date      string
	Score     int
	Energy    int
	Stress    int
	CreatedAt time.Time
}

// NonNegotiable records whether a daily commitment was kept.
type NonNegotiable struct {
	Date      string
	Task      string
	Completed bool
}

// Idea is a captured thought for later content.
type Idea struct {
	ID        string
	Title     string
	Content   string
	Tags      string
	CreatedAt time.Time
}

// DiaryEntry is a dated free-form journal page.
type DiaryEntry struct {
	ID        string
	Title     string
	Content   string
	Mood      string
	Date      string
	CreatedAt time.Time
}

// StopDoing is a habit the user has committed to drop.
type StopDoing struct {
	ID        string
	Item      string
	CreatedAt time.Time
}

// DiaryFilter narrows a diary listing. Empty fields match everything.
type DiaryFilter struct {
	Search string
	Month  int
	Year   int
}
