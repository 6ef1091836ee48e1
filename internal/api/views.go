package api

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/futureself/internal/domain"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges writes that return no record.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse describes the service for probes and the dashboard.
type HealthResponse struct {
	Status       string `json:"status"`
	Store        string `json:"store"`
	AIConfigured bool   `json:"ai_configured"`
}

// CreateLogRequest is the payload for POST /api/logs.
type CreateLogRequest struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	TimeSpent   *int   `json:"time_spent"`
	ImpactLevel string `json:"impact_level"`
	Notes       string `json:"notes"`
	NextAction  string `json:"next_action"`
}

// LogView exposes a log entry.
type LogView struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	TimeSpent   *int      `json:"time_spent"`
	ImpactLevel string    `json:"impact_level"`
	Notes       string    `json:"notes"`
	NextAction  string    `json:"next_action"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateGoalRequest is the payload for POST /api/goals.
type CreateGoalRequest struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	TargetValue *float64 `json:"target_value"`
}

// UpdateGoalRequest is the payload for PATCH /api/goals/{id}.
type UpdateGoalRequest struct {
	CurrentValue *float64 `json:"current_value"`
	Status       *string  `json:"status"`
}

// GoalView exposes a goal.
type GoalView struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	TargetValue  *float64  `json:"target_value"`
	CurrentValue float64   `json:"current_value"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReviewView is used for both creating and listing reviews.
type ReviewView struct {
	ID           string     `json:"id,omitempty"`
	Type         string     `json:"type"`
	Date         string     `json:"date"`
	Win          string     `json:"win"`
	Mistake      string     `json:"mistake"`
	Priority     string     `json:"priority"`
	Summary      string     `json:"summary"`
	Losses       string     `json:"losses"`
	GoalMovement string     `json:"goal_movement"`
	TimeWaste    string     `json:"time_waste"`
	NextTheme    string     `json:"next_theme"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// IdentityScoreRequest is the payload for POST /api/identity-score.
type IdentityScoreRequest struct {
	Date   string `json:"date"`
	Score  int    `json:"score"`
	Energy int    `json:"energy"`
	Stress int    `json:"stress"`
}

// IdentityScoreView exposes the sample for one day.
type IdentityScoreView struct {
	Date      string    `json:"date"`
	Score     int       `json:"score"`
	Energy    int       `json:"energy"`
	Stress    int       `json:"stress"`
	CreatedAt time.Time `json:"created_at"`
}

// NonNegotiableView is used for both toggling and listing commitments.
type NonNegotiableView struct {
	Date      string `json:"date"`
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
}

// IdeaView is used for both creating and listing ideas.
type IdeaView struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Tags      string     `json:"tags"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// DiaryView is used for both creating and listing diary entries.
type DiaryView struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Mood      string     `json:"mood"`
	Date      string     `json:"date"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// StopDoingView is used for both creating and listing stop-doing items.
type StopDoingView struct {
	ID        string     `json:"id,omitempty"`
	Item      string     `json:"item"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// StatsView is the wire form of the dashboard summary.
type StatsView struct {
	TotalLogs        int               `json:"totalLogs"`
	Streak           int               `json:"streak"`
	CategorySplit    CategorySplitView `json:"categorySplit"`
	ImpactSplit      ImpactSplitView   `json:"impactSplit"`
	GrowthRatio      Percent           `json:"growthRatio"`
	GoalProgress     Percent           `json:"goalProgress"`
	AvgIdentityScore Percent           `json:"avgIdentityScore"`
}

// CategorySplitView counts logs per category.
type CategorySplitView struct {
	Job     int `json:"job"`
	Company int `json:"company"`
	Family  int `json:"family"`
}

// ImpactSplitView counts logs per impact level.
type ImpactSplitView struct {
	High int `json:"high"`
	Med  int `json:"med"`
	Low  int `json:"low"`
}

// Percent marshals a derived ratio the way dashboard clients expect: the
// number 0 when undefined, otherwise a string with one decimal place.
type Percent domain.Ratio

// MarshalJSON implements json.Marshaler.
func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("0"), nil
	}
	return json.Marshal(fmt.Sprintf("%.1f", p.Value))
}

// GenerationRequest is the optional payload of the AI endpoints.
type GenerationRequest struct {
	Platform string `json:"platform"`
}

// GenerationResponse carries generated text.
type GenerationResponse struct {
	Text string `json:"text"`
}

func toLogView(e domain.LogEntry) LogView {
	return LogView{
		ID:          e.ID,
		Date:        e.Date,
		Title:       e.Title,
		Category:    e.Category,
		TimeSpent:   e.TimeSpent,
		ImpactLevel: e.Impact,
		Notes:       e.Notes,
		NextAction:  e.NextAction,
		CreatedAt:   e.CreatedAt,
	}
}

func toGoalView(g domain.Goal) GoalView {
	return GoalView{
		ID:           g.ID,
		Type:         string(g.Type),
		Title:        g.Title,
		TargetValue:  g.TargetValue,
		CurrentValue: g.CurrentValue,
		Status:       string(g.Status),
		CreatedAt:    g.CreatedAt,
	}
}

func toReviewView(r domain.Review) ReviewView {
	created := r.CreatedAt
	return ReviewView{
		ID:           r.ID,
		Type:         string(r.Type),
		Date:         r.Date,
		Win:          r.Win,
		Mistake:      r.Mistake,
		Priority:     r.Priority,
		Summary:      r.Summary,
		Losses:       r.Losses,
		GoalMovement: r.GoalMovement,
		TimeWaste:    r.TimeWaste,
		NextTheme:    r.NextTheme,
		CreatedAt:    &created,
	}
}

func toIdentityScoreView(s domain.IdentityScore) IdentityScoreView {
	return IdentityScoreView{
		Date:      s.Date,
		Score:     s.Score,
		Energy:    s.Energy,
		Stress:    s.Stress,
		CreatedAt: s.CreatedAt,
	}
}

func toNonNegotiableView(n domain.NonNegotiable) NonNegotiableView {
	return NonNegotiableView{Date: n.Date, Task: n.Task, Completed: n.Completed}
}

func toIdeaView(i domain.Idea) IdeaView {
	created := i.CreatedAt
	return IdeaView{ID: i.ID, Title: i.Title, Content: i.Content, Tags: i.Tags, CreatedAt: &created}
}

func toDiaryView(d domain.DiaryEntry) DiaryView {
	created := d.CreatedAt
	return DiaryView{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Mood:      d.Mood,
		Date:      d.Date,
		CreatedAt: &created,
	}
}

func toStopDoingView(s domain.StopDoing) StopDoingView {
	created := s.CreatedAt
	return StopDoingView{ID: s.ID, Item: s.Item, CreatedAt: &created}
}

// NewStatsView renders stats in the GET /api/stats wire shape.
func NewStatsView(s domain.Stats) StatsView {
	return StatsView{
		TotalLogs: s.TotalLogs,
		Streak:    s.Streak,
		CategorySplit: CategorySplitView{
			Job:     s.CategorySplit.Job,
			Company: s.CategorySplit.Company,
			Family:  s.CategorySplit.Family,
		},
		ImpactSplit: ImpactSplitView{
			High: s.ImpactSplit.High,
			Med:  s.ImpactSplit.Med,
			Low:  s.ImpactSplit.Low,
		},
		GrowthRatio:      Percent(s.GrowthRatio),
		GoalProgress:     Percent(s.GoalProgress),
		AvgIdentityScore: Percent(s.AvgIdentityScore),
	}
}
