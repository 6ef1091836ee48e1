package coach

import (
	"fmt"

	"example.com/futureself/internal/domain"
)

type logView struct {
	Date       string `json:"date"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	TimeSpent  *int   `json:"time_spent,omitempty"`
	Impact     string `json:"impact_level"`
	Notes      string `json:"notes,omitempty"`
	NextAction string `json:"next_action,omitempty"`
}

type goalView struct {
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	TargetValue  *float64 `json:"target_value,omitempty"`
	CurrentValue float64  `json:"current_value"`
	Status       string   `json:"status"`
}

type diaryView struct {
	Date    string `json:"date"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Mood    string `json:"mood,omitempty"`
}

type reviewView struct {
	Type         string `json:"type"`
	Date         string `json:"date"`
	Win          string `json:"win,omitempty"`
	Mistake      string `json:"mistake,omitempty"`
	Losses       string `json:"losses,omitempty"`
	GoalMovement string `json:"goal_movement,omitempty"`
	NextTheme    string `json:"next_theme,omitempty"`
}

type ideaView struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Tags    string `json:"tags,omitempty"`
}

type statsSummary struct {
	TotalLogs     int                  `json:"total_logs"`
	Streak        int                  `json:"streak"`
	CategorySplit domain.CategorySplit `json:"category_split"`
	ImpactSplit   domain.ImpactSplit   `json:"impact_split"`
	GrowthRatio   *float64             `json:"growth_ratio_percent,omitempty"`
	GoalProgress  *float64             `json:"goal_progress_percent,omitempty"`
	AvgIdentity   *float64             `json:"avg_identity_score,omitempty"`
}

type contentContext struct {
	RecentLogs []logView    `json:"recent_logs"`
	Goals      []goalView   `json:"goals"`
	Diary      []diaryView  `json:"diary"`
	Reviews    []reviewView `json:"reviews"`
	TopIdeas   []ideaView   `json:"top_ideas"`
}

func summaryPrompt(logs []logView) string {
	return fmt.Sprintf(`Summarize the activity from the LAST 7 DAYS based on these logs: %s.
Focus on Job, Company, and Family categories. Highlight most impactful work and patterns.`, mustJSON(logs))
}

func coachingPrompt(snap activitySnapshot) string {
	return fmt.Sprintf(`Based on the user data from the LAST 7 DAYS: %s, provide 3 behavioral suggestions.
Include "Next best action" for stuck items and an "If-then" plan. Keep it concise and actionable.`, mustJSON(snap))
}

func playbookPrompt(snap activitySnapshot) string {
	return fmt.Sprintf(`Analyze the user's activity from the LAST 7 DAYS: %s.
If consistency breaks, suggest a "Restart protocol".
If low-impact tasks dominate, suggest an "Impact filter".
If family time drops, suggest a "Relationship recovery plan".
Choose the most relevant playbook to show.`, mustJSON(snap))
}

func contentPrompt(c contentContext, platform string) string {
	return fmt.Sprintf(`User context (LAST 7 DAYS ONLY):
- Recent Logs (Work/Family/Company): %s
- Long-term Goals: %s
- Recent Diary Entries: %s
- Recent Reviews (Wins/Losses): %s
- Top Ideas: %s

Generate 3 viral content ideas for %s.
The ideas MUST be influenced by their specific goals, projects, and daily reflections from the last 7 days.
Incorporate modern current trends in IT and AI.
Use Google Search to ensure trends are up-to-the-minute.
Make the content sound authentic to someone building their future self.`,
		mustJSON(c.RecentLogs), mustJSON(c.Goals), mustJSON(c.Diary), mustJSON(c.Reviews), mustJSON(c.TopIdeas), platform)
}

// recentLogViews keeps logs dated on or after cutoff, at most limit of them
// (0 means unlimited). Input order is preserved.
func recentLogViews(logs []domain.LogEntry, cutoff string, limit int) []logView {
	out := make([]logView, 0)
	for _, l := range logs {
		if l.Date < cutoff {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, logView{
			Date:       l.Date,
			Title:      l.Title,
			Category:   l.Category,
			TimeSpent:  l.TimeSpent,
			Impact:     l.Impact,
			Notes:      l.Notes,
			NextAction: l.NextAction,
		})
	}
	return out
}

func recentDiaryViews(entries []domain.DiaryEntry, cutoff string, limit int) []diaryView {
	out := make([]diaryView, 0, limit)
	for _, e := range entries {
		if e.Date < cutoff {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, diaryView{Date: e.Date, Title: e.Title, Content: e.Content, Mood: e.Mood})
	}
	return out
}

func recentReviewViews(reviews []domain.Review, cutoff string, limit int) []reviewView {
	out := make([]reviewView, 0, limit)
	for _, r := range reviews {
		if r.Date < cutoff {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, reviewView{
			Type:         string(r.Type),
			Date:         r.Date,
			Win:          r.Win,
			Mistake:      r.Mistake,
			Losses:       r.Losses,
			GoalMovement: r.GoalMovement,
			NextTheme:    r.NextTheme,
		})
	}
	return out
}

func goalViews(goals []domain.Goal) []goalView {
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, goalView{
			Type:         string(g.Type),
			Title:        g.Title,
			TargetValue:  g.TargetValue,
			CurrentValue: g.CurrentValue,
			Status:       string(g.Status),
		})
	}
	return out
}

func ideaViews(ideas []domain.Idea, limit int) []ideaView {
	if len(ideas) > limit {
		ideas = ideas[:limit]
	}
	out := make([]ideaView, 0, len(ideas))
	for _, i := range ideas {
		out = append(out, ideaView{Title: i.Title, Content: i.Content, Tags: i.Tags})
	}
	return out
}

func summarize(s domain.Stats) statsSummary {
	return statsSummary{
		TotalLogs:     s.TotalLogs,
		Streak:        s.Streak,
		CategorySplit: s.CategorySplit,
		ImpactSplit:   s.ImpactSplit,
		GrowthRatio:   valueOf(s.GrowthRatio),
		GoalProgress:  valueOf(s.GoalProgress),
		AvgIdentity:   valueOf(s.AvgIdentityScore),
	}
}

func valueOf(r domain.Ratio) *float64 {
	if !r.Valid {
		return nil
	}
	v := r.Value
	return &v
}
