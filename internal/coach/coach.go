// Package coach turns the last week of journal activity into generated
// guidance: weekly summaries, behavioural coaching, playbooks and content ideas.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/futureself/internal/domain"
	"example.com/futureself/internal/observability"
)

// RecentWindow is how far back activity is considered recent.
const RecentWindow = 7 * 24 * time.Hour

// Caps on how many recent records are included in a prompt.
const (
	summaryLogLimit = 20
	contentLogLimit = 15
	ideaLimit       = 5
	diaryLimit      = 5
	reviewLimit     = 3
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Request is a single prompt for a Generator.
type Request struct {
	Model  string
	Prompt string
	// Search grounds the response with live web search.
	Search bool
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Journal is the read side of the journal the coach draws from.
type Journal interface {
	Now() time.Time
	ListLogs(ctx context.Context) ([]domain.LogEntry, error)
	ListGoals(ctx context.Context) ([]domain.Goal, error)
	ListReviews(ctx context.Context) ([]domain.Review, error)
	ListIdeas(ctx context.Context) ([]domain.Idea, error)
	ListDiary(ctx context.Context, filter domain.DiaryFilter) ([]domain.DiaryEntry, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// Models selects the model used per prompt family.
type Models struct {
	Text    string
	Content string
}

// Service builds prompts from recent activity and runs them.
type Service struct {
	journal   Journal
	generator Generator
	models    Models
}

// NewService constructs a coach Service.
func NewService(journal Journal, generator Generator, models Models) *Service {
	return &Service{journal: journal, generator: generator, models: models}
}

// WeeklySummary summarises the last seven days of logs.
func (s *Service) WeeklySummary(ctx context.Context) (string, error) {
	logs, err := s.recentLogs(ctx, summaryLogLimit)
	if err != nil {
		return "", err
	}
	return s.run(ctx, "summary", Request{Model: s.models.Text, Prompt: summaryPrompt(logs)})
}

// Coaching suggests three behavioural changes from recent logs and stats.
func (s *Service) Coaching(ctx context.Context) (string, error) {
	snap, err := s.activity(ctx)
	if err != nil {
		return "", err
	}
	return s.run(ctx, "coaching", Request{Model: s.models.Text, Prompt: coachingPrompt(snap)})
}

// Playbook picks the most relevant recovery playbook for recent activity.
func (s *Service) Playbook(ctx context.Context) (string, error) {
	snap, err := s.activity(ctx)
	if err != nil {
		return "", err
	}
	return s.run(ctx, "playbook", Request{Model: s.models.Text, Prompt: playbookPrompt(snap)})
}

// ContentIdeas proposes three pieces of content for platform.
func (s *Service) ContentIdeas(ctx context.Context, platform string) (string, error) {
	var ctxData contentContext
	cutoff := s.cutoff()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logs, err := s.journal.ListLogs(gctx)
		if err != nil {
			return fmt.Errorf("load logs: %w", err)
		}
		ctxData.RecentLogs = recentLogViews(logs, cutoff, contentLogLimit)
		return nil
	})
	g.Go(func() error {
		goals, err := s.journal.ListGoals(gctx)
		if err != nil {
			return fmt.Errorf("load goals: %w", err)
		}
		ctxData.Goals = goalViews(goals)
		return nil
	})
	g.Go(func() error {
		entries, err := s.journal.ListDiary(gctx, domain.DiaryFilter{})
		if err != nil {
			return fmt.Errorf("load diary: %w", err)
		}
		ctxData.Diary = recentDiaryViews(entries, cutoff, diaryLimit)
		return nil
	})
	g.Go(func() error {
		reviews, err := s.journal.ListReviews(gctx)
		if err != nil {
			return fmt.Errorf("load reviews: %w", err)
		}
		ctxData.Reviews = recentReviewViews(reviews, cutoff, reviewLimit)
		return nil
	})
	g.Go(func() error {
		ideas, err := s.journal.ListIdeas(gctx)
		if err != nil {
			return fmt.Errorf("load ideas: %w", err)
		}
		ctxData.TopIdeas = ideaViews(ideas, ideaLimit)
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	return s.run(ctx, "content_ideas", Request{
		Model:  s.models.Content,
		Prompt: contentPrompt(ctxData, platform),
		Search: true,
	})
}

type activitySnapshot struct {
	Logs  []logView    `json:"logs"`
	Stats statsSummary `json:"stats"`
}

func (s *Service) activity(ctx context.Context) (activitySnapshot, error) {
	var snap activitySnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logs, err := s.journal.ListLogs(gctx)
		if err != nil {
			return fmt.Errorf("load logs: %w", err)
		}
		snap.Logs = recentLogViews(logs, s.cutoff(), 0)
		return nil
	})
	g.Go(func() error {
		stats, err := s.journal.Stats(gctx)
		if err != nil {
			return fmt.Errorf("load stats: %w", err)
		}
		snap.Stats = summarize(stats)
		return nil
	})
	return snap, g.Wait()
}

func (s *Service) recentLogs(ctx context.Context, limit int) ([]logView, error) {
	logs, err := s.journal.ListLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	return recentLogViews(logs, s.cutoff(), limit), nil
}

// cutoff is the first calendar day still considered recent.
func (s *Service) cutoff() string {
	return s.journal.Now().Add(-RecentWindow).Format(domain.DateLayout)
}

func (s *Service) run(ctx context.Context, kind string, req Request) (string, error) {
	start := time.Now()
	text, err := s.generator.Generate(ctx, req)
	observability.RecordGeneration(kind, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s: %w", kind, err)
	}
	return text, nil
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
