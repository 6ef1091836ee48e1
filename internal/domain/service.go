// Package domain defines the journal model, its validation rules and the
// statistics derived from it.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"example.com/futureself/internal/observability"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation wraps every input rejection so callers can map it to a 400.
	ErrValidation = errors.New("validation failed")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StatsSource is the read side the statistics summary depends on.
type StatsSource interface {
	ListLogs(ctx context.Context) ([]LogEntry, error)
	ListGoals(ctx context.Context) ([]Goal, error)
	ListReviews(ctx context.Context) ([]Review, error)
	RecentIdentityScores(ctx context.Context, limit int) ([]IdentityScore, error)
}

// Store captures every persistence operation of the journal. Lists are
// returned newest first; Get methods return nil, nil when nothing matches.
type Store interface {
	StatsSource

	CreateLog(ctx context.Context, entry LogEntry) error

	CreateGoal(ctx context.Context, goal Goal) error
	GetGoal(ctx context.Context, id string) (*Goal, error)
	UpdateGoal(ctx context.Context, goal Goal) error

	CreateReview(ctx context.Context, review Review) error

	GetIdentityScore(ctx context.Context, date string) (*IdentityScore, error)
	UpsertIdentityScore(ctx context.Context, score IdentityScore) error

	ListNonNegotiables(ctx context.Context, date string) ([]NonNegotiable, error)
	UpsertNonNegotiable(ctx context.Context, item NonNegotiable) error

	ListIdeas(ctx context.Context) ([]Idea, error)
	CreateIdea(ctx context.Context, idea Idea) error

	ListDiary(ctx context.Context, filter DiaryFilter) ([]DiaryEntry, error)
	CreateDiary(ctx context.Context, entry DiaryEntry) error

	ListStopDoing(ctx context.Context) ([]StopDoing, error)
	CreateStopDoing(ctx context.Context, item StopDoing) error
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the timezone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Service orchestrates journal workflows.
type Service struct {
	store Store
	now   func() time.Time
	loc   *time.Location
}

// NewService constructs a Service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current instant in the configured location.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Today returns the current calendar day as YYYY-MM-DD.
func (s *Service) Today() string {
	return s.Now().Format(DateLayout)
}

// Stats loads the four sources concurrently and folds them into a summary.
// A failure of any source fails the whole computation.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var in StatsInput
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Logs, err = s.store.ListLogs(gctx)
		return wrap("load logs", err)
	})
	g.Go(func() (err error) {
		in.Goals, err = s.store.ListGoals(gctx)
		return wrap("load goals", err)
	})
	g.Go(func() (err error) {
		in.Reviews, err = s.store.ListReviews(gctx)
		return wrap("load reviews", err)
	})
	g.Go(func() (err error) {
		in.Scores, err = s.store.RecentIdentityScores(gctx, RecentIdentityScoreLimit)
		return wrap("load identity scores", err)
	})
	if err := g.Wait(); err != nil {
		observability.RecordStatsFailure()
		return Stats{}, err
	}

	stats := ComputeStats(in, s.Now())
	observability.RecordStatsComputed(stats.Streak)
	return stats, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateLogInput captures the payload from the API layer.
type CreateLogInput struct {
	Date       string
	Title      string
	Category   string
	TimeSpent  *int
	Impact     string
	Notes      string
	NextAction string
}

// ListLogs returns every log entry, newest first.
func (s *Service) ListLogs(ctx context.Context) ([]LogEntry, error) {
	return s.store.ListLogs(ctx)
}

// CreateLog validates and stores a log entry. The date defaults to today.
func (s *Service) CreateLog(ctx context.Context, input CreateLogInput) (*LogEntry, error) {
	date, err := s.dateOrToday(input.Date)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, invalid("title is required")
	}
	category := ParseCategory(strings.TrimSpace(input.Category))
	if category == CategoryUnknown {
		return nil, invalid("category must be one of job, company, family")
	}
	impact := ParseImpact(strings.TrimSpace(input.Impact))
	if impact == ImpactUnknown {
		return nil, invalid("impact_level must be one of Low, Med, High")
	}
	if input.TimeSpent != nil && *input.TimeSpent < 0 {
		return nil, invalid("time_spent must be >= 0")
	}

	entry := LogEntry{
		ID:         uuid.NewString(),
		Date:       date,
		Title:      strings.TrimSpace(input.Title),
		Category:   string(category),
		TimeSpent:  input.TimeSpent,
		Impact:     string(impact),
		Notes:      input.Notes,
		NextAction: input.NextAction,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateLog(ctx, entry); err != nil {
		return nil, err
	}
	observability.RecordLogPersisted(entry.CreatedAt)
	return &entry, nil
}

// ListGoals returns every goal.
func (s *Service) ListGoals(ctx context.Context) ([]Goal, error) {
	return s.store.ListGoals(ctx)
}

// CreateGoalInput captures a new goal.
type CreateGoalInput struct {
	Type        string
	Title       string
	TargetValue *float64
}

// CreateGoal stores an active goal.
func (s *Service) CreateGoal(ctx context.Context, input CreateGoalInput) (*Goal, error) {
	goalType := GoalType(strings.TrimSpace(input.Type))
	if goalType != GoalTypeOutcome && goalType != GoalTypeWeekly {
		return nil, invalid("type must be outcome or weekly")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, invalid("title is required")
	}

	goal := Goal{
		ID:          uuid.NewString(),
		Type:        goalType,
		Title:       strings.TrimSpace(input.Title),
		TargetValue: input.TargetValue,
		Status:      GoalStatusActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateGoal(ctx, goal); err != nil {
		return nil, err
	}
	return &goal, nil
}

// UpdateGoalInput carries optional progress changes.
type UpdateGoalInput struct {
	CurrentValue *float64
	Status       *string
}

// UpdateGoal applies progress changes to an existing goal.
func (s *Service) UpdateGoal(ctx context.Context, id string, input UpdateGoalInput) (*Goal, error) {
	goal, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, ErrNotFound
	}

	if input.CurrentValue != nil {
		goal.CurrentValue = *input.CurrentValue
	}
	if input.Status != nil {
		status := GoalStatus(strings.TrimSpace(*input.Status))
		if status != GoalStatusActive && status != GoalStatusCompleted {
			return nil, invalid("status must be active or completed")
		}
		goal.Status = status
	}

	if err := s.store.UpdateGoal(ctx, *goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// ListReviews returns every review, newest first.
func (s *Service) ListReviews(ctx context.Context) ([]Review, error) {
	return s.store.ListReviews(ctx)
}

// CreateReview stores a daily or weekly review. The date defaults to today.
func (s *Service) CreateReview(ctx context.Context, review Review) (*Review, error) {
	review.Type = ReviewType(strings.TrimSpace(string(review.Type)))
	if review.Type != ReviewTypeDaily && review.Type != ReviewTypeWeekly {
		return nil, invalid("type must be daily or weekly")
	}
	date, err := s.dateOrToday(review.Date)
	if err != nil {
		return nil, err
	}
	review.Date = date
	review.ID = uuid.NewString()
	review.CreatedAt = s.now().UTC()

	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	return &review, nil
}

// IdentityScore returns the sample for date (default today), or nil.
func (s *Service) IdentityScore(ctx context.Context, date string) (*IdentityScore, error) {
	day, err := s.dateOrToday(date)
	if err != nil {
		return nil, err
	}
	return s.store.GetIdentityScore(ctx, day)
}

// RecordIdentityScore upserts the sample for its date.
func (s *Service) RecordIdentityScore(ctx context.Context, score IdentityScore) (*IdentityScore, error) {
	day, err := s.dateOrToday(score.Date)
	if err != nil {
		return nil, err
	}
	if score.Score < 1 || score.Score > 10 {
		return nil, invalid("score must be between 1 and 10")
	}
	score.Date = day
	score.CreatedAt = s.now().UTC()

	if err := s.store.UpsertIdentityScore(ctx, score); err != nil {
		return nil, err
	}
	return &score, nil
}

// NonNegotiables lists the commitments recorded for date (default today).
func (s *Service) NonNegotiables(ctx context.Context, date string) ([]NonNegotiable, error) {
	day, err := s.dateOrToday(date)
	if err != nil {
		return nil, err
	}
	return s.store.ListNonNegotiables(ctx, day)
}

// ToggleNonNegotiable upserts the completion flag for (date, task).
func (s *Service) ToggleNonNegotiable(ctx context.Context, item NonNegotiable) error {
	day, err := s.dateOrToday(item.Date)
	if err != nil {
		return err
	}
	if strings.TrimSpace(item.Task) == "" {
		return invalid("task is required")
	}
	item.Date = day
	item.Task = strings.TrimSpace(item.Task)
	return s.store.UpsertNonNegotiable(ctx, item)
}

// ListIdeas returns the idea vault, newest first.
func (s *Service) ListIdeas(ctx context.Context) ([]Idea, error) {
	return s.store.ListIdeas(ctx)
}

// CreateIdea stores an idea.
func (s *Service) CreateIdea(ctx context.Context, idea Idea) (*Idea, error) {
	if strings.TrimSpace(idea.Title) == "" {
		return nil, invalid("title is required")
	}
	idea.ID = uuid.NewString()
	idea.CreatedAt = s.now().UTC()
	if err := s.store.CreateIdea(ctx, idea); err != nil {
		return nil, err
	}
	return &idea, nil
}

// ListDiary returns diary entries matching filter, newest date first.
func (s *Service) ListDiary(ctx context.Context, filter DiaryFilter) ([]DiaryEntry, error) {
	if filter.Month < 0 || filter.Month > 12 {
		return nil, invalid("month must be between 1 and 12")
	}
	if filter.Year < 0 {
		return nil, invalid("year must be positive")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.store.ListDiary(ctx, filter)
}

// CreateDiary stores a diary entry. The date defaults to today.
func (s *Service) CreateDiary(ctx context.Context, entry DiaryEntry) (*DiaryEntry, error) {
	day, err := s.dateOrToday(entry.Date)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(entry.Content) == "" && strings.TrimSpace(entry.Title) == "" {
		return nil, invalid("title or content is required")
	}
	entry.Date = day
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now().UTC()
	if err := s.store.CreateDiary(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListStopDoing returns the stop-doing list, newest first.
func (s *Service) ListStopDoing(ctx context.Context) ([]StopDoing, error) {
	return s.store.ListStopDoing(ctx)
}

// CreateStopDoing appends to the stop-doing list.
func (s *Service) CreateStopDoing(ctx context.Context, item string) (*StopDoing, error) {
	if strings.TrimSpace(item) == "" {
		return nil, invalid("item is required")
	}
	entry := StopDoing{ID: uuid.NewString(), Item: strings.TrimSpace(item), CreatedAt: s.now().UTC()}
	if err := s.store.CreateStopDoing(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) dateOrToday(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.Today(), nil
	}
	if _, err := time.Parse(DateLayout, raw); err != nil {
		return "", invalid("date must be YYYY-MM-DD")
	}
	return raw, nil
}
