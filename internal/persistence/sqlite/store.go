// Package sqlite is the embedded journal store for single-user deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register sqlite driver

	"example.com/futureself/internal/domain"
	"example.com/futureself/internal/persistence"
)

// timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS daily_logs (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	title TEXT NOT NULL,
	category TEXT NOT NULL,
	time_spent INTEGER,
	impact_level TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	next_action TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS goals (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	target_value REAL,
	current_value REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	date TEXT NOT NULL,
	win TEXT NOT NULL DEFAULT '',
	mistake TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	losses TEXT NOT NULL DEFAULT '',
	goal_movement TEXT NOT NULL DEFAULT '',
	time_waste TEXT NOT NULL DEFAULT '',
	next_theme TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS identity_scores (
	date TEXT PRIMARY KEY,
	score INTEGER NOT NULL,
	energy INTEGER NOT NULL DEFAULT 0,
	stress INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS non_negotiables (
	date TEXT NOT NULL,
	task TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, task)
);
CREATE TABLE IF NOT EXISTS idea_vault (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS diary (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	mood TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stop_doing (
	id TEXT PRIMARY KEY,
	item TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// Store provides SQLite-backed persistence for the journal.
type Store struct {
	db *sqlx.DB
}

var _ domain.Store = (*Store)(nil)

// Open opens or creates the database at path and ensures the schema exists.
// The special path ":memory:" yields a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	// SQLite serialises writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

type logRow struct {
	ID         string        `db:"id"`
	Date       string        `db:"date"`
	Title      string        `db:"title"`
	Category   string        `db:"category"`
	TimeSpent  sql.NullInt64 `db:"time_spent"`
	Impact     string        `db:"impact_level"`
	Notes      string        `db:"notes"`
	NextAction string        `db:"next_action"`
	CreatedAt  string        `db:"created_at"`
}

// ListLogs returns every log entry, newest first.
func (s *Store) ListLogs(ctx context.Context) ([]domain.LogEntry, error) {
	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM daily_logs ORDER BY created_at DESC, rowid DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry := domain.LogEntry{
			ID:         row.ID,
			Date:       row.Date,
			Title:      row.Title,
			Category:   row.Category,
			Impact:     row.Impact,
			Notes:      row.Notes,
			NextAction: row.NextAction,
			CreatedAt:  parseTime(row.CreatedAt),
		}
		if row.TimeSpent.Valid {
			spent := int(row.TimeSpent.Int64)
			entry.TimeSpent = &spent
		}
		out = append(out, entry)
	}
	return out, nil
}

// CreateLog inserts a log entry.
func (s *Store) CreateLog(ctx context.Context, entry domain.LogEntry) error {
	var spent sql.NullInt64
	if entry.TimeSpent != nil {
		spent = sql.NullInt64{Int64: int64(*entry.TimeSpent), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_logs (id, date, title, category, time_spent, impact_level, notes, next_action, created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.Date, entry.Title, entry.Category, spent, entry.Impact, entry.Notes, entry.NextAction, formatTime(entry.CreatedAt),
	)
	return err
}

type goalRow struct {
	ID           string          `db:"id"`
	Type         string          `db:"type"`
	Title        string          `db:"title"`
	TargetValue  sql.NullFloat64 `db:"target_value"`
	CurrentValue float64         `db:"current_value"`
	Status       string          `db:"status"`
	CreatedAt    string          `db:"created_at"`
}

func (row goalRow) toDomain() domain.Goal {
	goal := domain.Goal{
		ID:           row.ID,
		Type:         domain.GoalType(row.Type),
		Title:        row.Title,
		CurrentValue: row.CurrentValue,
		Status:       domain.GoalStatus(row.Status),
		CreatedAt:    parseTime(row.CreatedAt),
	}
	if row.TargetValue.Valid {
		target := row.TargetValue.Float64
		goal.TargetValue = &target
	}
	return goal
}

// ListGoals returns every goal, newest first.
func (s *Store) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	var rows []goalRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM goals ORDER BY created_at DESC, rowid DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.Goal, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CreateGoal inserts a goal.
func (s *Store) CreateGoal(ctx context.Context, goal domain.Goal) error {
	var target sql.NullFloat64
	if goal.TargetValue != nil {
		target = sql.NullFloat64{Float64: *goal.TargetValue, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, type, title, target_value, current_value, status, created_at) VALUES (?,?,?,?,?,?,?)`,
		goal.ID, string(goal.Type), goal.Title, target, goal.CurrentValue, string(goal.Status), formatTime(goal.CreatedAt),
	)
	return err
}

// GetGoal returns the goal with id, or nil.
func (s *Store) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	var row goalRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM goals WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	goal := row.toDomain()
	return &goal, nil
}

// UpdateGoal overwrites the mutable progress fields of a goal.
func (s *Store) UpdateGoal(ctx context.Context, goal domain.Goal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE goals SET current_value = ?, status = ? WHERE id = ?`, goal.CurrentValue, string(goal.Status), goal.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type reviewRow struct {
	ID           string `db:"id"`
	Type         string `db:"type"`
	Date         string `db:"date"`
	Win          string `db:"win"`
	Mistake      string `db:"mistake"`
	Priority     string `db:"priority"`
	Summary      string `db:"summary"`
	Losses       string `db:"losses"`
	GoalMovement string `db:"goal_movement"`
	TimeWaste    string `db:"time_waste"`
	NextTheme    string `db:"next_theme"`
	CreatedAt    string `db:"created_at"`
}

// ListReviews returns every review, newest first.
func (s *Store) ListReviews(ctx context.Context) ([]domain.Review, error) {
	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM reviews ORDER BY created_at DESC, rowid DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.Review, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Review{
			ID:           row.ID,
			Type:         domain.ReviewType(row.Type),
			Date:         row.Date,
			Win:          row.Win,
			Mistake:      row.Mistake,
			Priority:     row.Priority,
			Summary:      row.Summary,
			Losses:       row.Losses,
			GoalMovement: row.GoalMovement,
			TimeWaste:    row.TimeWaste,
			NextTheme:    row.NextTheme,
			CreatedAt:    parseTime(row.CreatedAt),
		})
	}
	return out, nil
}

// CreateReview inserts a review.
func (s *Store) CreateReview(ctx context.Context, rv domain.Review) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, type, date, win, mistake, priority, summary, losses, goal_movement, time_waste, next_theme, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rv.ID, string(rv.Type), rv.Date, rv.Win, rv.Mistake, rv.Priority, rv.Summary, rv.Losses, rv.GoalMovement, rv.TimeWaste, rv.NextTheme, formatTime(rv.CreatedAt),
	)
	return err
}

type scoreRow struct {
	Date      string `db:"date"`
	Score     int    `db:"score"`
	Energy    int    `db:"energy"`
	Stress    int    `db:"stress"`
	CreatedAt string `db:"created_at"`
}

func (row scoreRow) toDomain() domain.IdentityScore {
	return domain.IdentityScore{Date: row.Date, Score: row.Score, Energy: row.Energy, Stress: row.Stress, CreatedAt: parseTime(row.CreatedAt)}
}

// RecentIdentityScores returns up to limit samples, most recent date first.
func (s *Store) RecentIdentityScores(ctx context.Context, limit int) ([]domain.IdentityScore, error) {
	var rows []scoreRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM identity_scores ORDER BY date DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	out := make([]domain.IdentityScore, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// GetIdentityScore returns the sample for date, or nil.
func (s *Store) GetIdentityScore(ctx context.Context, date string) (*domain.IdentityScore, error) {
	var row scoreRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM identity_scores WHERE date = ?`, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	score := row.toDomain()
	return &score, nil
}

// UpsertIdentityScore writes the sample keyed by its date.
func (s *Store) UpsertIdentityScore(ctx context.Context, score domain.IdentityScore) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity_scores (date, score, energy, stress, created_at) VALUES (?,?,?,?,?)
		 ON CONFLICT (date) DO UPDATE SET score = excluded.score, energy = excluded.energy, stress = excluded.stress`,
		score.Date, score.Score, score.Energy, score.Stress, formatTime(score.CreatedAt),
	)
	return err
}

// ListNonNegotiables returns the commitments recorded for date.
func (s *Store) ListNonNegotiables(ctx context.Context, date string) ([]domain.NonNegotiable, error) {
	var rows []struct {
		Date      string `db:"date"`
		Task      string `db:"task"`
		Completed bool   `db:"completed"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT date, task, completed FROM non_negotiables WHERE date = ? ORDER BY task`, date); err != nil {
		return nil, err
	}
	out := make([]domain.NonNegotiable, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.NonNegotiable{Date: row.Date, Task: row.Task, Completed: row.Completed})
	}
	return out, nil
}

// UpsertNonNegotiable sets the completion flag for (date, task).
func (s *Store) UpsertNonNegotiable(ctx context.Context, item domain.NonNegotiable) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO non_negotiables (date, task, completed) VALUES (?,?,?)
		 ON CONFLICT (date, task) DO UPDATE SET completed = excluded.completed`,
		item.Date, item.Task, item.Completed,
	)
	return err
}

type ideaRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Content   string `db:"content"`
	Tags      string `db:"tags"`
	CreatedAt string `db:"created_at"`
}

// ListIdeas returns the idea vault, newest first.
func (s *Store) ListIdeas(ctx context.Context) ([]domain.Idea, error) {
	var rows []ideaRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM idea_vault ORDER BY created_at DESC, rowid DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.Idea, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Idea{ID: row.ID, Title: row.Title, Content: row.Content, Tags: row.Tags, CreatedAt: parseTime(row.CreatedAt)})
	}
	return out, nil
}

// CreateIdea inserts an idea.
func (s *Store) CreateIdea(ctx context.Context, idea domain.Idea) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO idea_vault (id, title, content, tags, created_at) VALUES (?,?,?,?,?)`,
		idea.ID, idea.Title, idea.Content, idea.Tags, formatTime(idea.CreatedAt))
	return err
}

type diaryRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Content   string `db:"content"`
	Mood      string `db:"mood"`
	Date      string `db:"date"`
	CreatedAt string `db:"created_at"`
}

// ListDiary returns diary entries matching filter, newest date first.
func (s *Store) ListDiary(ctx context.Context, filter domain.DiaryFilter) ([]domain.DiaryEntry, error) {
	const query = `SELECT * FROM diary
		WHERE (? = '' OR title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')
		  AND (? = '' OR substr(date, 6, 2) = ?)
		  AND (? = '' OR substr(date, 1, 4) = ?)
		ORDER BY date DESC, created_at DESC`

	pattern, month, year := persistence.DiaryArgs(filter)
	var rows []diaryRow
	if err := s.db.SelectContext(ctx, &rows, query, pattern, pattern, pattern, month, month, year, year); err != nil {
		return nil, err
	}
	out := make([]domain.DiaryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.DiaryEntry{ID: row.ID, Title: row.Title, Content: row.Content, Mood: row.Mood, Date: row.Date, CreatedAt: parseTime(row.CreatedAt)})
	}
	return out, nil
}

// CreateDiary inserts a diary entry.
func (s *Store) CreateDiary(ctx context.Context, entry domain.DiaryEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO diary (id, title, content, mood, date, created_at) VALUES (?,?,?,?,?,?)`,
		entry.ID, entry.Title, entry.Content, entry.Mood, entry.Date, formatTime(entry.CreatedAt))
	return err
}

// ListStopDoing returns the stop-doing list, newest first.
func (s *Store) ListStopDoing(ctx context.Context) ([]domain.StopDoing, error) {
	var rows []struct {
		ID        string `db:"id"`
		Item      string `db:"item"`
		CreatedAt string `db:"created_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM stop_doing ORDER BY created_at DESC, rowid DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.StopDoing, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.StopDoing{ID: row.ID, Item: row.Item, CreatedAt: parseTime(row.CreatedAt)})
	}
	return out, nil
}

// CreateStopDoing inserts a stop-doing item.
func (s *Store) CreateStopDoing(ctx context.Context, item domain.StopDoing) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO stop_doing (id, item, created_at) VALUES (?,?,?)`, item.ID, item.Item, formatTime(item.CreatedAt))
	return err
}
