// Package postgres is the hosted journal store backed by PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/futureself/internal/domain"
	"example.com/futureself/internal/events"
	"example.com/futureself/internal/persistence"
)

// Repository provides Postgres-backed persistence for the journal and its outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const logColumns = `id, date, title, category, time_spent, impact_level, notes, next_action, created_at`

// ListLogs returns every log entry ordered by creation time, newest first.
func (r *Repository) ListLogs(ctx context.Context) ([]domain.LogEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+logColumns+` FROM daily_logs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.LogEntry, 0)
	for rows.Next() {
		var entry domain.LogEntry
		if err := rows.Scan(&entry.ID, &entry.Date, &entry.Title, &entry.Category, &entry.TimeSpent, &entry.Impact, &entry.Notes, &entry.NextAction, &entry.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

// CreateLog persists the entry and records a log_created outbox event in one transaction.
func (r *Repository) CreateLog(ctx context.Context, entry domain.LogEntry) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO daily_logs (id, date, title, category, time_spent, impact_level, notes, next_action, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
		if _, err := tx.Exec(ctx, stmt,
			entry.ID,
			entry.Date,
			entry.Title,
			entry.Category,
			entry.TimeSpent,
			entry.Impact,
			entry.Notes,
			entry.NextAction,
			entry.CreatedAt,
		); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, "daily_log", entry.ID, events.TypeLogCreated, events.LogCreated{
			LogID:     entry.ID,
			Date:      entry.Date,
			Title:     entry.Title,
			Category:  entry.Category,
			Impact:    entry.Impact,
			TimeSpent: entry.TimeSpent,
			CreatedAt: entry.CreatedAt,
		})
	})
}

const goalColumns = `id, type, title, target_value, current_value, status, created_at`

func scanGoal(row pgx.Row) (domain.Goal, error) {
	var goal domain.Goal
	err := row.Scan(&goal.ID, &goal.Type, &goal.Title, &goal.TargetValue, &goal.CurrentValue, &goal.Status, &goal.CreatedAt)
	return goal, err
}

// ListGoals returns every goal, newest first.
func (r *Repository) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Goal, 0)
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, goal)
	}
	return results, rows.Err()
}

// CreateGoal inserts a goal.
func (r *Repository) CreateGoal(ctx context.Context, goal domain.Goal) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO goals (id, type, title, target_value, current_value, status, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		goal.ID, goal.Type, goal.Title, goal.TargetValue, goal.CurrentValue, goal.Status, goal.CreatedAt,
	)
	return err
}

// GetGoal retrieves a goal by ID, or nil when it does not exist.
func (r *Repository) GetGoal(ctx context.Context, id string) (*domain.Goal, error) {
	goal, err := scanGoal(r.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &goal, nil
}

// UpdateGoal overwrites the mutable progress fields of a goal.
func (r *Repository) UpdateGoal(ctx context.Context, goal domain.Goal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE goals SET current_value = $1, status = $2 WHERE id = $3`, goal.CurrentValue, goal.Status, goal.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListReviews returns every review, newest first.
func (r *Repository) ListReviews(ctx context.Context) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, type, date, win, mistake, priority, summary, losses, goal_movement, time_waste, next_theme, created_at
        FROM reviews ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Review, 0)
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.Type, &rv.Date, &rv.Win, &rv.Mistake, &rv.Priority, &rv.Summary, &rv.Losses, &rv.GoalMovement, &rv.TimeWaste, &rv.NextTheme, &rv.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, rv)
	}
	return results, rows.Err()
}

// CreateReview persists a review and records a review_recorded outbox event.
func (r *Repository) CreateReview(ctx context.Context, rv domain.Review) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO reviews (id, type, date, win, mistake, priority, summary, losses, goal_movement, time_waste, next_theme, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
		if _, err := tx.Exec(ctx, stmt,
			rv.ID, rv.Type, rv.Date, rv.Win, rv.Mistake, rv.Priority, rv.Summary, rv.Losses, rv.GoalMovement, rv.TimeWaste, rv.NextTheme, rv.CreatedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, "review", rv.ID, events.TypeReviewRecorded, events.ReviewRecorded{
			ReviewID:  rv.ID,
			Type:      string(rv.Type),
			Date:      rv.Date,
			CreatedAt: rv.CreatedAt,
		})
	})
}

// RecentIdentityScores returns up to limit samples, most recent date first.
func (r *Repository) RecentIdentityScores(ctx context.Context, limit int) ([]domain.IdentityScore, error) {
	rows, err := r.pool.Query(ctx, `SELECT date, score, energy, stress, created_at FROM identity_scores ORDER BY date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.IdentityScore, 0, limit)
	for rows.Next() {
		var s domain.IdentityScore
		if err := rows.Scan(&s.Date, &s.Score, &s.Energy, &s.Stress, &s.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// GetIdentityScore returns the sample for date, or nil.
func (r *Repository) GetIdentityScore(ctx context.Context, date string) (*domain.IdentityScore, error) {
	var s domain.IdentityScore
	err := r.pool.QueryRow(ctx, `SELECT date, score, energy, stress, created_at FROM identity_scores WHERE date = $1`, date).
		Scan(&s.Date, &s.Score, &s.Energy, &s.Stress, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpsertIdentityScore writes the sample keyed by date and records an identity_scored event.
func (r *Repository) UpsertIdentityScore(ctx context.Context, s domain.IdentityScore) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO identity_scores (date, score, energy, stress, created_at) VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (date) DO UPDATE SET score = EXCLUDED.score, energy = EXCLUDED.energy, stress = EXCLUDED.stress`
		if _, err := tx.Exec(ctx, stmt, s.Date, s.Score, s.Energy, s.Stress, s.CreatedAt); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, "identity_score", s.Date, events.TypeIdentityScored, events.IdentityScored{
			Date:       s.Date,
			Score:      s.Score,
			Energy:     s.Energy,
			Stress:     s.Stress,
			OccurredAt: s.CreatedAt,
		})
	})
}

// ListNonNegotiables returns the commitments recorded for date.
func (r *Repository) ListNonNegotiables(ctx context.Context, date string) ([]domain.NonNegotiable, error) {
	rows, err := r.pool.Query(ctx, `SELECT date, task, completed FROM non_negotiables WHERE date = $1 ORDER BY task`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.NonNegotiable, 0)
	for rows.Next() {
		var item domain.NonNegotiable
		if err := rows.Scan(&item.Date, &item.Task, &item.Completed); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// UpsertNonNegotiable sets the completion flag for (date, task).
func (r *Repository) UpsertNonNegotiable(ctx context.Context, item domain.NonNegotiable) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO non_negotiables (date, task, completed) VALUES ($1,$2,$3)
        ON CONFLICT (date, task) DO UPDATE SET completed = EXCLUDED.completed`, item.Date, item.Task, item.Completed)
	return err
}

// ListIdeas returns the idea vault, newest first.
func (r *Repository) ListIdeas(ctx context.Context) ([]domain.Idea, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, content, tags, created_at FROM idea_vault ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Idea, 0)
	for rows.Next() {
		var idea domain.Idea
		if err := rows.Scan(&idea.ID, &idea.Title, &idea.Content, &idea.Tags, &idea.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, idea)
	}
	return results, rows.Err()
}

// CreateIdea inserts an idea.
func (r *Repository) CreateIdea(ctx context.Context, idea domain.Idea) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO idea_vault (id, title, content, tags, created_at) VALUES ($1,$2,$3,$4,$5)`,
		idea.ID, idea.Title, idea.Content, idea.Tags, idea.CreatedAt)
	return err
}

// ListDiary returns diary entries matching filter, newest date first.
func (r *Repository) ListDiary(ctx context.Context, filter domain.DiaryFilter) ([]domain.DiaryEntry, error) {
	const query = `SELECT id, title, content, mood, date, created_at FROM diary
        WHERE ($1 = '' OR title ILIKE $1 OR content ILIKE $1)
          AND ($2 = '' OR substring(date from 6 for 2) = $2)
          AND ($3 = '' OR substring(date from 1 for 4) = $3)
        ORDER BY date DESC, created_at DESC`

	pattern, month, year := persistence.DiaryArgs(filter)
	rows, err := r.pool.Query(ctx, query, pattern, month, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.DiaryEntry, 0)
	for rows.Next() {
		var entry domain.DiaryEntry
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Content, &entry.Mood, &entry.Date, &entry.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

// CreateDiary inserts a diary entry.
func (r *Repository) CreateDiary(ctx context.Context, entry domain.DiaryEntry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO diary (id, title, content, mood, date, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.Title, entry.Content, entry.Mood, entry.Date, entry.CreatedAt)
	return err
}

// ListStopDoing returns the stop-doing list, newest first.
func (r *Repository) ListStopDoing(ctx context.Context) ([]domain.StopDoing, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item, created_at FROM stop_doing ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.StopDoing, 0)
	for rows.Next() {
		var item domain.StopDoing
		if err := rows.Scan(&item.ID, &item.Item, &item.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// CreateStopDoing inserts a stop-doing item.
func (r *Repository) CreateStopDoing(ctx context.Context, item domain.StopDoing) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stop_doing (id, item, created_at) VALUES ($1,$2,$3)`, item.ID, item.Item, item.CreatedAt)
	return err
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	eventID := uuid.NewString()
	const stmt = `INSERT INTO outbox (event_uuid, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		eventID,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.PartitionKeyFn(aggregateID),
		body,
		meta.DedupeKeyFn(aggregateID, eventID),
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	PartitionKeyFn func(aggregateID string) string
	DedupeKeyFn    func(aggregateID, eventID string) string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeLogCreated: {
		Topic:          events.Topic,
		PartitionKeyFn: func(id string) string { return "log:" + id },
		DedupeKeyFn:    func(id, _ string) string { return id + ":" + events.TypeLogCreated },
	},
	events.TypeReviewRecorded: {
		Topic:          events.Topic,
		PartitionKeyFn: func(id string) string { return "review:" + id },
		DedupeKeyFn:    func(id, _ string) string { return id + ":" + events.TypeReviewRecorded },
	},
	events.TypeIdentityScored: {
		Topic:          events.Topic,
		PartitionKeyFn: func(date string) string { return "identity:" + date },
		// A day's score can be rewritten, so each write is its own event.
		DedupeKeyFn: func(_, eventID string) string { return eventID },
	},
}
