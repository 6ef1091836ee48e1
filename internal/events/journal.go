// Package events defines the journal event payloads published through the outbox.
package events

import "time"

// Topic is the Kafka topic that carries every journal event.
const Topic = "journal_events"

// SchemaVersion is sent as a message header so consumers can reject payloads they do not understand.
const SchemaVersion = "1"

// Kafka headers set on every delivered event.
const (
	HeaderEventType     = "event_type"
	HeaderEventID       = "event_id"
	HeaderSchemaVersion = "schema_version"
)

// Event types recorded in the outbox.
const (
	TypeLogCreated     = "journal.log_created"
	TypeReviewRecorded = "journal.review_recorded"
	TypeIdentityScored = "journal.identity_scored"
)

// LogCreated is emitted when a log entry is accepted.
type LogCreated struct {
	LogID     string    `json:"log_id"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Impact    string    `json:"impact_level"`
	TimeSpent *int      `json:"time_spent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewRecorded is emitted when a daily or weekly review is stored.
type ReviewRecorded struct {
	ReviewID  string    `json:"review_id"`
	Type      string    `json:"type"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentityScored is emitted whenever the identity score for a day is set.
type IdentityScored struct {
	Date       string    `json:"date"`
	Score      int       `json:"score"`
	Energy     int       `json:"energy"`
	Stress     int       `json:"stress"`
	OccurredAt time.Time `json:"occurred_at"`
}
