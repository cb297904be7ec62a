// Package audit persists one row per completion call. Prompt text and model output are
// never stored, only their sizes and the outcome.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const TableName = "dominion_invocations"

const createTableSQL = `CREATE TABLE IF NOT EXISTS dominion_invocations (
	id            UUID PRIMARY KEY,
	request_id    UUID NOT NULL,
	category      TEXT NOT NULL,
	model         TEXT NOT NULL,
	prompt_chars  INTEGER NOT NULL,
	outcome       TEXT NOT NULL,
	failure_kind  TEXT NOT NULL DEFAULT '',
	latency_ms    BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
)`

const insertSQL = `INSERT INTO dominion_invocations
	(id, request_id, category, model, prompt_chars, outcome, failure_kind, latency_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Record describes one completion call.
type Record struct {
	ID          uuid.UUID
	RequestID   uuid.UUID
	Category    string
	Model       string
	PromptChars int
	Outcome     string
	FailureKind string
	LatencyMS   int64
	CreatedAt   time.Time
}

// Store saves audit records.
type Store interface {
	Save(ctx context.Context, rec Record) error
}

// Execer is satisfied by *database.PostgresClient and SQLExecer.
type Execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore writes records to the dominion_invocations table.
type PostgresStore struct {
	db Execer
}

func NewPostgresStore(db Execer) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create %s: %w", TableName, err)
	}
	return nil
}

// Save inserts rec, filling ID and CreatedAt when they are zero.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, insertSQL,
		rec.ID,
		rec.RequestID,
		rec.Category,
		rec.Model,
		rec.PromptChars,
		rec.Outcome,
		rec.FailureKind,
		rec.LatencyMS,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Nop discards records. It is used when audit is disabled.
type Nop struct{}

func (Nop) Save(context.Context, Record) error { return nil }

// SQLExecer adapts a *sql.DB to Execer.
type SQLExecer struct {
	DB *sql.DB
}

func (e SQLExecer) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return e.DB.ExecContext(ctx, query, args...)
}
