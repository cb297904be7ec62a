package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(SQLExecer{DB: db}), mock
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := setupMockDB(t)

	rec := Record{
		ID:          uuid.New(),
		RequestID:   uuid.New(),
		Category:    "legal-draft",
		Model:       "llama-3.1-8b-instant",
		PromptChars: 92,
		Outcome:     OutcomeSuccess,
		LatencyMS:   840,
		CreatedAt:   time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dominion_invocations")).
		WithArgs(rec.ID, rec.RequestID, "legal-draft", "llama-3.1-8b-instant", 92, OutcomeSuccess, "", int64(840), rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_FillsIDAndTimestamp(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dominion_invocations")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "esg-audit", "m", 10, OutcomeFailure, "network", int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), Record{
		Category:    "esg-audit",
		Model:       "m",
		PromptChars: 10,
		Outcome:     OutcomeFailure,
		FailureKind: "network",
		LatencyMS:   5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Error(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dominion_invocations")).
		WillReturnError(errors.New("relation does not exist"))

	err := store.Save(context.Background(), Record{Category: "lp-query"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS dominion_invocations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Save(context.Background(), Record{}))
}
