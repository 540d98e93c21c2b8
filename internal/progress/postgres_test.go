package progress

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdex/internal/pipeline"
)

func TestPostgresIsComplete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT outcome FROM chunk_markers").
		WithArgs("doc1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"outcome"}).AddRow(pipeline.OutcomeDone))

	done, err := store.IsComplete(context.Background(), "doc1", "c1")
	require.NoError(t, err)
	assert.True(t, done)

	mock.ExpectQuery("SELECT outcome FROM chunk_markers").
		WithArgs("doc1", "c2").
		WillReturnRows(sqlmock.NewRows([]string{"outcome"}))

	done, err = store.IsComplete(context.Background(), "doc1", "c2")
	require.NoError(t, err)
	assert.False(t, done)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkComplete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	now := time.Now()
	mock.ExpectExec("INSERT INTO chunk_markers").
		WithArgs("doc1", "c1", pipeline.OutcomeDone, "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.MarkComplete(context.Background(), pipeline.Marker{
		DocumentID: "doc1", ChunkID: "c1", Outcome: pipeline.OutcomeDone, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT chunk_id FROM chunk_markers").
		WithArgs("doc1", pipeline.OutcomeDone).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id"}).AddRow("c1").AddRow("c3"))

	pending, err := store.Pending(context.Background(), "doc1", []string{"c1", "c2", "c3", "c4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c4"}, pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetDocumentStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectExec("INSERT INTO document_statuses").
		WithArgs("doc1", pipeline.StatusDone).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetDocumentStatus(context.Background(), "doc1", pipeline.StatusDone))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDocumentStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectQuery("SELECT status FROM document_statuses").
		WithArgs("doc1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(pipeline.StatusPartiallyFailed))

	status, err := store.DocumentStatus(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusPartiallyFailed, status)

	mock.ExpectQuery("SELECT status FROM document_statuses").
		WithArgs("doc2").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	status, err = store.DocumentStatus(context.Background(), "doc2")
	require.NoError(t, err)
	assert.Empty(t, status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTrackerInterface(t *testing.T) {
	var _ pipeline.ProgressTracker = (*PostgresStore)(nil)
}
