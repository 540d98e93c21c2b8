package progress

import (
	"context"
	"database/sql"

	"docdex/internal/pipeline"
)

// PostgresStore keeps progress in two tables so multiple hosts can
// share one resumable run. Schema lives in the migrations directory.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) IsComplete(ctx context.Context, docID, chunkID string) (bool, error) {
	var outcome string
	query := `SELECT outcome FROM chunk_markers WHERE document_id = $1 AND chunk_id = $2`
	err := s.db.QueryRowContext(ctx, query, docID, chunkID).Scan(&outcome)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return outcome == pipeline.OutcomeDone, nil
}

func (s *PostgresStore) MarkComplete(ctx context.Context, marker pipeline.Marker) error {
	query := `INSERT INTO chunk_markers (document_id, chunk_id, outcome, reason, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, chunk_id)
		DO UPDATE SET outcome = EXCLUDED.outcome, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		marker.DocumentID, marker.ChunkID, marker.Outcome, marker.Reason, marker.UpdatedAt)
	return err
}

// Pending filters chunkIDs down to the ones without a done marker,
// preserving input order. Failed markers count as pending so a re-run
// retries them.
func (s *PostgresStore) Pending(ctx context.Context, docID string, chunkIDs []string) ([]string, error) {
	query := `SELECT chunk_id FROM chunk_markers WHERE document_id = $1 AND outcome = $2`
	rows, err := s.db.QueryContext(ctx, query, docID, pipeline.OutcomeDone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pending []string
	for _, id := range chunkIDs {
		if !done[id] {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

func (s *PostgresStore) SetDocumentStatus(ctx context.Context, docID, status string) error {
	query := `INSERT INTO document_statuses (document_id, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (document_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, query, docID, status)
	return err
}

func (s *PostgresStore) DocumentStatus(ctx context.Context, docID string) (string, error) {
	var status string
	query := `SELECT status FROM document_statuses WHERE document_id = $1`
	err := s.db.QueryRowContext(ctx, query, docID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return status, err
}
