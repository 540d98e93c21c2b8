// Package progress persists per-chunk completion markers and
// per-document terminal statuses so an interrupted run can resume.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"docdex/internal/pipeline"
)

// Key layout: markers under "m:<docID>:<chunkID>", document statuses
// under "d:<docID>". Both values are small JSON blobs.
func markerKey(docID, chunkID string) []byte { return []byte("m:" + docID + ":" + chunkID) }
func statusKey(docID string) []byte          { return []byte("d:" + docID) }

// BadgerStore keeps progress in an embedded key-value store. It needs
// no external service, which suits a single-host batch job.
type BadgerStore struct {
	db *badger.DB
}

// badgerLoggerAdapter routes badger's internal logging through slog.
type badgerLoggerAdapter struct{}

func (badgerLoggerAdapter) Errorf(msg string, items ...any)   { slog.Error(fmt.Sprintf(msg, items...)) }
func (badgerLoggerAdapter) Warningf(msg string, items ...any) { slog.Warn(fmt.Sprintf(msg, items...)) }
func (badgerLoggerAdapter) Infof(msg string, items ...any)    { slog.Debug(fmt.Sprintf(msg, items...)) }
func (badgerLoggerAdapter) Debugf(msg string, items ...any)   { slog.Debug(fmt.Sprintf(msg, items...)) }

// OpenBadger opens (creating if needed) the progress store at path.
// An empty path opens an in-memory store that forgets everything on
// close, useful for tests and one-off runs.
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = badgerLoggerAdapter{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open progress store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) IsComplete(_ context.Context, docID, chunkID string) (bool, error) {
	var done bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(markerKey(docID, chunkID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var m pipeline.Marker
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			done = m.Outcome == pipeline.OutcomeDone
			return nil
		})
	})
	return done, err
}

func (s *BadgerStore) MarkComplete(_ context.Context, marker pipeline.Marker) error {
	val, err := json.Marshal(marker)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(markerKey(marker.DocumentID, marker.ChunkID), val)
	})
}

// Pending returns the chunk ids that still need processing. A chunk
// with a failed marker counts as pending so the next run retries it.
func (s *BadgerStore) Pending(_ context.Context, docID string, chunkIDs []string) ([]string, error) {
	var pending []string
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range chunkIDs {
			item, err := txn.Get(markerKey(docID, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				pending = append(pending, id)
				continue
			}
			if err != nil {
				return err
			}
			var done bool
			if err := item.Value(func(val []byte) error {
				var m pipeline.Marker
				if err := json.Unmarshal(val, &m); err != nil {
					return err
				}
				done = m.Outcome == pipeline.OutcomeDone
				return nil
			}); err != nil {
				return err
			}
			if !done {
				pending = append(pending, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (s *BadgerStore) SetDocumentStatus(_ context.Context, docID, status string) error {
	val, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(statusKey(docID), val)
	})
}

// DocumentStatus returns the last recorded terminal status for the
// document, or the empty string if none was recorded.
func (s *BadgerStore) DocumentStatus(_ context.Context, docID string) (string, error) {
	var status string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(statusKey(docID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var rec map[string]string
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			status = rec["status"]
			return nil
		})
	})
	return status, err
}
