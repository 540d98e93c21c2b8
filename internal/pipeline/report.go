package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// ChunkFailure is one terminally failed chunk with the stage and reason,
// listed in the final report so a selective re-run can be judged.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Stage   string `json:"stage"` // "extract", "embed" or "index"
	Reason  string `json:"reason"`
}

// Summary is the externally visible result for one document.
type Summary struct {
	DocumentID string         `json:"document_id"`
	Source     string         `json:"source"`
	Status     string         `json:"status"`
	Chunks     int            `json:"chunks"`
	Skipped    int            `json:"skipped"` // already complete from a previous run
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	PageErrors int            `json:"page_errors,omitempty"`
	Failures   []ChunkFailure `json:"failures,omitempty"`
	Reason     string         `json:"reason,omitempty"` // document-level failure
}

// Report aggregates per-document summaries for one run.
type Report struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Summaries []Summary `json:"summaries"`
}

func NewReport(runID string) *Report {
	return &Report{RunID: runID, StartedAt: time.Now().UTC()}
}

func (r *Report) Add(s Summary) {
	r.Summaries = append(r.Summaries, s)
}

// Counts returns the number of documents per terminal state.
func (r *Report) Counts() (done, partial, failed int) {
	for _, s := range r.Summaries {
		switch s.Status {
		case StatusDone:
			done++
		case StatusPartiallyFailed:
			partial++
		default:
			failed++
		}
	}
	return done, partial, failed
}

// AllDone reports whether every document reached Done, which maps to a
// zero exit status.
func (r *Report) AllDone() bool {
	_, partial, failed := r.Counts()
	return partial == 0 && failed == 0
}

// Log writes the per-document summary lines plus a run total.
func (r *Report) Log(ctx context.Context) {
	for _, s := range r.Summaries {
		attrs := []any{
			"doc_id", s.DocumentID,
			"source", s.Source,
			"status", s.Status,
			"chunks", s.Chunks,
			"skipped", s.Skipped,
			"succeeded", s.Succeeded,
			"failed", s.Failed,
		}
		if s.PageErrors > 0 {
			attrs = append(attrs, "page_errors", s.PageErrors)
		}
		if s.Reason != "" {
			attrs = append(attrs, "reason", s.Reason)
		}
		if s.Status == StatusDone {
			slog.InfoContext(ctx, "document indexed", attrs...)
		} else {
			slog.WarnContext(ctx, "document degraded", attrs...)
		}
		for _, f := range s.Failures {
			slog.WarnContext(ctx, "chunk failed", "doc_id", s.DocumentID, "chunk_id", f.ChunkID, "stage", f.Stage, "reason", f.Reason)
		}
	}

	done, partial, failed := r.Counts()
	slog.InfoContext(ctx, "run complete",
		"documents", len(r.Summaries), "done", done, "partially_failed", partial, "failed", failed,
		"elapsed", time.Since(r.StartedAt).String())
}
