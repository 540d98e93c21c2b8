package document

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Fetcher resolves a remote source URI to a local file. The cleanup
// callback removes any temporary copy and is always safe to call.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (localPath string, cleanup func(), err error)
}

// Loader extracts text segments from a source document. Remote sources
// are staged locally through the fetcher before extraction.
type Loader struct {
	fetcher Fetcher
}

func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load returns the extracted segments in page order plus per-page
// failures. It returns an ExtractionError only when no text at all was
// recovered; partial documents proceed with whatever was extracted.
func (l *Loader) Load(ctx context.Context, doc Document) ([]Segment, []PageError, error) {
	local := doc.Source
	if IsRemote(doc.Source) {
		if l.fetcher == nil {
			return nil, nil, &ExtractionError{Source: doc.Source, Reason: "no fetcher configured for remote source"}
		}
		path, cleanup, err := l.fetcher.Fetch(ctx, doc.Source)
		if err != nil {
			return nil, nil, &ExtractionError{Source: doc.Source, Reason: "fetch failed", Err: err}
		}
		defer cleanup()
		local = path
	}

	var (
		segments []Segment
		pageErrs []PageError
		err      error
	)

	switch doc.MediaType {
	case MediaTypePDF:
		segments, pageErrs, err = extractPDF(local)
	default:
		segments, err = extractText(local)
	}
	if err != nil {
		return nil, pageErrs, &ExtractionError{Source: doc.Source, Reason: "unreadable source", Err: err}
	}

	if len(pageErrs) > 0 {
		slog.WarnContext(ctx, "partial extraction", "source", doc.Source, "failed_pages", len(pageErrs), "extracted", len(segments))
	}

	if len(segments) == 0 && len(pageErrs) > 0 {
		return nil, pageErrs, &ExtractionError{Source: doc.Source, Reason: "every page failed extraction"}
	}

	return segments, pageErrs, nil
}

func IsRemote(source string) bool {
	return strings.HasPrefix(source, "s3://")
}

func extractText(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Segment{{Page: 1, Text: text}}, nil
}

// Concat joins segments into the single text the chunker operates on.
// The join is deterministic so chunk boundaries are stable across runs.
func Concat(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
