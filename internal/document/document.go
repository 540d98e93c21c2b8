package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeText = "text/plain"
)

// Document is a source document reference from the intake manifest.
// The ID is derived from the source location, so the same source always
// maps to the same document across runs.
type Document struct {
	ID        string
	Source    string // local path or s3:// URI
	MediaType string
	Size      int64
}

func New(source, mediaType string) Document {
	if mediaType == "" {
		mediaType = InferMediaType(source)
	}
	return Document{
		ID:        deriveID(source),
		Source:    source,
		MediaType: mediaType,
	}
}

func deriveID(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:16])
}

func InferMediaType(source string) string {
	switch strings.ToLower(path.Ext(source)) {
	case ".pdf":
		return MediaTypePDF
	default:
		return MediaTypeText
	}
}

// Segment is one extracted unit of a document, in page order.
type Segment struct {
	Page int
	Text string
}

// PageError records a page that could not be extracted. Sibling pages
// still proceed; the failure is surfaced in the final report.
type PageError struct {
	Page   int
	Reason string
}

// ExtractionError means a document yielded no text at all.
type ExtractionError struct {
	Source string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("extracting %s: %s", e.Source, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
