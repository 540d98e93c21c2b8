package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// ManifestEntry is one document reference in the intake manifest.
type ManifestEntry struct {
	Source    string `json:"source"`
	MediaType string `json:"media_type,omitempty"`
}

type manifestFile struct {
	Documents []ManifestEntry `json:"documents"`
}

// LoadManifest reads the intake manifest, a JSON file of document
// references. Both a bare array and a {"documents": [...]} wrapper are
// accepted. Duplicate sources collapse to one document.
func LoadManifest(ctx context.Context, path string, fetcher Fetcher) ([]Document, error) {
	local := path
	if IsRemote(path) {
		if fetcher == nil {
			return nil, fmt.Errorf("manifest %s: no fetcher configured for remote source", path)
		}
		p, cleanup, err := fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("fetch manifest %s: %w", path, err)
		}
		defer cleanup()
		local = p
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	entries, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	seen := make(map[string]bool, len(entries))
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		if e.Source == "" {
			return nil, fmt.Errorf("parse manifest %s: entry with empty source", path)
		}
		doc := New(e.Source, e.MediaType)
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseManifest(data []byte) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var wrapped manifestFile
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Documents, nil
}
