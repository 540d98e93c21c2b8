package text

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// chunkNamespace is the UUID v5 namespace for chunk identifiers. It must
// never change: chunk ids are the upsert keys in the index, and stable ids
// are what make re-indexing idempotent.
var chunkNamespace = uuid.MustParse("c7a1f5d2-6e4b-4b9a-8f3c-2d9e7b1a0c64")

// ChunkID derives the deterministic identifier for a chunk from its
// document and sequence position. The result is a valid UUID, which the
// index uses as the object id.
func ChunkID(docID string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(docID+":"+strconv.Itoa(seq))).String()
}

// Chunk is a retrieval unit of a document. Start and End are byte
// offsets into the source text; Text is the slice between them.
type Chunk struct {
	DocumentID string
	Seq        int
	ID         string
	Start      int
	End        int
	Text       string
}

type Config struct {
	// ChunkSize is the target chunk length in bytes.
	ChunkSize int
	// Overlap is how many bytes consecutive chunks share.
	Overlap int
	// BoundaryTolerance is how far back from the hard cut the chunker
	// searches for a paragraph, sentence, or word break.
	BoundaryTolerance int
}

func DefaultConfig() Config {
	return Config{ChunkSize: 2000, Overlap: 200, BoundaryTolerance: 200}
}

type Chunker struct {
	cfg Config
}

func NewChunker(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 4
	}
	if cfg.BoundaryTolerance < 0 {
		cfg.BoundaryTolerance = 0
	}
	return &Chunker{cfg: cfg}
}

// Split cuts text into overlapping chunks with a greedy fixed window.
// Identical input and config always produce identical boundaries and
// ids. An empty input yields no chunks; input shorter than the chunk
// size yields exactly one.
func (c *Chunker) Split(docID, text string) []Chunk {
	if text == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	seq := 0

	for start < len(text) {
		end := start + c.cfg.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.cutPoint(text, start, end)
		}

		chunks = append(chunks, Chunk{
			DocumentID: docID,
			Seq:        seq,
			ID:         ChunkID(docID, seq),
			Start:      start,
			End:        end,
			Text:       text[start:end],
		})

		if end == len(text) {
			break
		}

		next := end - c.cfg.Overlap
		for next > 0 && next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			// Overlap would stall the window; drop it for this step.
			next = end
		}
		start = next
		seq++
	}

	return chunks
}

// cutPoint picks the chunk end: the best break found within the
// tolerance window back from the hard cut, else the hard cut itself
// aligned to a rune boundary.
func (c *Chunker) cutPoint(text string, start, hard int) int {
	lo := hard - c.cfg.BoundaryTolerance
	if lo <= start {
		lo = start + 1
	}
	window := text[lo:hard]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return lo + i + 2
	}
	if i := lastSentenceEnd(window); i >= 0 {
		return lo + i + 1
	}
	if i := strings.LastIndexAny(window, " \t\n"); i >= 0 {
		return lo + i + 1
	}

	for hard > start+1 && !utf8.RuneStart(text[hard]) {
		hard--
	}
	return hard
}

// lastSentenceEnd finds the final ".", "!" or "?" that is followed by
// whitespace, returning the index of the punctuation byte.
func lastSentenceEnd(window string) int {
	for i := len(window) - 1; i > 0; i-- {
		b := window[i]
		if b != ' ' && b != '\n' && b != '\t' {
			continue
		}
		switch window[i-1] {
		case '.', '!', '?':
			return i - 1
		}
	}
	return -1
}
