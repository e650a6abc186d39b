package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/common"
	"github.com/ternarybob/respondo/internal/models"
)

// Boundary separators in priority order. A chunk boundary prefers a paragraph
// break over a line break over plain whitespace; only when none falls inside
// the window does the splitter hard-cut at the size limit. This ordering
// keeps passages from ending mid-sentence, which degrades both retrieval
// relevance and embedding quality.
var separators = []string{"\n\n", "\n", " "}

// Splitter divides document text into overlapping passages. Lengths are
// measured in runes to match the character-count granularity the embedding
// models accept.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	logger       arbor.ILogger
}

// NewSplitter creates a splitter with the given size and overlap bounds.
// Invalid parameters fail fast with a ConfigError before any document is
// touched: an overlap at or above the chunk size would stop the window from
// advancing and loop or duplicate content.
func NewSplitter(chunkSize, chunkOverlap int, logger arbor.ILogger) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, models.NewConfigError("chunking.chunk_size", fmt.Sprintf("must be positive, got %d", chunkSize))
	}
	if chunkOverlap < 0 {
		return nil, models.NewConfigError("chunking.chunk_overlap", fmt.Sprintf("must not be negative, got %d", chunkOverlap))
	}
	if chunkOverlap >= chunkSize {
		return nil, models.NewConfigError("chunking.chunk_overlap",
			fmt.Sprintf("must be smaller than chunk_size (%d >= %d)", chunkOverlap, chunkSize))
	}

	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}, nil
}

// Split chunks every document into passages, propagating source metadata to
// each derived passage. Pure transformation: no I/O, no mutation of inputs.
func (s *Splitter) Split(documents []models.Document) []models.Passage {
	var passages []models.Passage

	for _, doc := range documents {
		chunks := s.splitText(doc.Text)
		for i, chunk := range chunks {
			metadata := make(map[string]string, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			metadata["chunk"] = strconv.Itoa(i)

			passages = append(passages, models.Passage{
				ID:       common.NewPassageID(),
				SourceID: doc.SourceID,
				Text:     chunk,
				Metadata: metadata,
			})
		}
	}

	s.logger.Debug().
		Int("documents", len(documents)).
		Int("passages", len(passages)).
		Int("chunk_size", s.chunkSize).
		Int("chunk_overlap", s.chunkOverlap).
		Msg("Split documents into passages")

	return passages
}

// splitText slides a window of chunkSize runes across the text, snapping
// each cut back to the best natural boundary inside the window. Consecutive
// chunks share exactly chunkOverlap runes, and every cut lands far enough
// past the window start that the next start strictly advances.
func (s *Splitter) splitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	// The snap floor keeps the next start (end - chunkOverlap) strictly past
	// the current one. When the overlap exceeds half the chunk size the step
	// alone is not enough of a guarantee.
	floor := s.chunkSize - s.chunkOverlap
	if s.chunkOverlap+1 > floor {
		floor = s.chunkOverlap + 1
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		if cut, ok := s.snapBoundary(runes, start+floor, end); ok {
			end = cut
		}

		chunks = append(chunks, string(runes[start:end]))
		start = end - s.chunkOverlap
	}

	return chunks
}

// snapBoundary searches [lo, hi] backwards for the highest-priority separator
// and returns the cut position just after it, keeping the separator with the
// leading chunk.
func (s *Splitter) snapBoundary(runes []rune, lo, hi int) (int, bool) {
	window := string(runes[lo:hi])
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			sepRunes := len([]rune(sep))
			cut := lo + len([]rune(window[:idx])) + sepRunes
			if cut > lo && cut <= hi {
				return cut, true
			}
		}
	}
	return 0, false
}
