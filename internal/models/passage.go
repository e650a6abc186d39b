package models

import "time"

// Document represents raw text loaded from a single source unit (a file, or a
// single CSV row). Documents are transient: they exist between loading and
// chunking and are never persisted.
type Document struct {
	SourceID string            `json:"source_id"` // Path of the originating file, relative to the ingest directory
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"` // Source position details (row, page)
}

// Passage is the unit of retrieval: a bounded span of text derived from a
// Document by the chunker. Immutable once created; the vector index owns
// passages after ingestion and they are only replaced wholesale on rebuild.
type Passage struct {
	ID       string            `json:"id"`        // psg_{uuid}
	SourceID string            `json:"source_id"` // Propagated from the originating Document
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"` // Source position (row, page, chunk index)
}

// IndexEntry pairs a passage with its embedding vector inside the vector
// index. Every entry carries a vector of the index's fixed dimensionality.
type IndexEntry struct {
	Passage Passage   `json:"passage"`
	Vector  []float32 `json:"vector"`
}

// ScoredPassage is a single retrieval hit. Distance is cosine distance
// (1 - cosine similarity): lower is closer.
type ScoredPassage struct {
	Passage  Passage `json:"passage"`
	Distance float64 `json:"distance"`
}

// RetrievalResult is an ordered sequence of hits ranked ascending by
// distance, at most K entries long.
type RetrievalResult struct {
	Query    string          `json:"query"` // The standalone query actually searched
	Passages []ScoredPassage `json:"passages"`
}

// Texts returns the passage texts in rank order.
func (r *RetrievalResult) Texts() []string {
	texts := make([]string, len(r.Passages))
	for i, p := range r.Passages {
		texts[i] = p.Passage.Text
	}
	return texts
}

// IndexManifest describes a persisted vector index well enough to rebuild it
// without external schema: dimensionality, the embedding model that produced
// the vectors, and the entry count.
type IndexManifest struct {
	Dimension      int       `json:"dimension"`
	EmbeddingModel string    `json:"embedding_model"`
	EntryCount     int       `json:"entry_count"`
	SavedAt        time.Time `json:"saved_at"`
}

// IngestionReport summarizes one ingest run. Per-document failures do not
// abort the run; they are collected here.
type IngestionReport struct {
	Directory     string        `json:"directory"`
	DocumentCount int           `json:"document_count"`
	PassageCount  int           `json:"passage_count"`
	Failures      []FileFailure `json:"failures,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// FileFailure records a single document that could not be loaded.
type FileFailure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}
