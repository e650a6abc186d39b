package interfaces

import (
	"github.com/ternarybob/respondo/internal/models"
)

// VectorIndex stores passage vectors and supports nearest-neighbor search by
// cosine distance. The index is built wholesale and read-only under search;
// rebuilds swap in a complete replacement so in-flight searches never observe
// a partially built index.
type VectorIndex interface {
	// Build replaces the index contents with the given entries in one atomic
	// swap. All vectors must share one dimensionality and no passage ID may
	// appear twice.
	Build(entries []models.IndexEntry) error

	// Search returns the k nearest entries to the query vector, ranked
	// ascending by cosine distance, ties broken by insertion order. Fewer
	// than k entries are returned when the index is smaller than k.
	Search(query []float32, k int) ([]models.ScoredPassage, error)

	// Len reports the number of indexed entries.
	Len() int

	// Save persists the index to a durable location identified by a path.
	Save(path string) error

	// Load replaces the index contents from a previously saved location.
	// Search rankings after Load are identical to those before Save.
	Load(path string) error
}
