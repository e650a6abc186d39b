package index

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/common"
	"github.com/ternarybob/respondo/internal/models"
	"github.com/ternarybob/respondo/internal/storage/badger"
)

// snapshot is one immutable generation of the index. Searches read a
// snapshot pointer once and never observe a partial rebuild.
type snapshot struct {
	dimension int
	entries   []models.IndexEntry
}

var emptySnapshot = &snapshot{}

// Index is a brute-force cosine-distance vector index over passage
// embeddings. Build and Load swap in complete replacements; Search is
// lock-free and safe for concurrent use.
type Index struct {
	embeddingModel string
	snap           atomic.Pointer[snapshot]
	logger         arbor.ILogger
}

// NewIndex creates an empty index. The embedding model name is recorded in
// persisted snapshots so a reload against a different model is rejected.
func NewIndex(embeddingModel string, logger arbor.ILogger) *Index {
	idx := &Index{
		embeddingModel: embeddingModel,
		logger:         logger,
	}
	idx.snap.Store(emptySnapshot)
	return idx
}

// Build replaces the index contents with the given entries in one atomic
// swap. All vectors must share one dimensionality and no passage ID may
// appear twice.
func (i *Index) Build(entries []models.IndexEntry) error {
	if len(entries) == 0 {
		i.snap.Store(emptySnapshot)
		i.logger.Debug().Msg("Index rebuilt empty")
		return nil
	}

	dimension := len(entries[0].Vector)
	seen := make(map[string]struct{}, len(entries))
	for n, entry := range entries {
		if entry.Passage.ID == "" {
			return fmt.Errorf("entry %d has an empty passage ID", n)
		}
		if _, dup := seen[entry.Passage.ID]; dup {
			return fmt.Errorf("duplicate passage ID in index build: %s", entry.Passage.ID)
		}
		seen[entry.Passage.ID] = struct{}{}

		if len(entry.Vector) != dimension {
			return fmt.Errorf("entry %d has dimension %d, expected %d", n, len(entry.Vector), dimension)
		}
	}

	copied := make([]models.IndexEntry, len(entries))
	copy(copied, entries)

	i.snap.Store(&snapshot{
		dimension: dimension,
		entries:   copied,
	})

	i.logger.Info().
		Int("entry_count", len(copied)).
		Int("dimension", dimension).
		Msg("Index rebuilt")

	return nil
}

// Search returns the k nearest entries to the query vector, ranked
// ascending by cosine distance. Entries at equal distance keep their
// insertion order. Fewer than k results are returned when the index holds
// fewer entries.
func (i *Index) Search(query []float32, k int) ([]models.ScoredPassage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0, got %d", k)
	}

	snap := i.snap.Load()
	if len(snap.entries) == 0 {
		return nil, &models.RetrievalError{Reason: "index is empty; ingest documents before searching"}
	}

	if len(query) != snap.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), snap.dimension)
	}

	scored := make([]models.ScoredPassage, len(snap.entries))
	for n, entry := range snap.entries {
		scored[n] = models.ScoredPassage{
			Passage:  entry.Passage,
			Distance: common.CosineDistance(query, entry.Vector),
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Distance < scored[b].Distance
	})

	if k > len(scored) {
		k = len(scored)
	}

	return scored[:k], nil
}

// Len reports the number of indexed entries.
func (i *Index) Len() int {
	return len(i.snap.Load().entries)
}

// Save persists the current index contents to a Badger database at the
// given path, replacing any previous snapshot there.
func (i *Index) Save(path string) error {
	snap := i.snap.Load()

	storage, err := badger.NewIndexStorage(path, i.logger)
	if err != nil {
		return fmt.Errorf("failed to open index storage: %w", err)
	}
	defer storage.Close()

	manifest := &models.IndexManifest{
		Dimension:      snap.dimension,
		EmbeddingModel: i.embeddingModel,
		EntryCount:     len(snap.entries),
		SavedAt:        time.Now().UTC(),
	}

	if err := storage.SaveSnapshot(manifest, snap.entries); err != nil {
		return err
	}

	i.logger.Info().
		Str("path", path).
		Int("entry_count", len(snap.entries)).
		Msg("Index persisted")

	return nil
}

// Load replaces the index contents from a snapshot previously written by
// Save. A snapshot written under a different embedding model is rejected,
// since its vectors are not comparable with fresh query embeddings.
func (i *Index) Load(path string) error {
	storage, err := badger.NewIndexStorage(path, i.logger)
	if err != nil {
		return fmt.Errorf("failed to open index storage: %w", err)
	}
	defer storage.Close()

	manifest, entries, err := storage.LoadSnapshot()
	if err != nil {
		return err
	}

	if manifest.EmbeddingModel != i.embeddingModel {
		return models.NewConfigError("gemini.embed_model",
			fmt.Sprintf("persisted index was built with model '%s' but '%s' is configured; re-ingest to rebuild", manifest.EmbeddingModel, i.embeddingModel))
	}

	if err := i.Build(entries); err != nil {
		return fmt.Errorf("failed to rebuild index from snapshot: %w", err)
	}

	i.logger.Info().
		Str("path", path).
		Int("entry_count", len(entries)).
		Str("saved_at", manifest.SavedAt.Format(time.RFC3339)).
		Msg("Index loaded from snapshot")

	return nil
}
