package badger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/respondo/internal/common"
	"github.com/ternarybob/respondo/internal/models"
)

// manifestKey is the fixed key the index manifest is stored under.
const manifestKey = "manifest"

// ErrNoSnapshot reports that the database exists but holds no saved index.
var ErrNoSnapshot = errors.New("no index snapshot found")

// indexRecord is the persisted form of one index entry. Seq preserves
// insertion order so search tie-breaking survives a save/load round trip.
type indexRecord struct {
	Seq     int `badgerhold:"key"`
	Passage models.Passage
	Vector  []float32
}

// IndexStorage persists vector index snapshots in a Badger database.
// Each snapshot write replaces the previous one wholesale.
type IndexStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewIndexStorage opens index storage at the given filesystem path.
// The caller owns the returned storage and must Close it.
func NewIndexStorage(path string, logger arbor.ILogger) (*IndexStorage, error) {
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: path})
	if err != nil {
		return nil, err
	}

	return &IndexStorage{
		db:     db,
		logger: logger,
	}, nil
}

// SaveSnapshot replaces the persisted snapshot with the given manifest and
// entries. Entries are written in slice order.
func (s *IndexStorage) SaveSnapshot(manifest *models.IndexManifest, entries []models.IndexEntry) error {
	store := s.db.Store()

	// Clear any previous snapshot so stale records never survive a rebuild
	if err := store.DeleteMatching(&indexRecord{}, nil); err != nil {
		return fmt.Errorf("failed to clear previous index records: %w", err)
	}

	for i, entry := range entries {
		record := &indexRecord{
			Seq:     i,
			Passage: entry.Passage,
			Vector:  entry.Vector,
		}
		if err := store.Upsert(i, record); err != nil {
			return fmt.Errorf("failed to persist index record %d: %w", i, err)
		}
	}

	if err := store.Upsert(manifestKey, manifest); err != nil {
		return fmt.Errorf("failed to persist index manifest: %w", err)
	}

	s.logger.Debug().
		Int("entry_count", len(entries)).
		Str("embedding_model", manifest.EmbeddingModel).
		Int("dimension", manifest.Dimension).
		Msg("Index snapshot saved")

	return nil
}

// LoadSnapshot reads the persisted manifest and entries. Entries are
// returned in the order they were saved.
func (s *IndexStorage) LoadSnapshot() (*models.IndexManifest, []models.IndexEntry, error) {
	store := s.db.Store()

	var manifest models.IndexManifest
	if err := store.Get(manifestKey, &manifest); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil, ErrNoSnapshot
		}
		return nil, nil, fmt.Errorf("failed to read index manifest: %w", err)
	}

	var records []indexRecord
	if err := store.Find(&records, badgerhold.Where("Seq").Ge(0)); err != nil {
		return nil, nil, fmt.Errorf("failed to read index records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})

	entries := make([]models.IndexEntry, len(records))
	for i, record := range records {
		entries[i] = models.IndexEntry{
			Passage: record.Passage,
			Vector:  record.Vector,
		}
	}

	if len(entries) != manifest.EntryCount {
		return nil, nil, fmt.Errorf("index snapshot is corrupt: manifest says %d entries, found %d", manifest.EntryCount, len(entries))
	}

	s.logger.Debug().
		Int("entry_count", len(entries)).
		Str("embedding_model", manifest.EmbeddingModel).
		Msg("Index snapshot loaded")

	return &manifest, entries, nil
}

// Close closes the underlying database connection.
func (s *IndexStorage) Close() error {
	return s.db.Close()
}
