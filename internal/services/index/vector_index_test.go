package index

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/models"
	"github.com/ternarybob/respondo/internal/storage/badger"
)

const testModel = "gemini-embedding-001"

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func entry(id string, vector ...float32) models.IndexEntry {
	return models.IndexEntry{
		Passage: models.Passage{ID: id, SourceID: "doc.txt", Text: "passage " + id},
		Vector:  vector,
	}
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	idx := NewIndex(testModel, testLogger())

	err := idx.Build([]models.IndexEntry{
		entry("psg_a", 1, 0),
		entry("psg_a", 0, 1),
	})
	if err == nil {
		t.Fatal("expected duplicate ID error")
	}
	if idx.Len() != 0 {
		t.Fatalf("failed build must not replace contents, got %d entries", idx.Len())
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	idx := NewIndex(testModel, testLogger())

	err := idx.Build([]models.IndexEntry{
		entry("psg_a", 1, 0),
		entry("psg_b", 0, 1, 0),
	})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestBuildRejectsEmptyID(t *testing.T) {
	idx := NewIndex(testModel, testLogger())

	if err := idx.Build([]models.IndexEntry{entry("", 1, 0)}); err == nil {
		t.Fatal("expected empty ID error")
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := NewIndex(testModel, testLogger())

	_, err := idx.Search([]float32{1, 0}, 3)
	if err == nil {
		t.Fatal("expected error on empty index")
	}
	var retErr *models.RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError, got %T: %v", err, err)
	}
}

func TestSearchInvalidK(t *testing.T) {
	idx := NewIndex(testModel, testLogger())
	if err := idx.Build([]models.IndexEntry{entry("psg_a", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	if _, err := idx.Search([]float32{1, 0}, 0); err == nil {
		t.Fatal("expected error for k=0")
	}
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	idx := NewIndex(testModel, testLogger())
	if err := idx.Build([]models.IndexEntry{entry("psg_a", 1, 0)}); err != nil {
		t.Fatal(err)
	}

	if _, err := idx.Search([]float32{1, 0, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestSearchRanking(t *testing.T) {
	idx := NewIndex(testModel, testLogger())
	err := idx.Build([]models.IndexEntry{
		entry("psg_far", -1, 0),
		entry("psg_mid", 0, 1),
		entry("psg_near", 0.9, 0.1),
		entry("psg_exact", 1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	wantOrder := []string{"psg_exact", "psg_near", "psg_mid"}
	for n, want := range wantOrder {
		if results[n].Passage.ID != want {
			t.Fatalf("rank %d: expected %s, got %s", n, want, results[n].Passage.ID)
		}
	}
	if math.Abs(results[0].Distance) > 1e-6 {
		t.Fatalf("identical vector should score distance 0, got %f", results[0].Distance)
	}
	for n := 1; n < len(results); n++ {
		if results[n].Distance < results[n-1].Distance {
			t.Fatalf("distances not ascending at rank %d", n)
		}
	}
}

func TestSearchStableTies(t *testing.T) {
	idx := NewIndex(testModel, testLogger())
	err := idx.Build([]models.IndexEntry{
		entry("psg_first", 0, 1),
		entry("psg_second", 0, 1),
		entry("psg_third", 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search([]float32{1, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}

	wantOrder := []string{"psg_first", "psg_second", "psg_third"}
	for n, want := range wantOrder {
		if results[n].Passage.ID != want {
			t.Fatalf("tied entries must keep insertion order, rank %d got %s", n, results[n].Passage.ID)
		}
	}
}

func TestSearchCapsAtIndexSize(t *testing.T) {
	idx := NewIndex(testModel, testLogger())
	err := idx.Build([]models.IndexEntry{
		entry("psg_a", 1, 0),
		entry("psg_b", 0, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected all 2 entries, got %d", len(results))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "index-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "index")

	idx := NewIndex(testModel, testLogger())
	err = idx.Build([]models.IndexEntry{
		entry("psg_first", 0, 1),
		entry("psg_second", 0, 1),
		entry("psg_third", 1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	restored := NewIndex(testModel, testLogger())
	if err := restored.Load(path); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 3 {
		t.Fatalf("expected 3 entries after load, got %d", restored.Len())
	}

	// Insertion order survives persistence, so tie-breaking is unchanged.
	results, err := restored.Search([]float32{0, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Passage.ID != "psg_first" || results[1].Passage.ID != "psg_second" {
		t.Fatalf("restored tie order wrong: %s, %s", results[0].Passage.ID, results[1].Passage.ID)
	}
}

func TestLoadRejectsModelMismatch(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "index-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "index")

	idx := NewIndex(testModel, testLogger())
	if err := idx.Build([]models.IndexEntry{entry("psg_a", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	other := NewIndex("text-embedding-004", testLogger())
	err = other.Load(path)
	if err == nil {
		t.Fatal("expected model mismatch error")
	}
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Field != "gemini.embed_model" {
		t.Fatalf("expected field gemini.embed_model, got %q", cfgErr.Field)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "index-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	idx := NewIndex(testModel, testLogger())
	err = idx.Load(filepath.Join(tmpDir, "index"))
	if !errors.Is(err, badger.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}
