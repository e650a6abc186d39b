package interfaces

import (
	"context"

	"github.com/ternarybob/respondo/internal/models"
)

// DocumentProvider supplies (text, source metadata) pairs from a
// directory-like location. Format-specific parsing is entirely its
// responsibility; the pipeline only consumes the normalized documents.
type DocumentProvider interface {
	// LoadDirectory walks the directory and loads every supported file.
	// Per-file failures are returned alongside the successfully loaded
	// documents and never abort the walk.
	LoadDirectory(ctx context.Context, dir string) ([]models.Document, []models.FileFailure, error)
}
