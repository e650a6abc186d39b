package documents

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/models"
	"github.com/ternarybob/respondo/internal/services/pdf"
)

// Provider loads documents from a directory tree. Plain text and Markdown
// files become one document each, CSV files one document per row, and PDF
// files one document per page. Files that fail to parse are reported and
// skipped; they never abort the run.
type Provider struct {
	extensions map[string]struct{}
	pdf        *pdf.Extractor
	logger     arbor.ILogger
}

// NewProvider creates a document provider accepting the given file
// extensions (with leading dot, e.g. ".txt").
func NewProvider(extensions []string, logger arbor.ILogger) *Provider {
	accepted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		accepted[strings.ToLower(ext)] = struct{}{}
	}

	return &Provider{
		extensions: accepted,
		pdf:        pdf.NewExtractor(logger),
		logger:     logger,
	}
}

// LoadDirectory walks the directory tree and loads every supported file.
// Source IDs are paths relative to the directory root. Returns the loaded
// documents and per-file failures; only an unreadable root directory is a
// hard error.
func (p *Provider) LoadDirectory(ctx context.Context, dir string) ([]models.Document, []models.FileFailure, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read document directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", dir)
	}

	var documents []models.Document
	var failures []models.FileFailure

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			// Skip hidden directories such as .git
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sourceID, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			sourceID = path
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := p.extensions[ext]; !ok {
			p.logger.Debug().Str("file", sourceID).Msg("Skipping unsupported file type")
			return nil
		}

		docs, loadErr := p.loadFile(ctx, path, sourceID, ext)
		if loadErr != nil {
			p.logger.Warn().Err(loadErr).Str("file", sourceID).Msg("Failed to load document")
			failures = append(failures, models.FileFailure{
				SourceID: sourceID,
				Reason:   loadErr.Error(),
			})
			return nil
		}

		documents = append(documents, docs...)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk document directory: %w", err)
	}

	p.logger.Info().
		Str("directory", dir).
		Int("document_count", len(documents)).
		Int("failure_count", len(failures)).
		Msg("Documents loaded")

	return documents, failures, nil
}

// loadFile dispatches on file extension.
func (p *Provider) loadFile(ctx context.Context, path, sourceID, ext string) ([]models.Document, error) {
	switch ext {
	case ".txt", ".md":
		return p.loadTextFile(path, sourceID)
	case ".csv":
		return p.loadCSVFile(path, sourceID)
	case ".pdf":
		return p.loadPDFFile(ctx, path, sourceID)
	default:
		return nil, fmt.Errorf("unsupported extension %s", ext)
	}
}

// loadTextFile loads a plain text or Markdown file as a single document.
// Empty files produce no document.
func (p *Provider) loadTextFile(path, sourceID string) ([]models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	text := string(content)
	if strings.TrimSpace(text) == "" {
		p.logger.Debug().Str("file", sourceID).Msg("Skipping empty file")
		return nil, nil
	}

	return []models.Document{{
		SourceID: sourceID,
		Text:     text,
	}}, nil
}

// loadCSVFile loads a CSV file as one document per data row. Each row is
// rendered as "header: value" lines so column meaning survives chunking.
func (p *Provider) loadCSVFile(path, sourceID string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		p.logger.Debug().Str("file", sourceID).Msg("Skipping CSV without data rows")
		return nil, nil
	}

	header := records[0]
	documents := make([]models.Document, 0, len(records)-1)
	for rowNum, record := range records[1:] {
		var b strings.Builder
		for i, value := range record {
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				name = strings.TrimSpace(header[i])
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}

		documents = append(documents, models.Document{
			SourceID: sourceID,
			Text:     b.String(),
			Metadata: map[string]string{
				"row": strconv.Itoa(rowNum + 1),
			},
		})
	}

	return documents, nil
}

// loadPDFFile loads a PDF file as one document per page. Pages without
// extractable text are skipped.
func (p *Provider) loadPDFFile(ctx context.Context, path, sourceID string) ([]models.Document, error) {
	pages, err := p.pdf.ExtractPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF: %w", err)
	}

	documents := make([]models.Document, 0, len(pages))
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		documents = append(documents, models.Document{
			SourceID: sourceID,
			Text:     page.Text,
			Metadata: map[string]string{
				"page": strconv.Itoa(page.PageNumber),
			},
		})
	}

	return documents, nil
}
