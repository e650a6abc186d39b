// -----------------------------------------------------------------------
// PDF Extractor Service - Extract text content from PDF documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
)

// PageContent holds the extracted text of one PDF page
type PageContent struct {
	PageNumber int
	Text       string
}

// Extractor extracts text from PDF files using pdfcpu
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	// Create a temp directory for PDF processing
	tempDir := filepath.Join(os.TempDir(), "respondo-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractPages extracts text content by page from a PDF file.
// Pages pdfcpu yields no text for come back with empty Text rather than
// failing the whole file.
func (e *Extractor) ExtractPages(ctx context.Context, filePath string) ([]PageContent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	// pdfcpu extracts page content to files rather than returning it
	outDir, err := os.MkdirTemp(e.tempDir, "pages_")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(filePath, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// Read extracted content files, matching both filename formats pdfcpu
	// has used across versions; pdfcpu prefixes each file with the source
	// PDF's base name (e.g. "sample_Content_page_1.txt")
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	files, _ := os.ReadDir(outDir)
	pageTexts := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		name := strings.TrimPrefix(file.Name(), base+"_")
		var pageNum int
		if _, err := fmt.Sscanf(name, "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
			continue
		}
		if _, err := fmt.Sscanf(name, "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	pages := make([]PageContent, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		pages = append(pages, PageContent{
			PageNumber: pageNum,
			Text:       pageTexts[pageNum],
		})
	}

	e.logger.Debug().
		Str("file", filePath).
		Int("page_count", pageCount).
		Msg("Extracted PDF pages")

	return pages, nil
}
