package embeddings

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
)

// maxInputRunes caps embedding input length. Inputs beyond the limit are
// rejected rather than silently truncated; the caller owns any truncation
// policy.
const maxInputRunes = 20000

// Service implements EmbeddingService on top of an LLMService provider.
// The same instance is injected into both the index builder and the grounding
// scorer, so indexed vectors and score vectors always come from one model.
type Service struct {
	llmService interfaces.LLMService
	modelName  string
	dimension  int
	logger     arbor.ILogger
}

// NewService creates a new embedding service
func NewService(llmService interfaces.LLMService, modelName string, dimension int, logger arbor.ILogger) *Service {
	return &Service{
		llmService: llmService,
		modelName:  modelName,
		dimension:  dimension,
		logger:     logger,
	}
}

// EmbedText generates a vector embedding for a single text
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxInputRunes {
		return nil, fmt.Errorf("text exceeds maximum embedding input length (%d runes)", maxInputRunes)
	}

	start := time.Now()
	embedding, err := s.llmService.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("embedding_dim", len(embedding)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Generated embedding")

	return embedding, nil
}

// EmbedTexts generates embeddings for multiple texts, order-preserving and
// 1:1 with the input. Fails on the first bad input so the caller never
// receives a partially embedded batch.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		vector, err := s.EmbedText(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = vector
	}

	return vectors, nil
}

// ModelName returns the embedding model identifier
func (s *Service) ModelName() string {
	return s.modelName
}

// Dimension returns the embedding dimension
func (s *Service) Dimension() int {
	return s.dimension
}
