package grounding

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/common"
	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/models"
)

// Scorer measures how well an answer is supported by the passages it was
// synthesized from. The score is the maximum cosine similarity between the
// answer embedding and any passage embedding, clamped to [0, 1]: an answer
// close to at least one source passage scores high, a hallucinated answer
// sits near 0.
//
// The scorer must share its embedding service with the index so answer and
// passage vectors come from the same model.
type Scorer struct {
	embeddingService interfaces.EmbeddingService
	logger           arbor.ILogger
}

// NewScorer creates a grounding scorer
func NewScorer(embeddingService interfaces.EmbeddingService, logger arbor.ILogger) *Scorer {
	return &Scorer{
		embeddingService: embeddingService,
		logger:           logger,
	}
}

// Score computes the grounding score for an answer against the passages it
// was synthesized from. Scoring an answer against no passages is an error,
// never a default score.
func (s *Scorer) Score(ctx context.Context, answer string, passages []models.Passage) (float64, error) {
	if answer == "" {
		return 0, &models.ScoringError{Reason: "answer cannot be empty"}
	}
	if len(passages) == 0 {
		return 0, &models.ScoringError{Reason: "no context passages to score against"}
	}

	startTime := time.Now()

	answerVector, err := s.embeddingService.EmbedText(ctx, answer)
	if err != nil {
		return 0, &models.ScoringError{Reason: "failed to embed answer", Err: err}
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	passageVectors, err := s.embeddingService.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, &models.ScoringError{Reason: "failed to embed context passages", Err: err}
	}

	best := 0.0
	for _, vector := range passageVectors {
		similarity := common.CosineSimilarity(answerVector, vector)
		if similarity > best {
			best = similarity
		}
	}

	// Cosine similarity of text embeddings is occasionally a hair above 1
	// from floating point error; negatives mean no support at all
	if best > 1 {
		best = 1
	}
	if best < 0 {
		best = 0
	}

	s.logger.Debug().
		Float64("score", best).
		Int("passage_count", len(passages)).
		Dur("duration", time.Since(startTime)).
		Msg("Grounding score computed")

	return best, nil
}
