package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/models"
)

// Retriever answers "which passages matter for this question" with the
// conversation taken into account. Follow-up questions are condensed into
// standalone ones before embedding, so retrieval sees the referents the
// user left implicit.
type Retriever struct {
	llmService       interfaces.LLMService
	embeddingService interfaces.EmbeddingService
	index            interfaces.VectorIndex
	topK             int
	logger           arbor.ILogger
}

// NewRetriever creates a history-aware retriever over the given index.
// topK bounds how many passages each retrieval returns.
func NewRetriever(
	llmService interfaces.LLMService,
	embeddingService interfaces.EmbeddingService,
	index interfaces.VectorIndex,
	topK int,
	logger arbor.ILogger,
) (*Retriever, error) {
	if topK <= 0 {
		return nil, models.NewConfigError("retrieval.top_k", "must be greater than 0")
	}

	return &Retriever{
		llmService:       llmService,
		embeddingService: embeddingService,
		index:            index,
		topK:             topK,
		logger:           logger,
	}, nil
}

// Retrieve returns the passages most relevant to the question given the
// conversation so far.
//
// With empty history the question is used verbatim and no model call is
// made. With history, the question is first condensed into a standalone
// query; if the rewrite fails or comes back empty, the raw question is used
// instead so a flaky rewrite never blocks retrieval.
func (r *Retriever) Retrieve(ctx context.Context, history []models.ConversationTurn, question string) (*models.RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &models.RetrievalError{Reason: "question cannot be empty"}
	}

	standalone := question
	if len(history) > 0 {
		standalone = r.condenseQuestion(ctx, history, question)
	}

	startTime := time.Now()

	vector, err := r.embeddingService.EmbedText(ctx, standalone)
	if err != nil {
		return nil, &models.RetrievalError{Reason: "failed to embed query", Err: err}
	}

	passages, err := r.index.Search(vector, r.topK)
	if err != nil {
		var retrievalErr *models.RetrievalError
		if errors.As(err, &retrievalErr) {
			return nil, err
		}
		return nil, &models.RetrievalError{Reason: "index search failed", Err: err}
	}

	r.logger.Debug().
		Str("query", standalone).
		Int("passage_count", len(passages)).
		Dur("duration", time.Since(startTime)).
		Msg("Retrieval completed")

	return &models.RetrievalResult{
		Query:    standalone,
		Passages: passages,
	}, nil
}

// condenseQuestion rewrites a follow-up question into a standalone query
// using the chat model. Falls back to the raw question on any failure.
func (r *Retriever) condenseQuestion(ctx context.Context, history []models.ConversationTurn, question string) string {
	messages := []interfaces.Message{
		{
			Role:    "user",
			Content: buildCondensePrompt(history, question),
		},
	}

	rewritten, err := r.llmService.Chat(ctx, messages)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("question", question).
			Msg("Question rewrite failed, falling back to raw question")
		return question
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		r.logger.Warn().
			Str("question", question).
			Msg("Question rewrite returned empty text, falling back to raw question")
		return question
	}

	r.logger.Debug().
		Str("question", question).
		Str("standalone", rewritten).
		Msg("Question condensed for retrieval")

	return rewritten
}
