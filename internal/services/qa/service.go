package qa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/common"
	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/models"
	"github.com/ternarybob/respondo/internal/services/answer"
	"github.com/ternarybob/respondo/internal/services/chunker"
	"github.com/ternarybob/respondo/internal/services/grounding"
	"github.com/ternarybob/respondo/internal/services/retrieval"
)

// Service orchestrates the question-answering pipeline: session history,
// history-aware retrieval, grounded synthesis, session append, grounding
// score. It is the only component that touches more than one stage.
type Service struct {
	chatService      interfaces.LLMService
	embedLLM         interfaces.LLMService
	embeddingService interfaces.EmbeddingService
	provider         interfaces.DocumentProvider
	splitter         *chunker.Splitter
	index            interfaces.VectorIndex
	sessions         interfaces.SessionStore
	retriever        *retrieval.Retriever
	synthesizer      *answer.Synthesizer
	scorer           *grounding.Scorer
	persistPath      string
	logger           arbor.ILogger
}

// NewService wires the pipeline stages into a QA service. persistPath, when
// non-empty, is where the index is saved after each successful ingest.
func NewService(
	chatService interfaces.LLMService,
	embedLLM interfaces.LLMService,
	embeddingService interfaces.EmbeddingService,
	provider interfaces.DocumentProvider,
	splitter *chunker.Splitter,
	index interfaces.VectorIndex,
	sessions interfaces.SessionStore,
	retriever *retrieval.Retriever,
	synthesizer *answer.Synthesizer,
	scorer *grounding.Scorer,
	persistPath string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		chatService:      chatService,
		embedLLM:         embedLLM,
		embeddingService: embeddingService,
		provider:         provider,
		splitter:         splitter,
		index:            index,
		sessions:         sessions,
		retriever:        retriever,
		synthesizer:      synthesizer,
		scorer:           scorer,
		persistPath:      persistPath,
		logger:           logger,
	}
}

// Ask answers a question within a session.
//
// Concurrent calls for the same session are serialized; calls for different
// sessions proceed in parallel. The user and assistant turns are appended
// only after synthesis succeeds, so a failed ask leaves the history exactly
// as it was. The grounding score is computed after the turns are appended;
// a scoring failure surfaces as a ScoringError without rolling them back.
func (s *Service) Ask(ctx context.Context, req *interfaces.AskRequest) (*interfaces.AskResponse, error) {
	if req == nil || strings.TrimSpace(req.Question) == "" {
		return nil, &models.RetrievalError{Reason: "question cannot be empty"}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = common.NewSessionID()
	}

	// First-call convenience: ingest the given directory when nothing is
	// indexed yet
	if req.Directory != "" && s.index.Len() == 0 {
		if _, err := s.Ingest(ctx, req.Directory); err != nil {
			return nil, err
		}
	}

	startTime := time.Now()

	var result *models.RetrievalResult
	var answerText string
	err := s.sessions.WithLock(sessionID, func() error {
		history := s.sessions.History(sessionID)

		var err error
		result, err = s.retriever.Retrieve(ctx, history, req.Question)
		if err != nil {
			return err
		}

		answerText, err = s.synthesizer.Synthesize(ctx, history, result.Query, result)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		s.sessions.Append(sessionID, models.ConversationTurn{
			Role:      models.RoleUser,
			Text:      req.Question,
			CreatedAt: now,
		})
		s.sessions.Append(sessionID, models.ConversationTurn{
			Role:      models.RoleAssistant,
			Text:      answerText,
			CreatedAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	score, err := s.scorer.Score(ctx, answerText, contextPassages(result))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("context_count", len(result.Passages)).
		Float64("grounding_score", score).
		Dur("duration", time.Since(startTime)).
		Msg("Question answered")

	return &interfaces.AskResponse{
		SessionID:       sessionID,
		Answer:          answerText,
		Context:         result.Passages,
		GroundingScore:  score,
		StandaloneQuery: result.Query,
	}, nil
}

// Ingest loads, chunks, embeds, and indexes every supported document under
// dir. The new index replaces the old one in a single swap only after every
// passage is embedded; a failed ingest leaves the previous index serving.
// A directory that yields no passages leaves the index unchanged.
func (s *Service) Ingest(ctx context.Context, dir string) (*models.IngestionReport, error) {
	startTime := time.Now()

	docs, failures, err := s.provider.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}

	passages := s.splitter.Split(docs)

	report := &models.IngestionReport{
		Directory:     dir,
		DocumentCount: len(docs),
		PassageCount:  len(passages),
		Failures:      failures,
	}

	if len(passages) == 0 {
		report.Duration = time.Since(startTime)
		s.logger.Warn().
			Str("directory", dir).
			Int("failure_count", len(failures)).
			Msg("Ingest produced no passages, index unchanged")
		return report, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	vectors, err := s.embeddingService.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, &models.IngestionError{SourceID: dir, Err: err}
	}

	entries := make([]models.IndexEntry, len(passages))
	for i, p := range passages {
		entries[i] = models.IndexEntry{Passage: p, Vector: vectors[i]}
	}

	if err := s.index.Build(entries); err != nil {
		return nil, &models.IngestionError{SourceID: dir, Err: err}
	}

	if s.persistPath != "" {
		if err := s.index.Save(s.persistPath); err != nil {
			return nil, fmt.Errorf("index built but persistence failed: %w", err)
		}
	}

	report.Duration = time.Since(startTime)

	s.logger.Info().
		Str("directory", dir).
		Int("document_count", report.DocumentCount).
		Int("passage_count", report.PassageCount).
		Int("failure_count", len(failures)).
		Dur("duration", report.Duration).
		Msg("Ingest completed")

	return report, nil
}

// HealthCheck verifies the chat and embedding providers are reachable.
// When both roles share one provider only one probe runs.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.chatService.HealthCheck(ctx); err != nil {
		return fmt.Errorf("chat provider unhealthy: %w", err)
	}

	if s.embedLLM != s.chatService {
		if err := s.embedLLM.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding provider unhealthy: %w", err)
		}
	}

	return nil
}

// contextPassages extracts the bare passages from a retrieval result.
func contextPassages(result *models.RetrievalResult) []models.Passage {
	passages := make([]models.Passage, len(result.Passages))
	for i, sp := range result.Passages {
		passages[i] = sp.Passage
	}
	return passages
}
