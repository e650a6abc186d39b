package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/common"
	"github.com/ternarybob/respondo/internal/handlers"
	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/services/answer"
	"github.com/ternarybob/respondo/internal/services/chunker"
	"github.com/ternarybob/respondo/internal/services/documents"
	"github.com/ternarybob/respondo/internal/services/embeddings"
	"github.com/ternarybob/respondo/internal/services/grounding"
	"github.com/ternarybob/respondo/internal/services/index"
	"github.com/ternarybob/respondo/internal/services/llm"
	"github.com/ternarybob/respondo/internal/services/qa"
	"github.com/ternarybob/respondo/internal/services/retrieval"
	"github.com/ternarybob/respondo/internal/services/sessions"
	badgerstore "github.com/ternarybob/respondo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// LLM services
	ChatLLM          interfaces.LLMService
	EmbedLLM         interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService

	// Pipeline services
	Provider  interfaces.DocumentProvider
	Splitter  *chunker.Splitter
	Index     interfaces.VectorIndex
	Sessions  interfaces.SessionStore
	QAService interfaces.QAService

	// Log streaming
	LogStreamer *handlers.LogStreamer

	// Session eviction
	cronRunner *cron.Cron

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	AskHandler     *handlers.AskHandler
	IngestHandler  *handlers.IngestHandler
	SessionHandler *handlers.SessionHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// WebSocket handler first so log streaming covers initialization
	app.WSHandler = handlers.NewWebSocketHandler(logger)
	app.LogStreamer = handlers.NewLogStreamer(app.WSHandler, &cfg.WebSocket)
	app.LogStreamer.Start()
	logger.SetChannel("websocket", app.LogStreamer.Channel())

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()
	app.startSessionSweep()

	logger.Info().
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Str("index_path", cfg.Storage.Badger.Path).
		Msg("Application initialization complete")

	return app, nil
}

// initServices builds the QA pipeline bottom-up
func (a *App) initServices() error {
	chatLLM, embedLLM, err := llm.NewLLMServices(a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.ChatLLM = chatLLM
	a.EmbedLLM = embedLLM

	a.EmbeddingService = embeddings.NewService(embedLLM, a.Config.Gemini.EmbedModel, a.Config.Gemini.EmbedDimension, a.Logger)

	splitter, err := chunker.NewSplitter(a.Config.Chunking.ChunkSize, a.Config.Chunking.ChunkOverlap, a.Logger)
	if err != nil {
		return err
	}
	a.Splitter = splitter

	idx := index.NewIndex(a.Config.Gemini.EmbedModel, a.Logger)
	a.Index = idx
	if err := a.restoreIndex(idx); err != nil {
		return err
	}

	a.Sessions = sessions.NewStore(a.Logger)
	a.Provider = documents.NewProvider(a.Config.Documents.Extensions, a.Logger)

	retriever, err := retrieval.NewRetriever(chatLLM, a.EmbeddingService, idx, a.Config.Retrieval.TopK, a.Logger)
	if err != nil {
		return err
	}

	synthesizer, err := answer.NewSynthesizer(chatLLM, a.Config.Answer.MaxWords, a.Config.Answer.MaxContextChars, a.Logger)
	if err != nil {
		return err
	}

	scorer := grounding.NewScorer(a.EmbeddingService, a.Logger)

	a.QAService = qa.NewService(
		chatLLM,
		embedLLM,
		a.EmbeddingService,
		a.Provider,
		splitter,
		idx,
		a.Sessions,
		retriever,
		synthesizer,
		scorer,
		a.Config.Storage.Badger.Path,
		a.Logger,
	)

	return nil
}

// restoreIndex loads a persisted index snapshot when one exists. A snapshot
// built under a different embedding model is a configuration error; a
// missing snapshot is simply a fresh start.
func (a *App) restoreIndex(idx *index.Index) error {
	path := a.Config.Storage.Badger.Path

	if a.Config.Storage.Badger.ResetOnStartup {
		if _, err := os.Stat(path); err == nil {
			a.Logger.Debug().Str("path", path).Msg("Discarding persisted index (reset_on_startup=true)")
			if err := os.RemoveAll(path); err != nil {
				a.Logger.Warn().Err(err).Str("path", path).Msg("Failed to discard persisted index")
			}
		}
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil
	}

	if err := idx.Load(path); err != nil {
		if errors.Is(err, badgerstore.ErrNoSnapshot) {
			a.Logger.Debug().Str("path", path).Msg("No persisted index snapshot, starting fresh")
			return nil
		}
		return err
	}

	return nil
}

// initHandlers creates the HTTP handlers over the initialized services
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.AskHandler = handlers.NewAskHandler(a.QAService, a.Logger)
	a.IngestHandler = handlers.NewIngestHandler(a.QAService, a.WSHandler, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.Sessions, a.Logger)
}

// startSessionSweep schedules the idle-session eviction job when both a TTL
// and a schedule are configured. Eviction is off by default.
func (a *App) startSessionSweep() {
	ttl := a.Config.SessionTTL()
	schedule := a.Config.Sessions.SweepSchedule
	if ttl <= 0 || schedule == "" {
		return
	}

	store, ok := a.Sessions.(*sessions.Store)
	if !ok {
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		store.SweepIdle(ttl)
	}); err != nil {
		a.Logger.Warn().Err(err).Str("schedule", schedule).Msg("Invalid session sweep schedule, eviction disabled")
		return
	}
	c.Start()
	a.cronRunner = c

	a.Logger.Info().
		Str("schedule", schedule).
		Dur("ttl", ttl).
		Msg("Session eviction sweep scheduled")
}

// Close shuts down application components in reverse dependency order
func (a *App) Close() {
	if a.cronRunner != nil {
		a.cronRunner.Stop()
	}

	if a.LogStreamer != nil {
		a.LogStreamer.Stop()
	}

	if a.ChatLLM != nil {
		a.ChatLLM.Close()
	}
	if a.EmbedLLM != nil && a.EmbedLLM != a.ChatLLM {
		a.EmbedLLM.Close()
	}

	a.Logger.Info().Msg("Application closed")
}
