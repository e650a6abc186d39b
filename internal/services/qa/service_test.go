package qa

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/models"
	"github.com/ternarybob/respondo/internal/services/answer"
	"github.com/ternarybob/respondo/internal/services/chunker"
	"github.com/ternarybob/respondo/internal/services/documents"
	"github.com/ternarybob/respondo/internal/services/embeddings"
	"github.com/ternarybob/respondo/internal/services/grounding"
	"github.com/ternarybob/respondo/internal/services/index"
	"github.com/ternarybob/respondo/internal/services/retrieval"
	"github.com/ternarybob/respondo/internal/services/sessions"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// scriptedLLM answers condense prompts with a fixed rewrite and everything
// else with a fixed answer.
type scriptedLLM struct {
	rewrite   string
	answer    string
	answerErr error
	chatCalls int
}

func (s *scriptedLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}

	vector := make([]float32, stubDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%stubDimension]++
	}
	return vector, nil
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	s.chatCalls++
	last := messages[len(messages)-1].Content
	if strings.Contains(last, "Standalone Question:") {
		return s.rewrite, nil
	}
	if s.answerErr != nil {
		return "", s.answerErr
	}
	return s.answer, nil
}

func (s *scriptedLLM) HealthCheck(ctx context.Context) error { return nil }
func (s *scriptedLLM) GetMode() interfaces.LLMMode           { return interfaces.LLMModeCloud }
func (s *scriptedLLM) Close() error                          { return nil }

const stubDimension = 16

type pipeline struct {
	service  *Service
	llm      *scriptedLLM
	store    *sessions.Store
	index    *index.Index
	docsDir  string
	embedder *embeddings.Service
}

// newPipeline assembles the full pipeline around a scripted model and the
// default document fixtures.
func newPipeline(t *testing.T, llm *scriptedLLM, persistPath string) *pipeline {
	t.Helper()
	return buildPipeline(t, llm, persistPath, 2, map[string]string{
		"cities.txt": "paris is the capital of france",
		"geo.txt":    "berlin is the capital of germany",
		"people.csv": "name,role\nalice,admin\nbob,user\n",
	})
}

func buildPipeline(t *testing.T, llm *scriptedLLM, persistPath string, topK int, fixtures map[string]string) *pipeline {
	t.Helper()
	logger := testLogger()

	docsDir, err := os.MkdirTemp("", "qa-docs")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(docsDir) })

	for name, content := range fixtures {
		if err := os.WriteFile(filepath.Join(docsDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	embedder := embeddings.NewService(llm, "stub-embedding", stubDimension, logger)
	splitter, err := chunker.NewSplitter(512, 256, logger)
	if err != nil {
		t.Fatal(err)
	}
	idx := index.NewIndex("stub-embedding", logger)
	store := sessions.NewStore(logger)
	provider := documents.NewProvider([]string{".txt", ".md", ".csv"}, logger)

	retriever, err := retrieval.NewRetriever(llm, embedder, idx, topK, logger)
	if err != nil {
		t.Fatal(err)
	}
	synthesizer, err := answer.NewSynthesizer(llm, 120, 4000, logger)
	if err != nil {
		t.Fatal(err)
	}
	scorer := grounding.NewScorer(embedder, logger)

	service := NewService(llm, llm, embedder, provider, splitter, idx, store, retriever, synthesizer, scorer, persistPath, logger)
	return &pipeline{
		service:  service,
		llm:      llm,
		store:    store,
		index:    idx,
		docsDir:  docsDir,
		embedder: embedder,
	}
}

func TestIngest(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answer: "unused"}, "")

	report, err := p.service.Ingest(context.Background(), p.docsDir)
	if err != nil {
		t.Fatal(err)
	}

	// Two text files plus two CSV rows, each short enough for one passage.
	if report.DocumentCount != 4 {
		t.Fatalf("expected 4 documents, got %d", report.DocumentCount)
	}
	if report.PassageCount != 4 {
		t.Fatalf("expected 4 passages, got %d", report.PassageCount)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if p.index.Len() != 4 {
		t.Fatalf("index should hold 4 entries, got %d", p.index.Len())
	}
}

func TestIngestEmptyDirectoryLeavesIndexUnchanged(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answer: "unused"}, "")

	emptyDir, err := os.MkdirTemp("", "qa-empty")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(emptyDir)

	if _, err := p.service.Ingest(context.Background(), p.docsDir); err != nil {
		t.Fatal(err)
	}

	report, err := p.service.Ingest(context.Background(), emptyDir)
	if err != nil {
		t.Fatal(err)
	}
	if report.PassageCount != 0 {
		t.Fatalf("expected no passages, got %d", report.PassageCount)
	}
	if p.index.Len() != 4 {
		t.Fatalf("empty ingest must leave the index serving, got %d entries", p.index.Len())
	}
}

func TestIngestPersistsIndex(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "qa-persist")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	persistPath := filepath.Join(tmpDir, "index")

	p := newPipeline(t, &scriptedLLM{answer: "unused"}, persistPath)
	if _, err := p.service.Ingest(context.Background(), p.docsDir); err != nil {
		t.Fatal(err)
	}

	restored := index.NewIndex("stub-embedding", testLogger())
	if err := restored.Load(persistPath); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 4 {
		t.Fatalf("expected 4 restored entries, got %d", restored.Len())
	}
}

func TestAskAnswersAndRecordsTurns(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answer: "paris is the capital of france"}, "")
	if _, err := p.service.Ingest(context.Background(), p.docsDir); err != nil {
		t.Fatal(err)
	}

	resp, err := p.service.Ask(context.Background(), &interfaces.AskRequest{
		Question: "what is the capital of france?",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(resp.SessionID, "ses_") {
		t.Fatalf("expected generated session ID, got %q", resp.SessionID)
	}
	if resp.Answer != "paris is the capital of france" {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if resp.StandaloneQuery != "what is the capital of france?" {
		t.Fatalf("first question must be used verbatim, got %q", resp.StandaloneQuery)
	}
	if len(resp.Context) == 0 || len(resp.Context) > 2 {
		t.Fatalf("expected at most top_k context passages, got %d", len(resp.Context))
	}
	if resp.GroundingScore <= 0 || resp.GroundingScore > 1 {
		t.Fatalf("grounding score outside (0,1]: %f", resp.GroundingScore)
	}

	turns := p.store.History(resp.SessionID)
	if len(turns) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(turns))
	}
	if turns[0].Role != models.RoleUser || turns[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected turn roles: %s, %s", turns[0].Role, turns[1].Role)
	}
	if turns[1].Text != resp.Answer {
		t.Fatal("assistant turn does not carry the answer")
	}
}

func TestAskSummariseCSVCorpus(t *testing.T) {
	// Four category-statistics rows, each small enough for one passage, and a
	// top-k wide enough to return the whole corpus as context.
	llm := &scriptedLLM{answer: "category: sports documents: 12 words: 3400"}
	p := buildPipeline(t, llm, "", 4, map[string]string{
		"stats.csv": "category,documents,words\n" +
			"sports,12,3400\n" +
			"finance,8,2100\n" +
			"science,15,5200\n" +
			"travel,5,900\n",
	})

	report, err := p.service.Ingest(context.Background(), p.docsDir)
	if err != nil {
		t.Fatal(err)
	}
	if report.DocumentCount != 4 || report.PassageCount != 4 {
		t.Fatalf("expected 4 documents and 4 passages, got %d and %d", report.DocumentCount, report.PassageCount)
	}

	resp, err := p.service.Ask(context.Background(), &interfaces.AskRequest{
		Question: "summarise the documents",
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.StandaloneQuery != "summarise the documents" {
		t.Fatalf("first question must be used verbatim, got %q", resp.StandaloneQuery)
	}
	if len(resp.Context) != 4 {
		t.Fatalf("expected the whole corpus as context, got %d passages", len(resp.Context))
	}
	for _, category := range []string{"sports", "finance", "science", "travel"} {
		found := false
		for _, sp := range resp.Context {
			if strings.Contains(sp.Passage.Text, category) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("category %q missing from context", category)
		}
	}

	if resp.GroundingScore <= 0.5 {
		t.Fatalf("answer restating a row should score above 0.5, got %f", resp.GroundingScore)
	}
}

func TestAskFollowUpCondensesQuestion(t *testing.T) {
	llm := &scriptedLLM{
		rewrite: "what is the capital of germany",
		answer:  "berlin is the capital of germany",
	}
	p := newPipeline(t, llm, "")
	if _, err := p.service.Ingest(context.Background(), p.docsDir); err != nil {
		t.Fatal(err)
	}

	first, err := p.service.Ask(context.Background(), &interfaces.AskRequest{
		Question: "tell me about germany",
	})
	if err != nil {
		t.Fatal(err)
	}

	followUp, err := p.service.Ask(context.Background(), &interfaces.AskRequest{
		SessionID: first.SessionID,
		Question:  "and its capital?",
	})
	if err != nil {
		t.Fatal(err)
	}

	if followUp.StandaloneQuery != "what is the capital of germany" {
		t.Fatalf("follow-up not condensed, got %q", followUp.StandaloneQuery)
	}
	if len(p.store.History(first.SessionID)) != 4 {
		t.Fatalf("expected 4 turns after two asks, got %d", len(p.store.History(first.SessionID)))
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answer: "unused"}, "")

	_, err := p.service.Ask(context.Background(), &interfaces.AskRequest{Question: "  "})
	var retErr *models.RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if p.store.Count() != 0 {
		t.Fatal("rejected ask must not create a session")
	}
}

func TestAskSynthesisFailureLeavesHistoryUntouched(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answerErr: errors.New("model overloaded")}, "")
	if _, err := p.service.Ingest(context.Background(), p.docsDir); err != nil {
		t.Fatal(err)
	}

	_, err := p.service.Ask(context.Background(), &interfaces.AskRequest{
		SessionID: "ses_test",
		Question:  "what is the capital of france?",
	})

	var synthErr *models.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if len(synthErr.Context) == 0 {
		t.Fatal("error should carry the retrieved passages")
	}
	if len(p.store.History("ses_test")) != 0 {
		t.Fatal("failed ask must not append turns")
	}
}

func TestAskAutoIngestsDirectory(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answer: "paris is the capital of france"}, "")

	resp, err := p.service.Ask(context.Background(), &interfaces.AskRequest{
		Question:  "what is the capital of france?",
		Directory: p.docsDir,
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.index.Len() != 4 {
		t.Fatalf("directory should have been ingested, index has %d entries", p.index.Len())
	}
	if resp.Answer == "" {
		t.Fatal("expected an answer after auto ingest")
	}
}

func TestAskEmptyIndexWithoutDirectory(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answer: "unused"}, "")

	_, err := p.service.Ask(context.Background(), &interfaces.AskRequest{
		Question: "anything indexed?",
	})
	var retErr *models.RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError for empty index, got %v", err)
	}
}

func TestHealthCheckSharedProvider(t *testing.T) {
	p := newPipeline(t, &scriptedLLM{answer: "unused"}, "")

	if err := p.service.HealthCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
}
