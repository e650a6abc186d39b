package retrieval

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/models"
	"github.com/ternarybob/respondo/internal/services/index"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// stubLLM returns a canned chat response and counts invocations.
type stubLLM struct {
	response  string
	err       error
	chatCalls int
}

func (s *stubLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embed not supported")
}

func (s *stubLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	s.chatCalls++
	return s.response, s.err
}

func (s *stubLLM) HealthCheck(ctx context.Context) error { return nil }
func (s *stubLLM) GetMode() interfaces.LLMMode           { return interfaces.LLMModeCloud }
func (s *stubLLM) Close() error                          { return nil }

// stubEmbedder maps words onto fixed vector positions so texts sharing
// vocabulary land close together. Deterministic, no network.
type stubEmbedder struct {
	err error
}

const stubDimension = 16

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
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

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := s.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (s *stubEmbedder) ModelName() string { return "stub-embedding" }
func (s *stubEmbedder) Dimension() int    { return stubDimension }

// buildIndex embeds the given texts with the stub embedder and indexes them.
func buildIndex(t *testing.T, embedder *stubEmbedder, texts []string) *index.Index {
	t.Helper()

	idx := index.NewIndex(embedder.ModelName(), testLogger())
	entries := make([]models.IndexEntry, len(texts))
	for i, text := range texts {
		vector, err := embedder.EmbedText(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		entries[i] = models.IndexEntry{
			Passage: models.Passage{ID: fmt.Sprintf("psg_%d", i), SourceID: "doc.txt", Text: text},
			Vector:  vector,
		}
	}
	if err := idx.Build(entries); err != nil {
		t.Fatal(err)
	}
	return idx
}

var corpus = []string{
	"paris is the capital of france",
	"berlin is the capital of germany",
	"the atlantic ocean separates europe from america",
}

func TestNewRetrieverInvalidTopK(t *testing.T) {
	embedder := &stubEmbedder{}
	idx := buildIndex(t, embedder, corpus)

	_, err := NewRetriever(&stubLLM{}, embedder, idx, 0, testLogger())
	if err == nil {
		t.Fatal("expected error for top_k=0")
	}
	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T", err)
	}
	if cfgErr.Field != "retrieval.top_k" {
		t.Fatalf("expected field retrieval.top_k, got %q", cfgErr.Field)
	}
}

func TestRetrieveEmptyQuestion(t *testing.T) {
	embedder := &stubEmbedder{}
	retriever, err := NewRetriever(&stubLLM{}, embedder, buildIndex(t, embedder, corpus), 2, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = retriever.Retrieve(context.Background(), nil, "   ")
	var retErr *models.RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
}

func TestRetrieveNoHistorySkipsRewrite(t *testing.T) {
	embedder := &stubEmbedder{}
	llm := &stubLLM{response: "should never be used"}
	retriever, err := NewRetriever(llm, embedder, buildIndex(t, embedder, corpus), 2, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	result, err := retriever.Retrieve(context.Background(), nil, "capital of france")
	if err != nil {
		t.Fatal(err)
	}

	if llm.chatCalls != 0 {
		t.Fatalf("rewrite model called %d times with empty history", llm.chatCalls)
	}
	if result.Query != "capital of france" {
		t.Fatalf("expected verbatim question, got %q", result.Query)
	}
	if len(result.Passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(result.Passages))
	}
	if !strings.Contains(result.Passages[0].Passage.Text, "france") {
		t.Fatalf("expected the france passage first, got %q", result.Passages[0].Passage.Text)
	}
}

func TestRetrieveCondensesWithHistory(t *testing.T) {
	embedder := &stubEmbedder{}
	llm := &stubLLM{response: "what is the capital of germany"}
	retriever, err := NewRetriever(llm, embedder, buildIndex(t, embedder, corpus), 1, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	history := []models.ConversationTurn{
		{Role: models.RoleUser, Text: "tell me about germany"},
		{Role: models.RoleAssistant, Text: "germany is a country in europe"},
	}

	result, err := retriever.Retrieve(context.Background(), history, "and its capital?")
	if err != nil {
		t.Fatal(err)
	}

	if llm.chatCalls != 1 {
		t.Fatalf("expected 1 rewrite call, got %d", llm.chatCalls)
	}
	if result.Query != "what is the capital of germany" {
		t.Fatalf("expected standalone query, got %q", result.Query)
	}
	if !strings.Contains(result.Passages[0].Passage.Text, "germany") {
		t.Fatalf("expected the germany passage, got %q", result.Passages[0].Passage.Text)
	}
}

func TestRetrieveFallbackOnRewriteError(t *testing.T) {
	embedder := &stubEmbedder{}
	llm := &stubLLM{err: errors.New("model unavailable")}
	retriever, err := NewRetriever(llm, embedder, buildIndex(t, embedder, corpus), 1, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	history := []models.ConversationTurn{{Role: models.RoleUser, Text: "earlier question"}}
	result, err := retriever.Retrieve(context.Background(), history, "capital of france")
	if err != nil {
		t.Fatalf("rewrite failure must not fail retrieval: %v", err)
	}
	if result.Query != "capital of france" {
		t.Fatalf("expected raw question fallback, got %q", result.Query)
	}
}

func TestRetrieveFallbackOnEmptyRewrite(t *testing.T) {
	embedder := &stubEmbedder{}
	llm := &stubLLM{response: "  \n "}
	retriever, err := NewRetriever(llm, embedder, buildIndex(t, embedder, corpus), 1, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	history := []models.ConversationTurn{{Role: models.RoleUser, Text: "earlier question"}}
	result, err := retriever.Retrieve(context.Background(), history, "capital of france")
	if err != nil {
		t.Fatal(err)
	}
	if result.Query != "capital of france" {
		t.Fatalf("expected raw question fallback, got %q", result.Query)
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	goodEmbedder := &stubEmbedder{}
	idx := buildIndex(t, goodEmbedder, corpus)

	retriever, err := NewRetriever(&stubLLM{}, &stubEmbedder{err: errors.New("quota exhausted")}, idx, 1, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = retriever.Retrieve(context.Background(), nil, "capital of france")
	var retErr *models.RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	embedder := &stubEmbedder{}
	idx := index.NewIndex(embedder.ModelName(), testLogger())

	retriever, err := NewRetriever(&stubLLM{}, embedder, idx, 1, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = retriever.Retrieve(context.Background(), nil, "capital of france")
	var retErr *models.RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
}
