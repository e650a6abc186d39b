package interfaces

import (
	"context"

	"github.com/ternarybob/respondo/internal/models"
)

// AskRequest carries one question against one session. Directory is honored
// on the first call only: when set and the index is empty, the directory is
// ingested before retrieval.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Directory string `json:"directory,omitempty"`
}

// AskResponse is the answer record returned to the caller: the synthesized
// answer, the ranked context passages it was grounded on, and the raw
// grounding score. No threshold policy is applied here; the caller decides
// what a low score means.
type AskResponse struct {
	SessionID       string                 `json:"session_id"`
	Answer          string                 `json:"answer"`
	Context         []models.ScoredPassage `json:"context"`
	GroundingScore  float64                `json:"grounding_score"`
	StandaloneQuery string                 `json:"standalone_query"`
}

// QAService is the single entry point of the question-answering pipeline:
// session history fetch, history-aware retrieval, answer synthesis, session
// append, grounding score.
type QAService interface {
	// Ask answers a question within a session. Concurrent calls for the same
	// session are serialized; a turn is appended only after a complete answer
	// is produced.
	Ask(ctx context.Context, req *AskRequest) (*AskResponse, error)

	// Ingest loads, chunks, embeds, and indexes every supported document under
	// dir, swapping the new index in atomically.
	Ingest(ctx context.Context, dir string) (*models.IngestionReport, error)

	// HealthCheck verifies the downstream model capabilities are reachable.
	HealthCheck(ctx context.Context) error
}
