package models

import "fmt"

// ConfigError reports invalid configuration (chunk parameters, embedding model
// mismatch). Fatal: it is raised before any I/O is performed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// IngestionError reports a single document that failed to load or parse.
// Ingestion of the remaining documents continues.
type IngestionError struct {
	SourceID string
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for %s: %v", e.SourceID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// RetrievalError reports that retrieval could not produce context (empty
// index, embedding or search failure). The pipeline returns no answer rather
// than synthesizing from empty context.
type RetrievalError struct {
	Reason string
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieval failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("retrieval failed: %s", e.Reason)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// SynthesisError reports a generative-model failure or an empty/refusal
// response. Recoverable: the retrieved context is carried so the caller can
// retry or degrade without repeating retrieval.
type SynthesisError struct {
	Reason  string
	Context []Passage
	Err     error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("answer synthesis failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("answer synthesis failed: %s", e.Reason)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ScoringError reports that the grounding score could not be computed (empty
// context, embedding failure). Never silently defaulted to a score.
type ScoringError struct {
	Reason string
	Err    error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grounding score failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("grounding score failed: %s", e.Reason)
}

func (e *ScoringError) Unwrap() error { return e.Err }
