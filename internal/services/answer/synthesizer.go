package answer

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/interfaces"
	"github.com/ternarybob/respondo/internal/models"
)

// Synthesizer turns retrieved passages and a question into a grounded
// answer. The context block is bounded by a character budget; when the
// ranked passages overflow it, the lowest-ranked are dropped first so the
// most relevant material always survives.
type Synthesizer struct {
	llmService      interfaces.LLMService
	maxWords        int
	maxContextChars int
	logger          arbor.ILogger
}

// NewSynthesizer creates an answer synthesizer
func NewSynthesizer(llmService interfaces.LLMService, maxWords, maxContextChars int, logger arbor.ILogger) (*Synthesizer, error) {
	if maxWords <= 0 {
		return nil, models.NewConfigError("answer.max_words", "must be greater than 0")
	}
	if maxContextChars <= 0 {
		return nil, models.NewConfigError("answer.max_context_chars", "must be greater than 0")
	}

	return &Synthesizer{
		llmService:      llmService,
		maxWords:        maxWords,
		maxContextChars: maxContextChars,
		logger:          logger,
	}, nil
}

// Synthesize generates an answer to the question grounded in the given
// retrieval result. Prior conversation turns are replayed to the model
// ahead of the context block, so follow-up answers can draw on dialogue
// the condensed question does not carry.
//
// Passages are included in rank order until the context budget is spent;
// at least the top passage is always included, truncated if it alone
// overflows the budget. A model failure or an empty response yields a
// SynthesisError carrying the passages that were retrieved, so the caller
// can retry without repeating retrieval.
func (s *Synthesizer) Synthesize(ctx context.Context, history []models.ConversationTurn, question string, result *models.RetrievalResult) (string, error) {
	if result == nil || len(result.Passages) == 0 {
		return "", &models.SynthesisError{Reason: "no context passages to answer from"}
	}

	included, dropped := s.fitContext(result.Texts())
	if dropped > 0 {
		s.logger.Debug().
			Int("included", len(included)).
			Int("dropped", dropped).
			Int("budget_chars", s.maxContextChars).
			Msg("Context trimmed to fit budget")
	}

	messages := make([]interfaces.Message, 0, len(history)+2)
	messages = append(messages, interfaces.Message{Role: "system", Content: buildSystemPrompt(s.maxWords)})
	for _, turn := range history {
		messages = append(messages, interfaces.Message{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, interfaces.Message{Role: "user", Content: buildUserPrompt(included, question)})

	startTime := time.Now()
	response, err := s.llmService.Chat(ctx, messages)
	if err != nil {
		return "", &models.SynthesisError{
			Reason:  "chat completion failed",
			Context: contextPassages(result),
			Err:     err,
		}
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return "", &models.SynthesisError{
			Reason:  "model returned an empty answer",
			Context: contextPassages(result),
		}
	}

	s.logger.Debug().
		Int("answer_length", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("Answer synthesized")

	return response, nil
}

// fitContext selects passage texts in rank order until the character budget
// is spent. The budget and all costs are measured in runes. Returns the
// included texts and the number dropped. The top passage is always included,
// hard-truncated when it alone exceeds the budget.
func (s *Synthesizer) fitContext(texts []string) (included []string, dropped int) {
	used := 0
	for i, text := range texts {
		runes := []rune(text)
		cost := len(runes)
		if i > 0 {
			cost += 2 // blank line separator
		}

		if used+cost > s.maxContextChars {
			if i == 0 {
				if len(runes) > s.maxContextChars {
					runes = runes[:s.maxContextChars]
				}
				included = append(included, string(runes))
				used = len(runes)
				continue
			}
			dropped = len(texts) - i
			break
		}

		included = append(included, text)
		used += cost
	}
	return included, dropped
}

// contextPassages extracts the bare passages from a retrieval result for
// error reporting.
func contextPassages(result *models.RetrievalResult) []models.Passage {
	passages := make([]models.Passage, len(result.Passages))
	for i, sp := range result.Passages {
		passages[i] = sp.Passage
	}
	return passages
}
