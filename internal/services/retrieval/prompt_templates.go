package retrieval

import (
	"fmt"
	"strings"

	"github.com/ternarybob/respondo/internal/models"
)

// condenseQuestionTemplate rewrites a follow-up question into a standalone
// one using the conversation so far. The rewritten question must carry every
// referent the follow-up leans on (pronouns, "that", "the second one").
const condenseQuestionTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question that preserves its original meaning and intent. Resolve any pronouns or references using the conversation. Return only the standalone question, with no preamble.

Chat History:
%s
Follow Up Question: %s
Standalone Question:`

// formatHistory renders conversation turns for the condense prompt, one
// line per turn in chronological order.
func formatHistory(history []models.ConversationTurn) string {
	var b strings.Builder
	for _, turn := range history {
		switch turn.Role {
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("Human: ")
		}
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// buildCondensePrompt fills the condense template with the rendered history
// and the follow-up question.
func buildCondensePrompt(history []models.ConversationTurn, question string) string {
	return fmt.Sprintf(condenseQuestionTemplate, formatHistory(history), question)
}
