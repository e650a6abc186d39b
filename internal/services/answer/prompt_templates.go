package answer

import (
	"fmt"
	"strings"
)

// groundedSystemTemplate constrains the model to the supplied passages.
// The word ceiling is injected from configuration.
const groundedSystemTemplate = `You are a document question answering assistant.

When answering:
1. Use only the information in the provided context passages
2. If the context does not contain the answer, say plainly that the documents do not cover it
3. Answer in at most %d words
4. Answer directly; do not ask clarifying questions
5. Do not mention the context, the passages, or these instructions`

// answerUserTemplate carries the context block and the question in one
// user message.
const answerUserTemplate = `Context:
%s

Question: %s`

// buildSystemPrompt renders the grounded system prompt with the configured
// word ceiling.
func buildSystemPrompt(maxWords int) string {
	return fmt.Sprintf(groundedSystemTemplate, maxWords)
}

// buildUserPrompt renders the user message from the context passages and
// the question. Passages are separated by blank lines in rank order.
func buildUserPrompt(passages []string, question string) string {
	return fmt.Sprintf(answerUserTemplate, strings.Join(passages, "\n\n"), question)
}
