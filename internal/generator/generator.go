package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fallback is the reply used whenever no grounded answer is available.
const Fallback = "I do not know."

// SystemPrompt restricts the model to the retrieved context.
const SystemPrompt = "You are an AI booking assistant.\n" +
	"Answer ONLY using the provided context.\n" +
	"If the answer is not present, say \"I do not know.\""

// DefaultTemperature keeps answers close to the context.
const DefaultTemperature = 0.2

// ErrNoAnswer is returned when a generator produced nothing usable.
var ErrNoAnswer = errors.New("generator returned no answer")

// Generator produces an answer to query grounded in the given context chunks.
type Generator interface {
	Generate(ctx context.Context, query string, chunks []string) (string, error)
}

// UserMessage formats the question and its context for chat-style models.
func UserMessage(query string, chunks []string) string {
	return fmt.Sprintf("Question:\n%s\n\nContext:\n%s", query, strings.Join(chunks, "\n"))
}

// IsFallback reports whether answer is empty or a model's own "I do not know".
func IsFallback(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return true
	}
	a = strings.ReplaceAll(a, "’", "'")
	return strings.HasPrefix(a, "i do not know") || strings.HasPrefix(a, "i don't know")
}
