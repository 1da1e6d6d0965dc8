package dialogue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"assistant/internal/booking"
	"assistant/internal/domain"
	"assistant/internal/generator"
)

// DefaultGenerateTimeout bounds a single answer generation.
const DefaultGenerateTimeout = 20 * time.Second

// Retriever is the read side of a document index.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.SearchResult, error)
	Len() int
}

// Orchestrator decides, per turn, between the booking flow and document
// question answering. It holds no session data.
type Orchestrator struct {
	l       *zap.Logger
	machine *booking.Machine
	intent  *booking.IntentClassifier
	gen     generator.Generator
	timeout time.Duration
}

func New(l *zap.Logger, machine *booking.Machine, intent *booking.IntentClassifier, gen generator.Generator, timeout time.Duration) *Orchestrator {
	if intent == nil {
		intent = booking.NewIntentClassifier(nil)
	}
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &Orchestrator{l: l, machine: machine, intent: intent, gen: gen, timeout: timeout}
}

// HandleTurn mutates state and returns exactly one reply. An active booking
// consumes every message; otherwise booking intent starts a booking, and
// anything else is answered from r, which may be nil.
func (o *Orchestrator) HandleTurn(ctx context.Context, message string, state *booking.ConversationState, r Retriever) string {
	if state.Active {
		return o.machine.Handle(ctx, state, message)
	}
	if o.intent.DetectsBookingIntent(message) {
		return o.machine.Start(state)
	}
	if r == nil || r.Len() == 0 || o.gen == nil {
		return generator.Fallback
	}
	return o.answer(ctx, message, r)
}

func (o *Orchestrator) answer(ctx context.Context, question string, r Retriever) string {
	results, err := r.Retrieve(ctx, question)
	if err != nil {
		o.l.Warn("Retrieval failed", zap.Error(err))
		return generator.Fallback
	}
	if len(results) == 0 {
		return generator.Fallback
	}
	chunks := make([]string, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk.Text
	}

	gctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	answer, err := o.gen.Generate(gctx, question, chunks)
	switch {
	case errors.Is(err, generator.ErrNoAnswer):
		return generator.Fallback
	case err != nil:
		o.l.Warn("Answer generation failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return generator.Fallback
	case generator.IsFallback(answer):
		return generator.Fallback
	}
	return answer
}
