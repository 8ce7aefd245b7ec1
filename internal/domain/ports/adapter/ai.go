package adapter

import (
	"context"

	"arcana-reading-server/internal/domain/model"
)

// ReadingContext carries the querent's framing for prompt construction.
type ReadingContext struct {
	Question   string
	Category   string
	SpreadType string
}

// InterpreterAdapter is the port for the external generation capability.
// Both calls must honor context deadlines; no other contract is assumed.
// The orchestrator races them against its own timers and may discard a
// result that arrives after the race is lost.
type InterpreterAdapter interface {
	// InterpretCard produces the interpretation text for a single card.
	InterpretCard(ctx context.Context, card model.CardItem, rc ReadingContext) (string, error)

	// SummarizeReading combines all card texts into one overall summary.
	// Only called for readings with more than one card.
	SummarizeReading(ctx context.Context, cards []model.CardItem, texts []string, rc ReadingContext) (string, error)
}
