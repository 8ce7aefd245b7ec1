package ai

import (
	"context"
	"fmt"
	"strings"

	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
)

var _ adapter.InterpreterAdapter = (*NoopAdapter)(nil)

// NoopAdapter is a dev-mode interpreter that produces canned text without
// any network call.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

func (NoopAdapter) InterpretCard(ctx context.Context, card model.CardItem, rc adapter.ReadingContext) (string, error) {
	return fmt.Sprintf("[dev] %s in position %d: %s", card.Name, card.Position+1, card.Meaning), nil
}

func (NoopAdapter) SummarizeReading(ctx context.Context, cards []model.CardItem, texts []string, rc adapter.ReadingContext) (string, error) {
	names := make([]string, 0, len(cards))
	for _, c := range cards {
		names = append(names, c.Name)
	}
	return fmt.Sprintf("[dev] summary of %s for %q", strings.Join(names, ", "), rc.Question), nil
}
