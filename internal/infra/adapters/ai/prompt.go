package ai

import (
	"fmt"
	"strings"

	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
)

// Prompt construction shared by all providers, so switching providers never
// changes the voice of a reading.

const systemPrompt = "You are a thoughtful tarot reader. Interpret cards warmly and concretely, grounded in the querent's question. Answer in 3-5 sentences, no preamble."

func cardPrompt(card model.CardItem, rc adapter.ReadingContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spread: %s. Question (%s): %s\n", rc.SpreadType, rc.Category, rc.Question)
	orientation := "upright"
	if card.Reversed {
		orientation = "reversed"
	}
	fmt.Fprintf(&b, "Interpret card %d: %s (%s). Traditional meaning: %s", card.Position+1, card.Name, orientation, card.Meaning)
	return b.String()
}

func summaryPrompt(cards []model.CardItem, texts []string, rc adapter.ReadingContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spread: %s. Question (%s): %s\n", rc.SpreadType, rc.Category, rc.Question)
	b.WriteString("Weave the card interpretations below into one cohesive reading that answers the question. 4-6 sentences.\n")
	for i, card := range cards {
		text := ""
		if i < len(texts) {
			text = texts[i]
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, card.Name, text)
	}
	return b.String()
}
