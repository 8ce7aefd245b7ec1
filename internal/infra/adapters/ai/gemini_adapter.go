package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
)

var _ adapter.InterpreterAdapter = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) InterpretCard(ctx context.Context, card model.CardItem, rc adapter.ReadingContext) (string, error) {
	return g.generate(ctx, cardPrompt(card, rc))
}

func (g *GeminiAdapter) SummarizeReading(ctx context.Context, cards []model.CardItem, texts []string, rc adapter.ReadingContext) (string, error) {
	return g.generate(ctx, summaryPrompt(cards, texts, rc))
}

func (g *GeminiAdapter) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.defaultModel, contents, &genai.GenerateContentConfig{
		MaxOutputTokens:   int32(g.maxOut),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
	})
	if err != nil {
		return "", err
	}
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			return t, nil
		}
	}
	return "", errors.New("gemini: empty candidate content")
}
