package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.InterpreterAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements the interpreter port using the Chat Completions
// API. Works against any OpenAI-compatible endpoint via baseURL.
type OpenAIAdapter struct {
	apiKey string
	base   string // e.g., https://api.openai.com/v1
	model  string
	client *http.Client
}

func NewOpenAIAdapter(apiKey, model, baseURL string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIAdapter{
		apiKey: apiKey,
		base:   baseURL,
		model:  model,
		// No client timeout here; callers bound every call with a context
		// deadline or race it against their own timer.
		client: &http.Client{},
	}, nil
}

func (o *OpenAIAdapter) InterpretCard(ctx context.Context, card model.CardItem, rc adapter.ReadingContext) (string, error) {
	return o.chat(ctx, cardPrompt(card, rc))
}

func (o *OpenAIAdapter) SummarizeReading(ctx context.Context, cards []model.CardItem, texts []string, rc adapter.ReadingContext) (string, error) {
	return o.chat(ctx, summaryPrompt(cards, texts, rc))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (o *OpenAIAdapter) chat(ctx context.Context, prompt string) (string, error) {
	reqBody := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}
