package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/jiraindex/internal/config"
)

const (
	openAIChatDefaultBaseURL = "https://api.openai.com/v1"
	openAIChatHTTPTimeout    = 30 * time.Second
	openAIChatMaxTokens      = 500
)

// openAIProvider is a plain net/http client against the OpenAI (or
// OpenAI-compatible) chat completions endpoint, following the same
// request-shape discipline as the embedding provider's HTTP client rather
// than pulling in a dedicated SDK.
type openAIProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAIProvider constructs the OpenAI-compatible chat provider used by
// the Self-Query Parser.
func NewOpenAIProvider(cfg *config.Config) (Provider, error) {
	if cfg.EmbeddingAPIKey == "" {
		return nil, fmt.Errorf("chat provider requires an API key (reuses JIRAINDEX_EMBEDDING_API_KEY)")
	}
	baseURL := cfg.EmbeddingBaseURL
	if baseURL == "" {
		baseURL = openAIChatDefaultBaseURL
	}
	model := cfg.SelfQueryModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openAIProvider{
		client:  &http.Client{Timeout: openAIChatHTTPTimeout},
		baseURL: baseURL,
		apiKey:  cfg.EmbeddingAPIKey,
		model:   model,
	}, nil
}

type chatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []chatMessageDTO `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type chatMessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessageDTO `json:"message"`
	} `json:"choices"`
}

func (p *openAIProvider) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	dtoMessages := make([]chatMessageDTO, len(messages))
	for i, m := range messages {
		dtoMessages[i] = chatMessageDTO{Role: m.Role, Content: m.Content}
	}

	reqBody := chatCompletionRequest{
		Model:       p.model,
		Messages:    dtoMessages,
		Temperature: temperature,
		MaxTokens:   openAIChatMaxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request to %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat API error (model=%s, status=%d): %s", p.model, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices (model=%s)", p.model)
	}
	return out.Choices[0].Message.Content, nil
}
