// Package groq implements the forecasting capability against the Groq
// OpenAI-compatible chat completions API.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/afrifutures/afrimarkets/internal/domain"
	"github.com/afrifutures/afrimarkets/internal/forecast"
)

const systemPrompt = "You are an expert agricultural commodities analyst producing structured forecasts with confidence scoring."

// horizonGuidance steers the model toward factors relevant at each window.
var horizonGuidance = map[domain.Horizon]string{
	domain.Horizon1D:  "Focus on overnight market moves, auction results, and currency shifts.",
	domain.Horizon3D:  "Focus on immediate supply news, weather events, and shipping disruptions.",
	domain.Horizon7D:  "Focus on weekly supply/demand balance, export volumes, and regional auction trends.",
	domain.Horizon14D: "Focus on harvest progress, seasonal demand patterns, and inventory levels.",
}

// Config holds client parameters.
type Config struct {
	BaseURL   string
	ApiKey    string
	Model     string
	MaxTokens int
}

// Client calls the Groq chat completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a new Groq client.
func New(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Client{
		cfg: cfg,
		// Per-call deadlines come from the caller's context; this is a
		// hard ceiling only.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Model identifies the forecasting model for prediction attribution.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Forecast asks the model for a point estimate and confidence as strict JSON.
func (c *Client) Forecast(ctx context.Context, history []domain.PriceQuote, horizon domain.Horizon) (forecast.Result, error) {
	if c.cfg.ApiKey == "" {
		return forecast.Result{}, fmt.Errorf("groq: %w: no api key", domain.ErrForecastFailed)
	}

	current := history[len(history)-1]
	prompt := fmt.Sprintf(`Forecast the %s price of %s (%s region) %s from now.
Current price: %.2f %s (source: %s).
%s
%s
Respond with a JSON object: {"predictedPrice": <number>, "confidence": <number between 0 and 1>}`,
		current.Currency, current.Symbol, current.Region, horizon,
		current.Price, current.Currency, current.Source,
		historyLines(history),
		horizonGuidance[horizon],
	)

	content, err := c.complete(ctx, prompt, 0.3, true)
	if err != nil {
		return forecast.Result{}, err
	}

	var parsed struct {
		PredictedPrice float64 `json:"predictedPrice"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return forecast.Result{}, fmt.Errorf("groq: decode forecast: %w", err)
	}
	if parsed.PredictedPrice <= 0 {
		return forecast.Result{}, fmt.Errorf("groq: non-positive predicted price %.4f", parsed.PredictedPrice)
	}

	return forecast.Result{
		PredictedPrice: parsed.PredictedPrice,
		Confidence:     parsed.Confidence,
	}, nil
}

// Narrative asks the model for a short free-text rationale for an already
// computed forecast.
func (c *Client) Narrative(ctx context.Context, history []domain.PriceQuote, horizon domain.Horizon, result forecast.Result) (string, error) {
	if c.cfg.ApiKey == "" {
		return "", fmt.Errorf("groq: %w: no api key", domain.ErrForecastFailed)
	}

	current := history[len(history)-1]
	prompt := fmt.Sprintf(`The %s forecast for %s (%s region) is %.2f %s with %.0f%% confidence; the current price is %.2f %s.
Write a concise 2-3 sentence market narrative explaining the main drivers behind this forecast. Plain text, no preamble.`,
		horizon, current.Symbol, current.Region,
		result.PredictedPrice, current.Currency, result.Confidence*100,
		current.Price, current.Currency,
	)

	content, err := c.complete(ctx, prompt, 0.5, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func historyLines(history []domain.PriceQuote) string {
	if len(history) < 2 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent observations (oldest first):\n")
	for _, q := range history {
		fmt.Fprintf(&b, "- %s: %.2f %s\n", q.ObservedAt.Format("2006-01-02 15:04"), q.Price, q.Currency)
	}
	return b.String()
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete performs one chat completion and returns the message content.
func (c *Client) complete(ctx context.Context, prompt string, temperature float64, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model:       c.cfg.Model,
		Temperature: temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	if jsonMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("groq: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("groq: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("groq: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("groq: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("groq: completion returned empty content")
	}

	return parsed.Choices[0].Message.Content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ forecast.Forecaster = (*Client)(nil)
