package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/tracing"
)

// Text generation providers selected by LLM_PROVIDER
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// ollamaGenerateRequest is the body of POST /api/generate
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// OllamaServiceConfig contains configuration for the Ollama text generator
type OllamaServiceConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// OllamaService generates completions through the Ollama HTTP API
type OllamaService struct {
	baseURL     string
	model       string
	maxAttempts int
	httpClient  *http.Client
	logger      logger.Logger
}

var _ domain.TextGenerator = (*OllamaService)(nil)

// NewOllamaService creates a new Ollama text generator. Without an explicit
// client, requests go through a traced client bounded by the configured timeout.
func NewOllamaService(cfg OllamaServiceConfig) *OllamaService {
	client := cfg.HTTPClient
	if client == nil {
		client = tracing.WrapHTTPClient(&http.Client{Timeout: cfg.Timeout})
	}

	return &OllamaService{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		httpClient:  client,
		logger:      cfg.Logger,
	}
}

// Generate returns the trimmed completion for prompt
func (s *OllamaService) Generate(ctx context.Context, prompt string) (string, error) {
	return generateWithRetry(ctx, ProviderOllama, s.maxAttempts, s.logger, func(ctx context.Context) (string, error) {
		return s.generateOnce(ctx, prompt)
	})
}

func (s *OllamaService) generateOnce(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if !gjson.ValidBytes(respBody) {
		return "", fmt.Errorf("ollama returned invalid JSON")
	}

	text := strings.TrimSpace(gjson.GetBytes(respBody, "response").String())
	if text == "" {
		return "", emptyResponseError()
	}

	return text, nil
}
