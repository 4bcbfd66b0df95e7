package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/tracing"
)

// anthropicMaxTokens bounds a DSL completion
const anthropicMaxTokens = 1024

// AnthropicServiceConfig contains configuration for the Anthropic text generator
type AnthropicServiceConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
	Logger      logger.Logger
}

// AnthropicService generates completions through the Anthropic Messages API
type AnthropicService struct {
	client      anthropic.Client
	model       string
	maxAttempts int
	logger      logger.Logger
}

var _ domain.TextGenerator = (*AnthropicService)(nil)

// NewAnthropicService creates a new Anthropic text generator. Retries are
// handled by the shared retry loop, so the SDK's own retries are disabled.
func NewAnthropicService(cfg AnthropicServiceConfig) *AnthropicService {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = tracing.WrapHTTPClient(&http.Client{Timeout: cfg.Timeout})
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicService{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
}

// Generate returns the trimmed text of the completion for prompt
func (s *AnthropicService) Generate(ctx context.Context, prompt string) (string, error) {
	return generateWithRetry(ctx, ProviderAnthropic, s.maxAttempts, s.logger, func(ctx context.Context) (string, error) {
		return s.generateOnce(ctx, prompt)
	})
}

func (s *AnthropicService) generateOnce(ctx context.Context, prompt string) (string, error) {
	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	s.logger.WithField("model", s.model).
		WithField("input_tokens", message.Usage.InputTokens).
		WithField("output_tokens", message.Usage.OutputTokens).
		Debug("Anthropic completion received")

	result := strings.TrimSpace(text.String())
	if result == "" {
		return "", emptyResponseError()
	}
	return result, nil
}
