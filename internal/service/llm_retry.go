package service

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"

	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/tracing"
)

// DefaultLLMAttempts is the number of calls made before a provider is
// reported unavailable
const DefaultLLMAttempts = 3

// generateWithRetry calls fn up to attempts times without delay. A blank
// completion is not retried. Exhaustion is reported as llm_unavailable with
// the last failure as hint.
func generateWithRetry(ctx context.Context, provider string, attempts int, log logger.Logger, fn func(context.Context) (string, error)) (string, error) {
	if attempts < 1 {
		attempts = DefaultLLMAttempts
	}

	attempt := 0
	operation := func() (string, error) {
		attempt++
		text, err := fn(ctx)
		tracing.RecordLLMAttempt(ctx, provider, err)
		if err != nil {
			if analytics.ErrorCode(err) == analytics.CodeLLMEmpty {
				return "", backoff.Permanent(err)
			}
			log.WithField("provider", provider).
				WithField("attempt", attempt).
				WithField("error", err.Error()).
				Warn("LLM request failed")
			return "", err
		}
		return text, nil
	}

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(attempts)),
	)
	if err == nil {
		return text, nil
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("text generation cancelled: %w", ctx.Err())
	}
	if analytics.ErrorCode(err) == analytics.CodeLLMEmpty {
		return "", err
	}

	return "", analytics.NewError(analytics.CodeLLMUnavailable,
		fmt.Sprintf("Failed to call %s", providerTitle(provider)),
		err.Error())
}

func providerTitle(provider string) string {
	switch provider {
	case ProviderOllama:
		return "Ollama"
	case ProviderAnthropic:
		return "Anthropic"
	default:
		return provider
	}
}

func emptyResponseError() error {
	return analytics.NewError(analytics.CodeLLMEmpty, "LLM returned empty response", "")
}
