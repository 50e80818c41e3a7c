// Package ai talks to the configured LLM vendor.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
)

// FallbackReply is returned when the provider answers with nothing usable.
const FallbackReply = "No response available"

const defaultTimeout = 30 * time.Second

// Provider turns a system prompt, prior turns and the new user message into reply text.
type Provider interface {
	Name() string
	GenerateReply(ctx context.Context, systemPrompt string, history []chat.Message, userMessage string) (string, error)
}

// ProviderError wraps every failure reaching the vendor: transport, auth, non-2xx and timeouts.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *ProviderError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Retryable reports whether repeating the call could help: timeouts, 429 and 5xx.
func (e *ProviderError) Retryable() bool {
	return e.Timeout() || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// asProviderError keeps an existing *ProviderError (with its status) or wraps err.
func asProviderError(name string, err error) *ProviderError {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr
	}
	return &ProviderError{Provider: name, Err: err}
}

// NewProvider builds the variant selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.AIConfig) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewChatProvider(ctx, config.ProviderOpenAI, NewOpenAIChatModel(OpenAIConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Organization: cfg.Organization,
			Model:        cfg.Model,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			HTTPClient:   httpClient,
		}), timeout)

	case config.ProviderGemini:
		return NewChatProvider(ctx, config.ProviderGemini, NewGeminiChatModel(GeminiConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			HTTPClient:  httpClient,
		}), timeout)

	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChatProvider(ctx, config.ProviderArk, chatModel, timeout)

	case config.ProviderOpenAILegacy:
		return NewCompletionProvider(CompletionConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Organization: cfg.Organization,
			Model:        cfg.Model,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			Timeout:      timeout,
			HTTPClient:   httpClient,
		}), nil
	}

	return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
}
