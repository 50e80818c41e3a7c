package ai

import (
	"context"
	"errors"
	"log"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
	"github.com/epir-jewellery/shop-assistant/backend/internal/retry"
)

type retryingProvider struct {
	Provider
	policy retry.Policy
}

// WithRetry repeats failed calls that timed out or got 429/5xx. Other errors are returned at once.
func WithRetry(p Provider, policy retry.Policy) Provider {
	if policy.Attempts <= 1 {
		return p
	}
	return &retryingProvider{Provider: p, policy: policy}
}

func (r *retryingProvider) GenerateReply(ctx context.Context, systemPrompt string, history []chat.Message, userMessage string) (string, error) {
	var reply string
	attempt := 0
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		attempt++
		text, err := r.Provider.GenerateReply(ctx, systemPrompt, history, userMessage)
		if err == nil {
			reply = text
			return nil
		}

		var providerErr *ProviderError
		if !errors.As(err, &providerErr) || !providerErr.Retryable() {
			return retry.Permanent(err)
		}
		log.Printf("[ai] %s attempt %d failed: %v", r.Name(), attempt, err)
		return err
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
