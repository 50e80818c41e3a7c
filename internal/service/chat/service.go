// Package chat runs one customer message through catalog, prompt, session and provider.
package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/ai"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/prompt"
	"github.com/epir-jewellery/shop-assistant/backend/internal/service/session"
)

// CatalogSource yields the products to describe. It never fails; an empty list is valid.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) []catalog.Product
}

// TrendSource supplies a pre-rendered best-seller block, or "" when none is known.
type TrendSource interface {
	TrendSummary(ctx context.Context) string
}

// StaticTrends is a fixed title -> units sold table.
type StaticTrends map[string]int

func (t StaticTrends) TrendSummary(context.Context) string {
	return prompt.FormatTrends(t)
}

// Option customises a Service.
type Option func(*Service)

// WithRole overrides the assistant role line of the system prompt.
func WithRole(role string) Option {
	return func(s *Service) { s.role = role }
}

// WithTrends appends a best-seller block to every system prompt.
func WithTrends(trends TrendSource) Option {
	return func(s *Service) { s.trends = trends }
}

// WithTokenBudget trims the oldest history so each prompt stays under budget tokens.
func WithTokenBudget(counter ai.TokenCounter, budget int) Option {
	return func(s *Service) {
		s.counter = counter
		s.budget = budget
	}
}

// Service orchestrates a single reply.
type Service struct {
	catalog  CatalogSource
	sessions session.Store
	provider ai.Provider
	role     string
	trends   TrendSource
	counter  ai.TokenCounter
	budget   int
}

func NewService(source CatalogSource, sessions session.Store, provider ai.Provider, opts ...Option) *Service {
	s := &Service{
		catalog:  source,
		sessions: sessions,
		provider: provider,
		role:     prompt.DefaultRole,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply answers message within sessionID. The user turn is recorded before the
// provider call and stays even if the call fails; the reply is recorded only on success.
// A failure is tagged with the last stage the request completed.
func (s *Service) Reply(ctx context.Context, sessionID, message string) (string, error) {
	started := time.Now()
	stage := StageReceived
	fail := func(err error) (string, error) {
		return "", &StageError{Stage: stage, Err: err}
	}

	if strings.TrimSpace(message) == "" {
		return fail(&MissingFieldError{Field: FieldMessage})
	}
	if strings.TrimSpace(sessionID) == "" {
		return fail(&MissingFieldError{Field: FieldSessionID})
	}
	if err := session.ValidateID(sessionID); err != nil {
		return fail(err)
	}
	stage = StageValidated

	products := s.catalog.FetchCatalog(ctx)
	stage = StageCatalogFetched

	trends := ""
	if s.trends != nil {
		trends = s.trends.TrendSummary(ctx)
	}
	systemPrompt := prompt.BuildSystemPrompt(products, s.role, trends)

	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return fail(err)
	}
	if s.budget > 0 {
		if trimmed := ai.TrimHistory(s.counter, s.budget, systemPrompt, history, message); len(trimmed) < len(history) {
			log.Printf("[chat] session=%s history trimmed from %d to %d messages", sessionID, len(history), len(trimmed))
			history = trimmed
		}
	}
	stage = StageContextBuilt

	if _, err := s.sessions.AppendUser(ctx, sessionID, message); err != nil {
		return fail(err)
	}

	reply, err := s.provider.GenerateReply(ctx, systemPrompt, history, message)
	if err != nil {
		log.Printf("[chat] session=%s provider=%s failed: %v", sessionID, s.provider.Name(), err)
		return fail(err)
	}
	stage = StageProviderCalled

	if _, err := s.sessions.AppendAssistant(ctx, sessionID, reply); err != nil {
		return fail(err)
	}
	stage = StageSessionUpdated

	log.Printf("[chat] session=%s %s after %s in %s (products=%d, history=%d)", sessionID, StageResponded, stage, time.Since(started).Round(time.Millisecond), len(products), len(history))
	return reply, nil
}

// History returns the stored transcript of sessionID.
func (s *Service) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return s.sessions.History(ctx, sessionID)
}
