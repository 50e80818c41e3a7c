package ai

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
)

const (
	userLabel      = "User"
	assistantLabel = "Chatbot"
)

// CompletionConfig configures the legacy single-prompt completion backend.
type CompletionConfig struct {
	BaseURL      string
	APIKey       string
	Organization string
	Model        string
	Temperature  *float64
	MaxTokens    *int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// CompletionProvider flattens the conversation into one text prompt for /completions.
type CompletionProvider struct {
	cfg    CompletionConfig
	client *http.Client
}

func NewCompletionProvider(cfg CompletionConfig) *CompletionProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CompletionProvider{cfg: cfg, client: client}
}

func (p *CompletionProvider) Name() string { return config.ProviderOpenAILegacy }

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// BuildCompletionPrompt renders the context block, every prior turn and the new
// message as labelled lines, ending with the assistant label as the cue.
func BuildCompletionPrompt(systemPrompt string, history []chat.Message, userMessage string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n")
	for _, msg := range history {
		label := userLabel
		if msg.Role == chat.RoleAssistant {
			label = assistantLabel
		}
		fmt.Fprintf(&b, "%s: %s\n", label, msg.Content)
	}
	fmt.Fprintf(&b, "%s: %s\n%s:", userLabel, userMessage, assistantLabel)
	return b.String()
}

func (p *CompletionProvider) GenerateReply(ctx context.Context, systemPrompt string, history []chat.Message, userMessage string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req := completionRequest{
		Model:       p.cfg.Model,
		Prompt:      BuildCompletionPrompt(systemPrompt, history, userMessage),
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
	if p.cfg.Organization != "" {
		headers["OpenAI-Organization"] = p.cfg.Organization
	}

	var resp completionResponse
	if err := postJSON(callCtx, p.client, p.Name(), p.cfg.BaseURL+"/completions", headers, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		log.Printf("[ai] %s returned no choices", p.Name())
		return FallbackReply, nil
	}
	text := strings.TrimSpace(resp.Choices[0].Text)
	if text == "" {
		return FallbackReply, nil
	}
	return text, nil
}
