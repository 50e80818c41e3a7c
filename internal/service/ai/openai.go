package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
)

// OpenAIConfig configures the chat-completions backend.
type OpenAIConfig struct {
	BaseURL      string
	APIKey       string
	Organization string
	Model        string
	Temperature  *float64
	MaxTokens    *int
	HTTPClient   *http.Client
}

// OpenAIChatModel implements model.BaseChatModel against /chat/completions.
type OpenAIChatModel struct {
	cfg    OpenAIConfig
	client *http.Client
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)

func NewOpenAIChatModel(cfg OpenAIConfig) *OpenAIChatModel {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIChatModel{cfg: cfg, client: client}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	req := openAIChatRequest{
		Model:       m.cfg.Model,
		Messages:    make([]openAIMessage, 0, len(input)),
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}
	if options.Model != nil && *options.Model != "" {
		req.Model = *options.Model
	}
	if options.Temperature != nil {
		t := float64(*options.Temperature)
		req.Temperature = &t
	}
	if options.MaxTokens != nil {
		req.MaxTokens = options.MaxTokens
	}
	for _, msg := range input {
		req.Messages = append(req.Messages, openAIMessage{Role: string(msg.Role), Content: msg.Content})
	}

	headers := map[string]string{"Authorization": "Bearer " + m.cfg.APIKey}
	if m.cfg.Organization != "" {
		headers["OpenAI-Organization"] = m.cfg.Organization
	}

	var resp openAIChatResponse
	if err := postJSON(ctx, m.client, config.ProviderOpenAI, m.cfg.BaseURL+"/chat/completions", headers, req, &resp); err != nil {
		return nil, err
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream delivers the whole reply as a single chunk.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
