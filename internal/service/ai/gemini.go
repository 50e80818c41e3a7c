package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
)

// GeminiConfig configures the generateContent backend.
type GeminiConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   *int
	HTTPClient  *http.Client
}

// GeminiChatModel implements model.BaseChatModel against models/{model}:generateContent.
type GeminiChatModel struct {
	cfg    GeminiConfig
	client *http.Client
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)

func NewGeminiChatModel(cfg GeminiConfig) *GeminiChatModel {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GeminiChatModel{cfg: cfg, client: client}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (m *GeminiChatModel) buildRequest(input []*schema.Message, options *model.Options) geminiRequest {
	req := geminiRequest{Contents: make([]geminiContent, 0, len(input))}

	var system []string
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}

	gen := geminiGenerationConfig{Temperature: m.cfg.Temperature, MaxOutputTokens: m.cfg.MaxTokens}
	if options.Temperature != nil {
		t := float64(*options.Temperature)
		gen.Temperature = &t
	}
	if options.MaxTokens != nil {
		gen.MaxOutputTokens = options.MaxTokens
	}
	if gen.Temperature != nil || gen.MaxOutputTokens != nil {
		req.GenerationConfig = &gen
	}
	return req
}

func (m *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	modelName := m.cfg.Model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", m.cfg.BaseURL, url.PathEscape(modelName))

	var resp geminiResponse
	headers := map[string]string{"x-goog-api-key": m.cfg.APIKey}
	if err := postJSON(ctx, m.client, config.ProviderGemini, endpoint, headers, m.buildRequest(input, options), &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	return schema.AssistantMessage(text.String(), nil), nil
}

// Stream delivers the whole reply as a single chunk.
func (m *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
