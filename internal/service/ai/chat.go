package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
)

// ChatProvider runs a chat-message model behind an eino prompt chain.
type ChatProvider struct {
	name    string
	timeout time.Duration
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewChatProvider compiles the system + history + query chain around chatModel.
func NewChatProvider(ctx context.Context, name string, chatModel model.BaseChatModel, timeout time.Duration) (*ChatProvider, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChatProvider{name: name, timeout: timeout, chain: runnable}, nil
}

func (p *ChatProvider) Name() string { return p.name }

// GenerateReply sends system, history and the user message as role-tagged messages.
func (p *ChatProvider) GenerateReply(ctx context.Context, systemPrompt string, history []chat.Message, userMessage string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	input := map[string]any{
		"system":  systemPrompt,
		"history": toSchemaMessages(history),
		"query":   userMessage,
	}

	started := time.Now()
	response, err := p.chain.Invoke(callCtx, input)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", asProviderError(p.name, err)
	}

	if response == nil || strings.TrimSpace(response.Content) == "" {
		log.Printf("[ai] %s returned an empty message", p.name)
		return FallbackReply, nil
	}

	log.Printf("[ai] %s replied in %s, length=%d", p.name, time.Since(started).Round(time.Millisecond), len(response.Content))
	return response.Content, nil
}

// toSchemaMessages maps stored turns onto eino messages; system turns are never stored, so they are skipped.
func toSchemaMessages(history []chat.Message) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return messages
}
