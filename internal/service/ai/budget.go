package ai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/chat"
)

// Rough per-message framing cost (role and separators) in chat-format prompts.
const messageOverhead = 4

// TokenCounter estimates how many model tokens a piece of text uses.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with the cl100k_base encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTiktokenCounter() (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// TrimHistory drops the oldest turns until system prompt, history and user message fit in budget.
// The system prompt and the user message are always kept. A budget <= 0 disables trimming.
func TrimHistory(counter TokenCounter, budget int, systemPrompt string, history []chat.Message, userMessage string) []chat.Message {
	if budget <= 0 || counter == nil || len(history) == 0 {
		return history
	}

	used := counter.Count(systemPrompt) + counter.Count(userMessage) + 2*messageOverhead
	costs := make([]int, len(history))
	for i, msg := range history {
		costs[i] = counter.Count(msg.Content) + messageOverhead
		used += costs[i]
	}

	start := 0
	for used > budget && start < len(history) {
		used -= costs[start]
		start++
	}
	return history[start:]
}
