package app

import (
	"context"
	"errors"

	"github.com/iRayau/AI-chat/internal/ai"
)

var ErrLLMNotConfigured = errors.New("completion provider not configured")

const searchSystemPrompt = `You are a helpful AI assistant with access to search results. When search results are provided, use them to give accurate, up-to-date information. Always cite your sources when using search results. Format your responses clearly with headings and bullet points when appropriate.`

const defaultSystemPrompt = `You are AI Chat, a helpful and knowledgeable AI assistant. You provide clear, accurate, and thoughtful responses. You can help with a wide range of tasks including coding, writing, analysis, math, and general knowledge. Format your responses clearly and use code blocks when appropriate.`

// CompletionService prefixes the conversation with one of two fixed system
// prompts and relays the provider's token stream to the caller.
type CompletionService struct {
	llm *ai.Client
}

func NewCompletionService(llm *ai.Client) *CompletionService {
	return &CompletionService{llm: llm}
}

// Configured reports whether a completion provider backs this service.
func (s *CompletionService) Configured() bool {
	return s.llm != nil
}

// Stream runs a streaming completion over the given history. onDelta fires
// once per token delta, in arrival order; the returned string is the full
// concatenated output.
func (s *CompletionService) Stream(ctx context.Context, messages []ai.ChatMessage, searchMode bool, onDelta func(delta string) error) (string, error) {
	if s.llm == nil {
		return "", ErrLLMNotConfigured
	}
	if len(messages) == 0 {
		return "", ErrInvalidInput
	}

	system := defaultSystemPrompt
	if searchMode {
		system = searchSystemPrompt
	}

	prompt := make([]ai.ChatMessage, 0, len(messages)+1)
	prompt = append(prompt, ai.ChatMessage{Role: "system", Content: system})
	prompt = append(prompt, messages...)

	return s.llm.StreamChat(ctx, prompt, onDelta)
}
