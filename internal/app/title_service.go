package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/iRayau/AI-chat/internal/ai"
)

const fallbackTitle = "New Chat"

const titleSystemPrompt = `You are a title generator. Generate a very short, concise title (maximum 5 words) for a chat conversation based on the user's first message.
Rules:
- Maximum 5 words
- No quotes or punctuation at the end
- Be descriptive but brief
- Use title case
- Don't include words like "Help", "Question", "Chat" unless very relevant
- Focus on the main topic or intent

Examples:
- "How do I make pasta?" → "Pasta Recipe Guide"
- "What's the weather like in Paris?" → "Paris Weather"
- "Explain quantum computing to me" → "Quantum Computing Basics"
- "Write a poem about love" → "Love Poem"
- "Debug my JavaScript code" → "JavaScript Debugging"`

// TitleService generates short chat titles. It never surfaces a hard error:
// a missing provider, a provider failure, or empty model output all yield
// the fallback title.
type TitleService struct {
	llm *ai.Client
}

func NewTitleService(llm *ai.Client) *TitleService {
	return &TitleService{llm: llm}
}

func (s *TitleService) Generate(ctx context.Context, message string) string {
	message = strings.TrimSpace(message)
	if message == "" || s.llm == nil {
		return fallbackTitle
	}

	out, err := s.llm.Complete(ctx, []ai.ChatMessage{
		{Role: "system", Content: titleSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Generate a short title for this message: %q", message)},
	}, 20)
	if err != nil {
		log.Printf("generate title failed: %v", err)
		return fallbackTitle
	}

	title := strings.Trim(strings.TrimSpace(out), `"`)
	if title == "" {
		return fallbackTitle
	}
	return title
}

// TruncateTitle derives a default chat title from the first user message,
// capped at 50 characters.
func TruncateTitle(firstMessage string) string {
	const maxLength = 50

	cleaned := strings.TrimSpace(strings.ReplaceAll(firstMessage, "\n", " "))
	runes := []rune(cleaned)
	if len(runes) <= maxLength {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxLength])) + "..."
}
