package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	TitleModel string
}

// Client wraps an OpenAI-compatible completion endpoint. Construct once at
// bootstrap with the resolved configuration; a nil *Client means the
// provider is unconfigured and callers must degrade.
type Client struct {
	api        *openai.Client
	model      string
	titleModel string
}

func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	titleModel := cfg.TitleModel
	if titleModel == "" {
		titleModel = cfg.Model
	}

	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		titleModel: titleModel,
	}
}

// StreamChat opens a streaming completion and invokes onDelta for every
// non-empty token delta, in arrival order. It returns the concatenation of
// all deltas. An onDelta error aborts the stream and is returned verbatim.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage, onDelta func(delta string) error) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Stream:      true,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("open completion stream failed: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return full.String(), fmt.Errorf("receive completion chunk failed: %w", recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

// Complete runs a short non-streaming completion, used for title generation.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.titleModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		switch role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleAssistant, openai.ChatMessageRoleUser:
		default:
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
