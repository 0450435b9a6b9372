package conversation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the chat backend API. All methods attach the bearer
// token and decode the endpoint's JSON shape.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListChats fetches the chat list. configured reports whether the
// backend has a datastore; when false the list is always empty.
func (c *Client) ListChats(ctx context.Context) (chats []Chat, configured bool, err error) {
	var out struct {
		Chats      []Chat `json:"chats"`
		Configured bool   `json:"configured"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats", nil, &out); err != nil {
		return nil, false, err
	}
	return out.Chats, out.Configured, nil
}

func (c *Client) CreateChat(ctx context.Context, title, firstMessage string) (*Chat, error) {
	req := map[string]string{"title": title, "firstMessage": firstMessage}
	var out struct {
		Chat Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/chats", req, &out); err != nil {
		return nil, err
	}
	return &out.Chat, nil
}

func (c *Client) RenameChat(ctx context.Context, chatID, title string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/chats/"+chatID, map[string]string{"title": title}, nil)
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/chats/"+chatID, nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/chats/"+chatID+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// AppendMessage persists one turn of the conversation.
func (c *Client) AppendMessage(ctx context.Context, chatID string, msg Message) error {
	req := map[string]any{
		"role":    string(msg.Role),
		"content": msg.Content,
	}
	if len(msg.SearchResults) > 0 {
		req["searchResults"] = msg.SearchResults
	}
	if len(msg.SearchImages) > 0 {
		req["searchImages"] = msg.SearchImages
	}
	return c.do(ctx, http.MethodPost, "/api/v1/chats/"+chatID+"/messages", req, nil)
}

func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateTitle(ctx context.Context, message string) (string, error) {
	var out struct {
		Title string `json:"title"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/title", map[string]string{"message": message}, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

// StreamCompletion posts the prompt history and reads the SSE reply,
// invoking onToken for each content delta. It returns the accumulated
// text, which holds the partial response when the stream fails or the
// context is cancelled partway through.
func (c *Client) StreamCompletion(ctx context.Context, messages []PromptMessage, searchMode bool, onToken func(string)) (string, error) {
	payload := map[string]any{
		"messages":     messages,
		"isSearchMode": searchMode,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat-completion", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("completion: %s", apiErr.Error)
		}
		return "", fmt.Errorf("completion: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	done := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			done = true
			break
		}
		var frame struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			continue
		}
		if frame.Content != "" {
			full.WriteString(frame.Content)
			if onToken != nil {
				onToken(frame.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), err
	}
	if !done {
		return full.String(), fmt.Errorf("completion: stream ended without terminator")
	}
	return full.String(), nil
}
