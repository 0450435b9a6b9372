package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/iRayau/AI-chat/internal/model"
)

// ErrSearchFailed is the single generic failure surfaced for any
// non-success provider response. No partial results are returned.
var ErrSearchFailed = errors.New("search request failed")

const (
	webResultLimit   = 5
	imageResultLimit = 6
)

type Config struct {
	APIKey   string
	BaseURL  string
	Location string
	Country  string
	Language string
}

// Client queries the Serper search API. With no API key configured it
// returns deterministic placeholder results so the rest of the system stays
// usable without credentials.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

type Response struct {
	WebResults   []model.SearchResult `json:"webResults"`
	ImageResults []model.SearchImage  `json:"imageResults"`
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://google.serper.dev"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cfg:        cfg,
	}
}

// Configured reports whether a provider key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Search issues the web and image queries concurrently and returns the
// normalized pair, or placeholder data when no key is configured.
func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	if !c.Configured() {
		return placeholderResults(query), nil
	}

	var (
		wg       sync.WaitGroup
		webRaw   webPayload
		imageRaw imagePayload
		webErr   error
		imageErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		webErr = c.post(ctx, "/search", webResultLimit, query, &webRaw)
	}()
	go func() {
		defer wg.Done()
		imageErr = c.post(ctx, "/images", imageResultLimit, query, &imageRaw)
	}()
	wg.Wait()

	if webErr != nil || imageErr != nil {
		return nil, ErrSearchFailed
	}

	resp := &Response{
		WebResults:   make([]model.SearchResult, 0, len(webRaw.Organic)),
		ImageResults: make([]model.SearchImage, 0, len(imageRaw.Images)),
	}
	for _, item := range webRaw.Organic {
		resp.WebResults = append(resp.WebResults, model.SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}
	for _, item := range imageRaw.Images {
		resp.ImageResults = append(resp.ImageResults, model.SearchImage{
			Title:     item.Title,
			URL:       item.ImageURL,
			Source:    item.Source,
			Thumbnail: item.ThumbnailURL,
		})
	}
	return resp, nil
}

type webPayload struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

type imagePayload struct {
	Images []struct {
		Title        string `json:"title"`
		ImageURL     string `json:"imageUrl"`
		Source       string `json:"source"`
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"images"`
}

func (c *Client) post(ctx context.Context, path string, limit int, query string, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"q":        query,
		"num":      limit,
		"location": c.cfg.Location,
		"gl":       c.cfg.Country,
		"hl":       c.cfg.Language,
	})
	if err != nil {
		return fmt.Errorf("marshal search request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build search request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("search status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response failed: %w", err)
	}
	return nil
}

func placeholderResults(query string) *Response {
	return &Response{
		WebResults: []model.SearchResult{
			{
				Title:   fmt.Sprintf("Search results for %q", query),
				URL:     "https://example.com/search?q=" + url.QueryEscape(query),
				Snippet: fmt.Sprintf("This is a mock search result for your query: %q. Configure SERPER_API_KEY for real search results.", query),
			},
			{
				Title:   "Getting Started Guide",
				URL:     "https://docs.example.com/getting-started",
				Snippet: "Learn how to configure your search API key to enable real web search functionality.",
			},
		},
		ImageResults: []model.SearchImage{
			{
				Title:     "Placeholder Image 1",
				URL:       "https://picsum.photos/seed/1/400/300",
				Source:    "Lorem Picsum",
				Thumbnail: "https://picsum.photos/seed/1/200/150",
			},
			{
				Title:     "Placeholder Image 2",
				URL:       "https://picsum.photos/seed/2/400/300",
				Source:    "Lorem Picsum",
				Thumbnail: "https://picsum.photos/seed/2/200/150",
			},
			{
				Title:     "Placeholder Image 3",
				URL:       "https://picsum.photos/seed/3/400/300",
				Source:    "Lorem Picsum",
				Thumbnail: "https://picsum.photos/seed/3/200/150",
			},
		},
	}
}
