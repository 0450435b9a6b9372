package conversation

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a client-side conversation entry. Streaming entries are
// transient: they exist locally before anything is persisted.
type Message struct {
	ID            string         `json:"id"`
	Role          Role           `json:"role"`
	Content       string         `json:"content"`
	Timestamp     time.Time      `json:"created_at"`
	IsStreaming   bool           `json:"-"`
	SearchResults []SearchResult `json:"search_results,omitempty"`
	SearchImages  []SearchImage  `json:"search_images,omitempty"`
}

type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SearchResult struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type SearchImage struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type SearchResponse struct {
	WebResults   []SearchResult `json:"webResults"`
	ImageResults []SearchImage  `json:"imageResults"`
}

// PromptMessage is the wire shape sent to the completion endpoint.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
