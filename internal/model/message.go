package model

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is immutable once written. Search payloads are stored as JSON
// text for portability across Postgres deployments.
type Message struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	ChatID        string    `gorm:"size:36;not null;index" json:"chat_id"`
	UserID        string    `gorm:"size:36;not null;index" json:"user_id"`
	Role          string    `gorm:"size:16;not null;index" json:"role"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	SearchResults string    `gorm:"type:text" json:"-"`
	SearchImages  string    `gorm:"type:text" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// WebResults returns the parsed search results; nil on absence or parse error.
func (m *Message) WebResults() []SearchResult {
	if m.SearchResults == "" {
		return nil
	}
	var v []SearchResult
	_ = json.Unmarshal([]byte(m.SearchResults), &v)
	return v
}

// ImageResults returns the parsed image results; nil on absence or parse error.
func (m *Message) ImageResults() []SearchImage {
	if m.SearchImages == "" {
		return nil
	}
	var v []SearchImage
	_ = json.Unmarshal([]byte(m.SearchImages), &v)
	return v
}

// SetWebResults stores the search results as JSON.
func (m *Message) SetWebResults(results []SearchResult) {
	if len(results) == 0 {
		m.SearchResults = ""
		return
	}
	b, _ := json.Marshal(results)
	m.SearchResults = string(b)
}

// SetImageResults stores the image results as JSON.
func (m *Message) SetImageResults(images []SearchImage) {
	if len(images) == 0 {
		m.SearchImages = ""
		return
	}
	b, _ := json.Marshal(images)
	m.SearchImages = string(b)
}

// MarshalJSON exposes search payloads in their parsed form.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID            string         `json:"id"`
		ChatID        string         `json:"chat_id"`
		UserID        string         `json:"user_id"`
		Role          string         `json:"role"`
		Content       string         `json:"content"`
		SearchResults []SearchResult `json:"search_results,omitempty"`
		SearchImages  []SearchImage  `json:"search_images,omitempty"`
		CreatedAt     time.Time      `json:"created_at"`
	}
	return json.Marshal(alias{
		ID:            m.ID,
		ChatID:        m.ChatID,
		UserID:        m.UserID,
		Role:          m.Role,
		Content:       m.Content,
		SearchResults: m.WebResults(),
		SearchImages:  m.ImageResults(),
		CreatedAt:     m.CreatedAt,
	})
}
