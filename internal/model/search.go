package model

// SearchResult is a normalized web search hit, provider-shaped and transient.
type SearchResult struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// SearchImage is a normalized image search hit.
type SearchImage struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Thumbnail string `json:"thumbnail,omitempty"`
}
