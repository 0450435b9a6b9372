package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend implements just enough of the chat API for orchestrator tests.
type fakeBackend struct {
	mu             sync.Mutex
	configured     bool
	chats          []Chat
	appended       []map[string]any
	lastPrompt     []PromptMessage
	streamTokens   []string
	tokenDelay     time.Duration
	failDelete     bool
	failCompletion bool
	title          string
	renamedTo      string
	searchResults  []SearchResult
}

func (b *fakeBackend) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"chats": b.chats, "configured": b.configured})
		case http.MethodPost:
			var req struct {
				Title        string `json:"title"`
				FirstMessage string `json:"firstMessage"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			chat := Chat{ID: fmt.Sprintf("chat-%d", len(b.chats)+1), Title: req.Title}
			b.chats = append(b.chats, chat)
			json.NewEncoder(w).Encode(map[string]any{"chat": chat})
		}
	})

	mux.HandleFunc("/api/v1/chats/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch {
		case r.Method == http.MethodDelete:
			if b.failDelete {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "delete failed"})
				return
			}
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		case r.Method == http.MethodPatch:
			var req struct {
				Title string `json:"title"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			b.renamedTo = req.Title
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			b.appended = append(b.appended, req)
			json.NewEncoder(w).Encode(map[string]any{"message": req})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
			json.NewEncoder(w).Encode(map[string]any{"messages": []Message{}, "configured": true})
		}
	})

	mux.HandleFunc("/api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		json.NewEncoder(w).Encode(SearchResponse{WebResults: b.searchResults})
	})

	mux.HandleFunc("/api/v1/title", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"title": b.title})
	})

	mux.HandleFunc("/api/v1/chat-completion", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages     []PromptMessage `json:"messages"`
			IsSearchMode bool            `json:"isSearchMode"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		b.lastPrompt = req.Messages
		fail := b.failCompletion
		tokens := b.streamTokens
		delay := b.tokenDelay
		b.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "upstream failed"})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, tok := range tokens {
			frame, _ := json.Marshal(map[string]string{"content": tok})
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
			if delay > 0 {
				time.Sleep(delay)
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	return httptest.NewServer(mux)
}

func TestSendStreamsAndPersistsBothTurns(t *testing.T) {
	backend := &fakeBackend{
		configured:   true,
		streamTokens: []string{"Go ", "is ", "fun"},
		title:        "Go Enthusiasm",
	}
	srv := backend.server(t)
	defer srv.Close()

	conv := New(NewClient(srv.URL, "token"), Options{})
	require.NoError(t, conv.RefreshChats(context.Background()))
	require.NoError(t, conv.Send(context.Background(), "tell me about go"))

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "tell me about go", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Go is fun", msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.appended, 2)
	assert.Equal(t, "user", backend.appended[0]["role"])
	assert.Equal(t, "tell me about go", backend.appended[0]["content"])
	assert.Equal(t, "assistant", backend.appended[1]["role"])
	assert.Equal(t, "Go is fun", backend.appended[1]["content"])
}

func TestSendCreatesChatAndRefinesTitle(t *testing.T) {
	backend := &fakeBackend{
		configured:   true,
		streamTokens: []string{"hi"},
		title:        "Pasta Recipe Guide",
	}
	srv := backend.server(t)
	defer srv.Close()

	conv := New(NewClient(srv.URL, "token"), Options{})
	require.NoError(t, conv.RefreshChats(context.Background()))
	require.NoError(t, conv.Send(context.Background(), "how do I make pasta?"))

	assert.Equal(t, "chat-1", conv.CurrentChatID())

	list := conv.ChatList()
	require.Len(t, list, 1)
	assert.Equal(t, "Pasta Recipe Guide", list[0].Title)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "New Chat", backend.chats[0].Title)
	assert.Equal(t, "Pasta Recipe Guide", backend.renamedTo)
}

func TestSendWithoutDatastoreSkipsPersistence(t *testing.T) {
	backend := &fakeBackend{
		configured:   false,
		streamTokens: []string{"ephemeral"},
	}
	srv := backend.server(t)
	defer srv.Close()

	conv := New(NewClient(srv.URL, "token"), Options{})
	require.NoError(t, conv.RefreshChats(context.Background()))
	require.NoError(t, conv.Send(context.Background(), "hello"))

	assert.Empty(t, conv.CurrentChatID())
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Empty(t, backend.chats)
	assert.Empty(t, backend.appended)
}

func TestSendSearchModeFoldsCitationsIntoPrompt(t *testing.T) {
	backend := &fakeBackend{
		streamTokens: []string{"answer"},
		searchResults: []SearchResult{
			{Title: `Search results for "Latest news about AI"`, URL: "https://example.com/search?q=Latest+news+about+AI", Snippet: "mock snippet"},
			{Title: "Getting Started Guide", URL: "https://docs.example.com/getting-started", Snippet: "setup snippet"},
		},
	}
	srv := backend.server(t)
	defer srv.Close()

	conv := New(NewClient(srv.URL, "token"), Options{})
	conv.SetSearchMode(true)
	require.NoError(t, conv.Send(context.Background(), "Latest news about AI"))

	backend.mu.Lock()
	prompt := backend.lastPrompt
	backend.mu.Unlock()

	require.NotEmpty(t, prompt)
	last := prompt[len(prompt)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, `User query: "Latest news about AI"`)
	assert.Contains(t, last.Content, "Search Results:")
	assert.Contains(t, last.Content, "[1] Search results for")
	assert.Contains(t, last.Content, "[2] Getting Started Guide")
	assert.Contains(t, last.Content, "URL: https://docs.example.com/getting-started")
	assert.Contains(t, last.Content, "Please provide a comprehensive response based on these search results.")

	// Displayed user message keeps the raw query only.
	msgs := conv.Messages()
	assert.Equal(t, "Latest news about AI", msgs[0].Content)
	assert.Len(t, msgs[1].SearchResults, 2)

	latest := conv.LatestSearch()
	require.NotNil(t, latest)
	assert.Len(t, latest.WebResults, 2)
}

func TestStopKeepsPartialContent(t *testing.T) {
	backend := &fakeBackend{
		streamTokens: []string{"partial ", "tokens ", "never ", "arrive"},
		tokenDelay:   80 * time.Millisecond,
	}
	srv := backend.server(t)
	defer srv.Close()

	var sawPartial string
	var mu sync.Mutex
	conv := New(NewClient(srv.URL, "token"), Options{
		OnUpdate: func(msgs []Message) {
			mu.Lock()
			defer mu.Unlock()
			if len(msgs) == 2 {
				sawPartial = msgs[1].Content
			}
		},
	})

	done := make(chan error, 1)
	go func() { done <- conv.Send(context.Background(), "hello") }()

	// Wait for at least one token, then stop.
	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		got := sawPartial
		mu.Unlock()
		if got != "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no tokens arrived before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
	conv.Stop()
	require.NoError(t, <-done)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.False(t, msgs[1].IsStreaming)
	assert.NotEmpty(t, msgs[1].Content)
	assert.NotEqual(t, "Sorry, an error occurred. Please try again.", msgs[1].Content)
	assert.True(t, strings.HasPrefix("partial tokens never arrive", msgs[1].Content) ||
		msgs[1].Content == "Response cancelled.")
	assert.False(t, conv.IsStreaming())
}

func TestSendFailureFinalizesWithErrorString(t *testing.T) {
	backend := &fakeBackend{failCompletion: true}
	srv := backend.server(t)
	defer srv.Close()

	var handled error
	conv := New(NewClient(srv.URL, "token"), Options{
		OnError: func(err error) { handled = err },
	})

	err := conv.Send(context.Background(), "hello")
	require.Error(t, err)
	require.Error(t, handled)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "Sorry, an error occurred. Please try again.", msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
	assert.False(t, conv.IsStreaming())
}

func TestSendWhileStreamingRejected(t *testing.T) {
	backend := &fakeBackend{
		streamTokens: []string{"slow ", "stream"},
		tokenDelay:   100 * time.Millisecond,
	}
	srv := backend.server(t)
	defer srv.Close()

	started := make(chan struct{})
	conv := New(NewClient(srv.URL, "token"), Options{
		OnStreamingStart: func() { close(started) },
	})

	done := make(chan error, 1)
	go func() { done <- conv.Send(context.Background(), "first") }()
	<-started

	err := conv.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInProgress)
	require.NoError(t, <-done)
}

func TestDeleteChatRollsBackOnFailure(t *testing.T) {
	backend := &fakeBackend{
		configured: true,
		failDelete: true,
		chats:      []Chat{{ID: "chat-1", Title: "Keep Me"}},
	}
	srv := backend.server(t)
	defer srv.Close()

	conv := New(NewClient(srv.URL, "token"), Options{})
	require.NoError(t, conv.RefreshChats(context.Background()))
	require.Len(t, conv.ChatList(), 1)

	err := conv.DeleteChat(context.Background(), "chat-1")
	require.Error(t, err)

	list := conv.ChatList()
	require.Len(t, list, 1)
	assert.Equal(t, "Keep Me", list[0].Title)
}

func TestDeleteChatClearsActiveChat(t *testing.T) {
	backend := &fakeBackend{
		configured: true,
		chats:      []Chat{{ID: "chat-1", Title: "Old"}},
	}
	srv := backend.server(t)
	defer srv.Close()

	conv := New(NewClient(srv.URL, "token"), Options{})
	require.NoError(t, conv.RefreshChats(context.Background()))
	require.NoError(t, conv.LoadChat(context.Background(), "chat-1"))
	require.Equal(t, "chat-1", conv.CurrentChatID())

	require.NoError(t, conv.DeleteChat(context.Background(), "chat-1"))
	assert.Empty(t, conv.CurrentChatID())
	assert.Empty(t, conv.ChatList())
	assert.Empty(t, conv.Messages())
}
