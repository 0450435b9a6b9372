// Package conversation drives a chat session against the backend API:
// it creates chats on demand, runs search-augmented completion turns,
// relays streamed tokens to the caller, and persists both sides of each
// turn when the backend has a datastore.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// turnState tracks where an in-flight turn is in its lifecycle. All
// transitions go through advance, so an illegal jump (for example
// persisting while still streaming) fails loudly instead of corrupting
// the message list.
type turnState int

const (
	stateIdle turnState = iota
	stateCreatingChat
	stateSearching
	stateStreaming
	statePersisting
)

func (s turnState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCreatingChat:
		return "creating-chat"
	case stateSearching:
		return "searching"
	case stateStreaming:
		return "streaming"
	case statePersisting:
		return "persisting"
	default:
		return fmt.Sprintf("turnState(%d)", int(s))
	}
}

// legalTransitions lists, per state, the states a turn may move to next.
var legalTransitions = map[turnState][]turnState{
	stateIdle:         {stateCreatingChat, stateSearching, stateStreaming},
	stateCreatingChat: {stateSearching, stateStreaming, stateIdle},
	stateSearching:    {stateStreaming, stateIdle},
	stateStreaming:    {statePersisting, stateIdle},
	statePersisting:   {stateIdle},
}

// ErrTurnInProgress is returned by Send when a previous turn has not
// reached idle yet.
var ErrTurnInProgress = errors.New("conversation: turn already in progress")

const (
	cancelledContent = "Response cancelled."
	errorContent     = "Sorry, an error occurred. Please try again."
)

// Options carries the caller's hooks. All of them are optional.
type Options struct {
	// OnUpdate fires after every visible mutation of the message list,
	// including once per streamed token.
	OnUpdate func(messages []Message)
	// OnStreamingStart and OnStreamingEnd bracket the streaming phase.
	OnStreamingStart func()
	OnStreamingEnd   func()
	// OnError receives non-cancellation failures. The message list has
	// already been finalized with a generic error string by the time it
	// runs.
	OnError func(err error)
}

// Conversation owns one chat session's local state. Methods are safe
// for concurrent use, but only one Send may be in flight at a time.
type Conversation struct {
	client *Client
	cache  *ChatListCache
	opts   Options

	mu             sync.Mutex
	state          turnState
	chatID         string
	persistEnabled bool
	searchMode     bool
	messages       []Message
	latestSearch   *SearchResponse
	cancel         context.CancelFunc
}

func New(client *Client, opts Options) *Conversation {
	return &Conversation{
		client: client,
		cache:  NewChatListCache(),
		opts:   opts,
		state:  stateIdle,
	}
}

// advance moves the turn to next, or errors if the jump is not legal
// from the current state. Callers hold c.mu.
func (c *Conversation) advance(next turnState) error {
	for _, allowed := range legalTransitions[c.state] {
		if allowed == next {
			c.state = next
			return nil
		}
	}
	return fmt.Errorf("conversation: illegal transition %s -> %s", c.state, next)
}

// ChatList returns the cached chat list.
func (c *Conversation) ChatList() []Chat {
	return c.cache.Chats()
}

// Messages returns a copy of the current message list.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LatestSearch returns the most recent search response shown to the
// user, or nil.
func (c *Conversation) LatestSearch() *SearchResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestSearch
}

func (c *Conversation) SetSearchMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchMode = on
}

func (c *Conversation) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateIdle
}

// CurrentChatID reports the active chat, empty when none is selected.
func (c *Conversation) CurrentChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// RefreshChats reloads the chat list from the server and records
// whether persistence is available.
func (c *Conversation) RefreshChats(ctx context.Context) error {
	chats, configured, err := c.client.ListChats(ctx)
	if err != nil {
		return err
	}
	c.cache.Replace(chats)
	c.mu.Lock()
	c.persistEnabled = configured
	c.mu.Unlock()
	return nil
}

// NewChat clears the active chat so the next Send starts a fresh one.
func (c *Conversation) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateIdle {
		return
	}
	c.chatID = ""
	c.messages = nil
	c.latestSearch = nil
}

// LoadChat switches to an existing chat and pulls its history.
func (c *Conversation) LoadChat(ctx context.Context, chatID string) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return ErrTurnInProgress
	}
	c.mu.Unlock()

	msgs, err := c.client.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.chatID = chatID
	c.messages = msgs
	c.latestSearch = nil
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == RoleAssistant && (len(m.SearchResults) > 0 || len(m.SearchImages) > 0) {
			c.latestSearch = &SearchResponse{
				WebResults:   m.SearchResults,
				ImageResults: m.SearchImages,
			}
			break
		}
	}
	c.mu.Unlock()

	c.notifyUpdate()
	return nil
}

// Stop aborts the in-flight completion request, if any. The assistant
// message keeps whatever content has already streamed in.
func (c *Conversation) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Send runs one full conversation turn: create the chat if needed,
// search when search mode is on, stream the completion, then persist
// both turns and title the chat if it is new.
func (c *Conversation) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return ErrTurnInProgress
	}
	chatID := c.chatID
	persist := c.persistEnabled
	searchMode := c.searchMode
	history := make([]Message, len(c.messages))
	copy(history, c.messages)

	// Claim the turn before releasing the lock so a concurrent Send is
	// rejected rather than interleaved.
	first := stateStreaming
	if searchMode {
		first = stateSearching
	}
	if chatID == "" && persist {
		first = stateCreatingChat
	}
	if err := c.advance(first); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	isNewChat := false
	if chatID == "" && persist {
		chat, err := c.client.CreateChat(ctx, "New Chat", content)
		if err != nil {
			c.resetToIdle()
			if c.opts.OnError != nil {
				c.opts.OnError(fmt.Errorf("create chat: %w", err))
			}
			return err
		}
		isNewChat = true
		chatID = chat.ID
		c.cache.Insert(*chat)
		c.mu.Lock()
		c.chatID = chatID
		c.mu.Unlock()
	}

	userMsg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	assistantID := uuid.NewString()
	assistantMsg := Message{
		ID:          assistantID,
		Role:        RoleAssistant,
		Content:     "",
		Timestamp:   time.Now(),
		IsStreaming: true,
	}

	c.mu.Lock()
	c.messages = append(c.messages, userMsg, assistantMsg)
	c.mu.Unlock()
	c.notifyUpdate()

	if c.opts.OnStreamingStart != nil {
		c.opts.OnStreamingStart()
	}

	var searchResults []SearchResult
	var searchImages []SearchImage
	userContent := content

	if searchMode {
		c.mu.Lock()
		if c.state != stateSearching {
			if err := c.advance(stateSearching); err != nil {
				c.mu.Unlock()
				return err
			}
		}
		c.mu.Unlock()

		resp, err := c.client.Search(ctx, content)
		if err != nil {
			c.failTurn(assistantID, err)
			return err
		}
		searchResults = resp.WebResults
		searchImages = resp.ImageResults

		c.mu.Lock()
		c.latestSearch = resp
		c.patchMessageLocked(assistantID, func(m *Message) {
			m.SearchResults = searchResults
			m.SearchImages = searchImages
		})
		c.mu.Unlock()
		c.notifyUpdate()

		if len(searchResults) > 0 {
			userContent = foldSearchContext(content, searchResults)
		}
	}

	prompt := make([]PromptMessage, 0, len(history)+1)
	for _, m := range history {
		if m.Role == RoleSystem {
			continue
		}
		prompt = append(prompt, PromptMessage{Role: string(m.Role), Content: m.Content})
	}
	prompt = append(prompt, PromptMessage{Role: string(RoleUser), Content: userContent})

	c.mu.Lock()
	if c.state != stateStreaming {
		if err := c.advance(stateStreaming); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	full, streamErr := c.client.StreamCompletion(streamCtx, prompt, searchMode, func(token string) {
		c.mu.Lock()
		c.patchMessageLocked(assistantID, func(m *Message) {
			m.Content += token
		})
		c.mu.Unlock()
		c.notifyUpdate()
	})

	if streamErr != nil {
		if errors.Is(streamErr, context.Canceled) || streamCtx.Err() != nil {
			// Cancelled by the user: keep the partial content, or fall
			// back to a fixed note when nothing arrived.
			c.mu.Lock()
			c.patchMessageLocked(assistantID, func(m *Message) {
				if m.Content == "" {
					m.Content = cancelledContent
				}
				m.IsStreaming = false
			})
			c.state = stateIdle
			c.mu.Unlock()
			c.notifyUpdate()
			if c.opts.OnStreamingEnd != nil {
				c.opts.OnStreamingEnd()
			}
			return nil
		}
		c.failTurn(assistantID, streamErr)
		return streamErr
	}

	c.mu.Lock()
	c.patchMessageLocked(assistantID, func(m *Message) {
		m.IsStreaming = false
	})
	if err := c.advance(statePersisting); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.notifyUpdate()

	if c.opts.OnStreamingEnd != nil {
		c.opts.OnStreamingEnd()
	}

	if persist && chatID != "" {
		if err := c.client.AppendMessage(ctx, chatID, Message{Role: RoleUser, Content: content}); err != nil && c.opts.OnError != nil {
			c.opts.OnError(fmt.Errorf("persist user message: %w", err))
		}
		if err := c.client.AppendMessage(ctx, chatID, Message{
			Role:          RoleAssistant,
			Content:       full,
			SearchResults: searchResults,
			SearchImages:  searchImages,
		}); err != nil && c.opts.OnError != nil {
			c.opts.OnError(fmt.Errorf("persist assistant message: %w", err))
		}

		if isNewChat {
			if title, err := c.client.GenerateTitle(ctx, content); err == nil && title != "" {
				c.cache.Rename(chatID, title)
				if err := c.client.RenameChat(ctx, chatID, title); err != nil && c.opts.OnError != nil {
					c.opts.OnError(fmt.Errorf("update chat title: %w", err))
				}
			}
		}
	}

	c.mu.Lock()
	err := c.advance(stateIdle)
	c.mu.Unlock()
	return err
}

// DeleteChat removes a chat optimistically: the cache entry disappears
// immediately and is restored if the server rejects the delete.
func (c *Conversation) DeleteChat(ctx context.Context, chatID string) error {
	snapshot := c.cache.Snapshot()
	c.cache.Remove(chatID)

	if err := c.client.DeleteChat(ctx, chatID); err != nil {
		c.cache.Restore(snapshot)
		return err
	}

	c.mu.Lock()
	if c.chatID == chatID {
		c.chatID = ""
		c.messages = nil
		c.latestSearch = nil
	}
	c.mu.Unlock()
	c.notifyUpdate()
	return nil
}

// failTurn finalizes the assistant message with the generic error
// string, surfaces the error, and returns the turn to idle. The user
// message stays in place.
func (c *Conversation) failTurn(assistantID string, err error) {
	c.mu.Lock()
	c.patchMessageLocked(assistantID, func(m *Message) {
		m.Content = errorContent
		m.IsStreaming = false
	})
	c.state = stateIdle
	c.mu.Unlock()
	c.notifyUpdate()
	if c.opts.OnStreamingEnd != nil {
		c.opts.OnStreamingEnd()
	}
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

func (c *Conversation) resetToIdle() {
	c.mu.Lock()
	c.state = stateIdle
	c.mu.Unlock()
}

// patchMessageLocked mutates the message with the given id in place.
// Callers hold c.mu.
func (c *Conversation) patchMessageLocked(id string, fn func(*Message)) {
	for i := range c.messages {
		if c.messages[i].ID == id {
			fn(&c.messages[i])
			return
		}
	}
}

func (c *Conversation) notifyUpdate() {
	if c.opts.OnUpdate == nil {
		return
	}
	c.opts.OnUpdate(c.Messages())
}

// foldSearchContext builds the prompt actually sent upstream when
// search mode is on. The displayed user message keeps the raw query;
// only the outgoing prompt carries the citation block.
func foldSearchContext(query string, results []SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\nURL: %s\n%s", i+1, r.Title, r.URL, r.Snippet)
	}
	return fmt.Sprintf("User query: \"%s\"\n\nSearch Results:\n%s\n\nPlease provide a comprehensive response based on these search results.", query, b.String())
}
