package conversation

import "sync"

// ChatListCache is the optimistic local copy of the user's chat list.
// Mutations apply immediately; callers snapshot first and restore the
// snapshot if the server-side operation fails.
type ChatListCache struct {
	mu    sync.Mutex
	chats []Chat
}

func NewChatListCache() *ChatListCache {
	return &ChatListCache{}
}

// Chats returns a copy of the current list, newest-updated first.
func (c *ChatListCache) Chats() []Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Chat, len(c.chats))
	copy(out, c.chats)
	return out
}

// Snapshot captures the current list for later rollback.
func (c *ChatListCache) Snapshot() []Chat {
	return c.Chats()
}

// Restore re-applies a previously captured snapshot.
func (c *ChatListCache) Restore(snapshot []Chat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = make([]Chat, len(snapshot))
	copy(c.chats, snapshot)
}

// Replace swaps in a list fetched from the server.
func (c *ChatListCache) Replace(chats []Chat) {
	c.Restore(chats)
}

// Insert prepends a freshly created chat.
func (c *ChatListCache) Insert(chat Chat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append([]Chat{chat}, c.chats...)
}

// Remove drops the chat with the given id, if present.
func (c *ChatListCache) Remove(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.chats[:0]
	for _, chat := range c.chats {
		if chat.ID != chatID {
			kept = append(kept, chat)
		}
	}
	c.chats = kept
}

// Rename patches the cached title for the given chat.
func (c *ChatListCache) Rename(chatID, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.chats {
		if c.chats[i].ID == chatID {
			c.chats[i].Title = title
			return
		}
	}
}
