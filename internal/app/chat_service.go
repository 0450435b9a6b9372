package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iRayau/AI-chat/internal/model"
)

var (
	ErrChatNotFound       = errors.New("chat not found")
	ErrMessageEmpty       = errors.New("message content is empty")
	ErrInvalidRole        = errors.New("invalid message role")
	ErrStoreNotConfigured = errors.New("datastore not configured")
)

// ChatStore and MessageStore are the persistence surfaces of the gateway.
// Nil stores mean the datastore is unconfigured: every operation degrades to
// an empty/failure sentinel so conversations stay usable, just ephemeral.
type ChatStore interface {
	Create(chat *model.Chat) error
	ListByUserID(userID string) ([]model.Chat, error)
	GetByIDAndUserID(chatID, userID string) (*model.Chat, error)
	UpdateTitle(chatID, userID, title string) error
	Touch(chatID string, at time.Time) error
	DeleteByIDAndUserID(chatID, userID string) error
}

type MessageStore interface {
	Create(message *model.Message) error
	ListByChatID(chatID string) ([]model.Message, error)
	DeleteByChatID(chatID string) error
}

// TitleJobPublisher enqueues asynchronous title generation for a new chat.
type TitleJobPublisher interface {
	Publish(ctx context.Context, chatID, userID, message string) error
}

// HistoryCache is the optional per-chat message-list cache.
type HistoryCache interface {
	GetHistory(ctx context.Context, chatID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, chatID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, chatID string) error
	MarkDirty(ctx context.Context, chatID string) error
	IsDirty(ctx context.Context, chatID string) (bool, error)
}

type ChatService struct {
	chats        ChatStore
	messages     MessageStore
	titleJobs    TitleJobPublisher
	historyCache HistoryCache
}

type CreateChatInput struct {
	UserID       string
	Title        string
	FirstMessage string
}

type AppendMessageInput struct {
	UserID        string
	ChatID        string
	Role          string
	Content       string
	SearchResults []model.SearchResult
	SearchImages  []model.SearchImage
}

func NewChatService(chats ChatStore, messages MessageStore, titleJobs TitleJobPublisher, historyCache HistoryCache) *ChatService {
	return &ChatService{
		chats:        chats,
		messages:     messages,
		titleJobs:    titleJobs,
		historyCache: historyCache,
	}
}

// Configured reports whether a datastore backs this gateway.
func (s *ChatService) Configured() bool {
	return s.chats != nil && s.messages != nil
}

func (s *ChatService) CreateChat(ctx context.Context, input CreateChatInput) (*model.Chat, error) {
	if !s.Configured() {
		return nil, ErrStoreNotConfigured
	}
	if input.UserID == "" {
		return nil, ErrInvalidInput
	}

	explicitTitle := strings.TrimSpace(input.Title)
	firstMessage := strings.TrimSpace(input.FirstMessage)

	title := explicitTitle
	if title == "" {
		title = TruncateTitle(firstMessage)
	}
	if title == "" {
		title = "New Chat"
	}

	chat := &model.Chat{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.chats.Create(chat); err != nil {
		return nil, err
	}

	// Async refinement only when the caller did not name the chat itself.
	if explicitTitle == "" && firstMessage != "" && s.titleJobs != nil {
		if err := s.titleJobs.Publish(ctx, chat.ID, input.UserID, firstMessage); err != nil {
			log.Printf("enqueue title job for chat %s failed: %v", chat.ID, err)
		}
	}
	return chat, nil
}

func (s *ChatService) ListChats(userID string) ([]model.Chat, error) {
	if !s.Configured() {
		return nil, ErrStoreNotConfigured
	}
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.chats.ListByUserID(userID)
}

func (s *ChatService) GetChat(userID, chatID string) (*model.Chat, error) {
	if !s.Configured() {
		return nil, ErrStoreNotConfigured
	}
	if userID == "" || chatID == "" {
		return nil, ErrInvalidInput
	}
	chat, err := s.chats.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) RenameChat(userID, chatID, title string) error {
	if !s.Configured() {
		return ErrStoreNotConfigured
	}
	title = strings.TrimSpace(title)
	if userID == "" || chatID == "" || title == "" {
		return ErrInvalidInput
	}
	if _, err := s.GetChat(userID, chatID); err != nil {
		return err
	}
	return s.chats.UpdateTitle(chatID, userID, title)
}

// DeleteChat removes the chat's messages and then the chat row. The two
// deletes are sequential and not wrapped in a transaction; a crash between
// them can leave an orphaned empty chat.
func (s *ChatService) DeleteChat(userID, chatID string) error {
	if !s.Configured() {
		return ErrStoreNotConfigured
	}
	if userID == "" || chatID == "" {
		return ErrInvalidInput
	}
	if _, err := s.GetChat(userID, chatID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(context.Background(), chatID)
		_ = s.historyCache.DeleteHistory(context.Background(), chatID)
	}
	if err := s.messages.DeleteByChatID(chatID); err != nil {
		return err
	}
	return s.chats.DeleteByIDAndUserID(chatID, userID)
}

func (s *ChatService) ListMessages(ctx context.Context, userID, chatID string) ([]model.Message, error) {
	if !s.Configured() {
		return nil, ErrStoreNotConfigured
	}
	if _, err := s.GetChat(userID, chatID); err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, chatID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, chatID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messages.ListByChatID(chatID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, chatID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, chatID, messages)
		}
	}
	return messages, nil
}

// AppendMessage writes one immutable message and touches the parent chat so
// updated_at never falls behind the newest message's created_at.
func (s *ChatService) AppendMessage(ctx context.Context, input AppendMessageInput) (*model.Message, error) {
	if !s.Configured() {
		return nil, ErrStoreNotConfigured
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	switch input.Role {
	case model.RoleUser, model.RoleAssistant, model.RoleSystem:
	default:
		return nil, ErrInvalidRole
	}

	if _, err := s.GetChat(input.UserID, input.ChatID); err != nil {
		return nil, err
	}

	message := &model.Message{
		ChatID:    input.ChatID,
		UserID:    input.UserID,
		Role:      input.Role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	message.SetWebResults(input.SearchResults)
	message.SetImageResults(input.SearchImages)

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.ChatID)
		_ = s.historyCache.DeleteHistory(ctx, input.ChatID)
	}

	if err := s.messages.Create(message); err != nil {
		return nil, err
	}
	if err := s.chats.Touch(input.ChatID, message.CreatedAt); err != nil {
		log.Printf("touch chat %s failed: %v", input.ChatID, err)
	}
	return message, nil
}
