package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/iRayau/AI-chat/internal/model"
)

type MockChatStore struct {
	mock.Mock
}

func (m *MockChatStore) Create(chat *model.Chat) error {
	args := m.Called(chat)
	if chat.ID == "" {
		chat.ID = "chat-1"
	}
	return args.Error(0)
}

func (m *MockChatStore) ListByUserID(userID string) ([]model.Chat, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Chat), args.Error(1)
}

func (m *MockChatStore) GetByIDAndUserID(chatID, userID string) (*model.Chat, error) {
	args := m.Called(chatID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Chat), args.Error(1)
}

func (m *MockChatStore) UpdateTitle(chatID, userID, title string) error {
	args := m.Called(chatID, userID, title)
	return args.Error(0)
}

func (m *MockChatStore) Touch(chatID string, at time.Time) error {
	args := m.Called(chatID, at)
	return args.Error(0)
}

func (m *MockChatStore) DeleteByIDAndUserID(chatID, userID string) error {
	args := m.Called(chatID, userID)
	return args.Error(0)
}

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Create(message *model.Message) error {
	args := m.Called(message)
	return args.Error(0)
}

func (m *MockMessageStore) ListByChatID(chatID string) ([]model.Message, error) {
	args := m.Called(chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockMessageStore) DeleteByChatID(chatID string) error {
	args := m.Called(chatID)
	return args.Error(0)
}

type MockTitlePublisher struct {
	mock.Mock
}

func (m *MockTitlePublisher) Publish(ctx context.Context, chatID, userID, message string) error {
	args := m.Called(ctx, chatID, userID, message)
	return args.Error(0)
}

type MockHistoryCache struct {
	mock.Mock
}

func (m *MockHistoryCache) GetHistory(ctx context.Context, chatID string) ([]model.Message, bool, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]model.Message), args.Bool(1), args.Error(2)
}

func (m *MockHistoryCache) SetHistory(ctx context.Context, chatID string, messages []model.Message) error {
	args := m.Called(ctx, chatID, messages)
	return args.Error(0)
}

func (m *MockHistoryCache) DeleteHistory(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockHistoryCache) MarkDirty(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockHistoryCache) IsDirty(ctx context.Context, chatID string) (bool, error) {
	args := m.Called(ctx, chatID)
	return args.Bool(0), args.Error(1)
}

func TestCreateChatExplicitTitleWins(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)
	titles := new(MockTitlePublisher)

	chats.On("Create", mock.AnythingOfType("*model.Chat")).Return(nil)

	svc := NewChatService(chats, messages, titles, nil)
	chat, err := svc.CreateChat(context.Background(), CreateChatInput{
		UserID:       "user-1",
		Title:        "My Project Notes",
		FirstMessage: "Hello there",
	})

	assert.NoError(t, err)
	assert.Equal(t, "My Project Notes", chat.Title)
	titles.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateChatTruncatesFirstMessage(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)

	chats.On("Create", mock.AnythingOfType("*model.Chat")).Return(nil)

	long := "This is a very long first message that certainly exceeds the fifty character limit"
	svc := NewChatService(chats, messages, nil, nil)
	chat, err := svc.CreateChat(context.Background(), CreateChatInput{
		UserID:       "user-1",
		FirstMessage: long,
	})

	assert.NoError(t, err)
	assert.True(t, len([]rune(chat.Title)) <= 53)
	assert.Contains(t, chat.Title, "...")
}

func TestCreateChatFallsBackToDefaultTitle(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)

	chats.On("Create", mock.AnythingOfType("*model.Chat")).Return(nil)

	svc := NewChatService(chats, messages, nil, nil)
	chat, err := svc.CreateChat(context.Background(), CreateChatInput{UserID: "user-1"})

	assert.NoError(t, err)
	assert.Equal(t, "New Chat", chat.Title)
}

func TestCreateChatEnqueuesTitleJob(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)
	titles := new(MockTitlePublisher)

	chats.On("Create", mock.AnythingOfType("*model.Chat")).Return(nil)
	titles.On("Publish", mock.Anything, "chat-1", "user-1", "tell me about go").Return(nil)

	svc := NewChatService(chats, messages, titles, nil)
	_, err := svc.CreateChat(context.Background(), CreateChatInput{
		UserID:       "user-1",
		FirstMessage: "tell me about go",
	})

	assert.NoError(t, err)
	titles.AssertExpectations(t)
}

func TestCreateChatUnconfiguredStore(t *testing.T) {
	svc := NewChatService(nil, nil, nil, nil)
	_, err := svc.CreateChat(context.Background(), CreateChatInput{UserID: "user-1"})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
	assert.False(t, svc.Configured())
}

func TestAppendMessageTouchesChat(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)

	chats.On("GetByIDAndUserID", "chat-1", "user-1").Return(&model.Chat{ID: "chat-1", UserID: "user-1"}, nil)

	var created *model.Message
	messages.On("Create", mock.AnythingOfType("*model.Message")).Run(func(args mock.Arguments) {
		created = args.Get(0).(*model.Message)
	}).Return(nil)
	chats.On("Touch", "chat-1", mock.AnythingOfType("time.Time")).Return(nil)

	svc := NewChatService(chats, messages, nil, nil)
	msg, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID:  "user-1",
		ChatID:  "chat-1",
		Role:    model.RoleUser,
		Content: "  hello  ",
	})

	assert.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	chats.AssertCalled(t, "Touch", "chat-1", created.CreatedAt)
}

func TestAppendMessageRejectsInvalidRole(t *testing.T) {
	svc := NewChatService(new(MockChatStore), new(MockMessageStore), nil, nil)
	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID:  "user-1",
		ChatID:  "chat-1",
		Role:    "moderator",
		Content: "hi",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAppendMessageRejectsEmptyContent(t *testing.T) {
	svc := NewChatService(new(MockChatStore), new(MockMessageStore), nil, nil)
	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID:  "user-1",
		ChatID:  "chat-1",
		Role:    model.RoleUser,
		Content: "   ",
	})
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestAppendMessageInvalidatesCache(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)
	cache := new(MockHistoryCache)

	chats.On("GetByIDAndUserID", "chat-1", "user-1").Return(&model.Chat{ID: "chat-1", UserID: "user-1"}, nil)
	cache.On("MarkDirty", mock.Anything, "chat-1").Return(nil)
	cache.On("DeleteHistory", mock.Anything, "chat-1").Return(nil)
	messages.On("Create", mock.AnythingOfType("*model.Message")).Return(nil)
	chats.On("Touch", "chat-1", mock.AnythingOfType("time.Time")).Return(nil)

	svc := NewChatService(chats, messages, nil, cache)
	_, err := svc.AppendMessage(context.Background(), AppendMessageInput{
		UserID:  "user-1",
		ChatID:  "chat-1",
		Role:    model.RoleAssistant,
		Content: "answer",
	})

	assert.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestDeleteChatRemovesMessagesFirst(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)

	chats.On("GetByIDAndUserID", "chat-1", "user-1").Return(&model.Chat{ID: "chat-1", UserID: "user-1"}, nil)

	var order []string
	messages.On("DeleteByChatID", "chat-1").Run(func(mock.Arguments) {
		order = append(order, "messages")
	}).Return(nil)
	chats.On("DeleteByIDAndUserID", "chat-1", "user-1").Run(func(mock.Arguments) {
		order = append(order, "chat")
	}).Return(nil)

	svc := NewChatService(chats, messages, nil, nil)
	err := svc.DeleteChat("user-1", "chat-1")

	assert.NoError(t, err)
	assert.Equal(t, []string{"messages", "chat"}, order)
}

func TestDeleteChatNotOwned(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)

	chats.On("GetByIDAndUserID", "chat-9", "user-1").Return(nil, nil)

	svc := NewChatService(chats, messages, nil, nil)
	err := svc.DeleteChat("user-1", "chat-9")

	assert.ErrorIs(t, err, ErrChatNotFound)
	messages.AssertNotCalled(t, "DeleteByChatID", mock.Anything)
}

func TestListMessagesCacheHit(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)
	cache := new(MockHistoryCache)

	cached := []model.Message{{ID: "m1", ChatID: "chat-1", Role: model.RoleUser, Content: "hi"}}
	chats.On("GetByIDAndUserID", "chat-1", "user-1").Return(&model.Chat{ID: "chat-1", UserID: "user-1"}, nil)
	cache.On("IsDirty", mock.Anything, "chat-1").Return(false, nil)
	cache.On("GetHistory", mock.Anything, "chat-1").Return(cached, true, nil)

	svc := NewChatService(chats, messages, nil, cache)
	got, err := svc.ListMessages(context.Background(), "user-1", "chat-1")

	assert.NoError(t, err)
	assert.Equal(t, cached, got)
	messages.AssertNotCalled(t, "ListByChatID", mock.Anything)
}

func TestListMessagesCacheMissFillsCache(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)
	cache := new(MockHistoryCache)

	stored := []model.Message{{ID: "m1", ChatID: "chat-1", Role: model.RoleUser, Content: "hi"}}
	chats.On("GetByIDAndUserID", "chat-1", "user-1").Return(&model.Chat{ID: "chat-1", UserID: "user-1"}, nil)
	cache.On("IsDirty", mock.Anything, "chat-1").Return(false, nil)
	cache.On("GetHistory", mock.Anything, "chat-1").Return(nil, false, nil)
	messages.On("ListByChatID", "chat-1").Return(stored, nil)
	cache.On("SetHistory", mock.Anything, "chat-1", stored).Return(nil)

	svc := NewChatService(chats, messages, nil, cache)
	got, err := svc.ListMessages(context.Background(), "user-1", "chat-1")

	assert.NoError(t, err)
	assert.Equal(t, stored, got)
	cache.AssertExpectations(t)
}

func TestRenameChatValidatesOwnership(t *testing.T) {
	chats := new(MockChatStore)
	messages := new(MockMessageStore)

	chats.On("GetByIDAndUserID", "chat-1", "user-1").Return(&model.Chat{ID: "chat-1", UserID: "user-1"}, nil)
	chats.On("UpdateTitle", "chat-1", "user-1", "Renamed").Return(nil)

	svc := NewChatService(chats, messages, nil, nil)
	assert.NoError(t, svc.RenameChat("user-1", "chat-1", "Renamed"))
	assert.ErrorIs(t, svc.RenameChat("user-1", "chat-1", "  "), ErrInvalidInput)
}
