package app

import (
	"context"

	"marketplace_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/mock"
)

// MockThreadRepository Mock ThreadRepository
type MockThreadRepository struct {
	mock.Mock
}

// GetOrCreate mock get or create pair thread
func (m *MockThreadRepository) GetOrCreate(ctx context.Context, requesterID, providerID string, subject *string) (*domain.Thread, error) {
	args := m.Called(ctx, requesterID, providerID, subject)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByID mock find thread by id
func (m *MockThreadRepository) FindByID(ctx context.Context, threadID string) (*domain.Thread, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

// SetArchived mock set archived flag
func (m *MockThreadRepository) SetArchived(ctx context.Context, threadID string, archived bool) (*domain.Thread, error) {
	args := m.Called(ctx, threadID, archived)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListForUser mock list thread summaries
func (m *MockThreadRepository) ListForUser(ctx context.Context, userID string, filter domain.ThreadFilter) ([]domain.ThreadSummary, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ThreadSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Append mock append message
func (m *MockMessageRepository) Append(ctx context.Context, threadID, senderID, content string, attachments []domain.AttachmentInput) (*domain.Message, error) {
	args := m.Called(ctx, threadID, senderID, content, attachments)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// List mock list page of messages
func (m *MockMessageRepository) List(ctx context.Context, threadID, cursor string, limit int) ([]domain.Message, bool, string, error) {
	args := m.Called(ctx, threadID, cursor, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Bool(1), args.String(2), args.Error(3)
	}
	return nil, args.Bool(1), args.String(2), args.Error(3)
}

// MarkRead mock bulk mark read
func (m *MockMessageRepository) MarkRead(ctx context.Context, threadID, viewerID string) (int64, error) {
	args := m.Called(ctx, threadID, viewerID)
	return args.Get(0).(int64), args.Error(1)
}

// MarkDelivered mock mark delivered
func (m *MockMessageRepository) MarkDelivered(ctx context.Context, threadID, senderID string) error {
	args := m.Called(ctx, threadID, senderID)
	return args.Error(0)
}

// CountUnread mock count unread
func (m *MockMessageRepository) CountUnread(ctx context.Context, threadID, viewerID string) (int64, error) {
	args := m.Called(ctx, threadID, viewerID)
	return args.Get(0).(int64), args.Error(1)
}

// FindByID mock find message by id
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockStaffRepository Mock StaffRepository
type MockStaffRepository struct {
	mock.Mock
}

// IsMessagingStaff mock staff messaging authorization
func (m *MockStaffRepository) IsMessagingStaff(ctx context.Context, providerID, userID string) (bool, error) {
	args := m.Called(ctx, providerID, userID)
	return args.Bool(0), args.Error(1)
}

// MockTypingRepository Mock TypingRepository
type MockTypingRepository struct {
	mock.Mock
}

// Refresh mock typing TTL refresh
func (m *MockTypingRepository) Refresh(ctx context.Context, ev domain.TypingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// Clear mock typing clear
func (m *MockTypingRepository) Clear(ctx context.Context, threadID, userID string) error {
	args := m.Called(ctx, threadID, userID)
	return args.Error(0)
}

// Active mock active typers
func (m *MockTypingRepository) Active(ctx context.Context, threadID string) ([]domain.TypingEvent, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.TypingEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// PublishNewMessage mock new message fan-out
func (m *MockEventPublisher) PublishNewMessage(ctx context.Context, ev domain.NewMessageEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// PublishTyping mock typing fan-out
func (m *MockEventPublisher) PublishTyping(ctx context.Context, ev domain.TypingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// PublishRead mock read receipt fan-out
func (m *MockEventPublisher) PublishRead(ctx context.Context, ev domain.ReadEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// PublishThreadUpdate mock thread-list update fan-out
func (m *MockEventPublisher) PublishThreadUpdate(ctx context.Context, userID string, ev domain.ThreadUpdateEvent) error {
	args := m.Called(ctx, userID, ev)
	return args.Error(0)
}

// MockNotifyRepository Mock NotifyRepository
type MockNotifyRepository struct {
	mock.Mock
}

// NotifyNewMessage mock offline notification sink
func (m *MockNotifyRepository) NotifyNewMessage(ctx context.Context, recipientID string, ev domain.NewMessageEvent) error {
	args := m.Called(ctx, recipientID, ev)
	return args.Error(0)
}
