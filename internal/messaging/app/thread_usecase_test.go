package app

import (
	"context"
	"testing"

	"marketplace_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestThreadUseCase_ResolveForViewer(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())

	mockThreadRepo := new(MockThreadRepository)
	mockStaffRepo := new(MockStaffRepository)
	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)

	uc := NewThreadUseCase(mockThreadRepo, new(MockMessageRepository), mockStaffRepo, new(MockTypingRepository), new(MockEventPublisher))

	got, partyID, err := uc.ResolveForViewer(ctx, thread.ID, thread.RequesterID)
	assert.NoError(t, err)
	assert.Equal(t, thread.ID, got.ID)
	assert.Equal(t, thread.RequesterID, partyID)

	got, partyID, err = uc.ResolveForViewer(ctx, thread.ID, thread.ProviderID)
	assert.NoError(t, err)
	assert.Equal(t, thread.ID, got.ID)
	assert.Equal(t, thread.ProviderID, partyID)
}

// authorized staff resolve to the provider party id
func TestThreadUseCase_ResolveForViewer_Staff(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())
	staffID := uuid.NewString()

	mockThreadRepo := new(MockThreadRepository)
	mockStaffRepo := new(MockStaffRepository)
	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockStaffRepo.On("IsMessagingStaff", ctx, thread.ProviderID, staffID).Return(true, nil)

	uc := NewThreadUseCase(mockThreadRepo, new(MockMessageRepository), mockStaffRepo, new(MockTypingRepository), new(MockEventPublisher))

	_, partyID, err := uc.ResolveForViewer(ctx, thread.ID, staffID)
	assert.NoError(t, err)
	assert.Equal(t, thread.ProviderID, partyID)
}

// outsiders get not-found, never a distinct authorization error
func TestThreadUseCase_ResolveForViewer_Outsider(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())
	outsiderID := uuid.NewString()

	mockThreadRepo := new(MockThreadRepository)
	mockStaffRepo := new(MockStaffRepository)
	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockStaffRepo.On("IsMessagingStaff", ctx, thread.ProviderID, outsiderID).Return(false, nil)

	uc := NewThreadUseCase(mockThreadRepo, new(MockMessageRepository), mockStaffRepo, new(MockTypingRepository), new(MockEventPublisher))

	_, _, err := uc.ResolveForViewer(ctx, thread.ID, outsiderID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// viewing a thread marks the counterpart span read and fans the receipt out
func TestThreadUseCase_View(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())

	mockThreadRepo := new(MockThreadRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockPub := new(MockEventPublisher)

	page := []domain.Message{
		{ID: uuid.NewString(), ThreadID: thread.ID, SenderID: thread.ProviderID, Content: "first"},
		{ID: uuid.NewString(), ThreadID: thread.ID, SenderID: thread.ProviderID, Content: "second"},
	}

	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockMsgRepo.On("List", ctx, thread.ID, "", 20).Return(page, false, "", nil)
	mockMsgRepo.On("MarkRead", ctx, thread.ID, thread.RequesterID).Return(int64(2), nil)
	mockPub.On("PublishRead", ctx, mock.MatchedBy(func(ev domain.ReadEvent) bool {
		return ev.ThreadID == thread.ID && ev.ReaderID == thread.RequesterID && ev.Count == 2
	})).Return(nil)

	uc := NewThreadUseCase(mockThreadRepo, mockMsgRepo, new(MockStaffRepository), new(MockTypingRepository), mockPub)

	msgs, hasMore, nextCursor, err := uc.View(ctx, thread.ID, thread.RequesterID, "", 20)
	assert.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.False(t, hasMore)
	assert.Empty(t, nextCursor)
	mockPub.AssertExpectations(t)
}

// the second mark-read is a no-op and publishes no receipt
func TestThreadUseCase_MarkThreadRead_Idempotent(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())

	mockThreadRepo := new(MockThreadRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockPub := new(MockEventPublisher)

	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockMsgRepo.On("MarkRead", ctx, thread.ID, thread.ProviderID).Return(int64(4), nil).Once()
	mockMsgRepo.On("MarkRead", ctx, thread.ID, thread.ProviderID).Return(int64(0), nil).Once()
	mockPub.On("PublishRead", ctx, mock.Anything).Return(nil).Once()

	uc := NewThreadUseCase(mockThreadRepo, mockMsgRepo, new(MockStaffRepository), new(MockTypingRepository), mockPub)

	count, err := uc.MarkThreadRead(ctx, thread.ID, thread.ProviderID)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), count)

	count, err = uc.MarkThreadRead(ctx, thread.ID, thread.ProviderID)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	mockPub.AssertNumberOfCalls(t, "PublishRead", 1)
}

func TestThreadUseCase_Archive_Toggles(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())

	archived := *thread
	archived.IsArchived = true

	mockThreadRepo := new(MockThreadRepository)
	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockThreadRepo.On("SetArchived", ctx, thread.ID, true).Return(&archived, nil)

	uc := NewThreadUseCase(mockThreadRepo, new(MockMessageRepository), new(MockStaffRepository), new(MockTypingRepository), new(MockEventPublisher))

	got, err := uc.Archive(ctx, thread.ID, thread.RequesterID)
	assert.NoError(t, err)
	assert.True(t, got.IsArchived)
	mockThreadRepo.AssertExpectations(t)
}

func TestThreadUseCase_Typing(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())
	viewer := domain.Identity{UserID: thread.RequesterID, DisplayName: "Alice"}

	mockThreadRepo := new(MockThreadRepository)
	mockTypingRepo := new(MockTypingRepository)
	mockPub := new(MockEventPublisher)

	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockTypingRepo.On("Refresh", ctx, mock.MatchedBy(func(ev domain.TypingEvent) bool {
		return ev.ThreadID == thread.ID && ev.UserID == viewer.UserID && !ev.Stopped
	})).Return(nil)
	mockPub.On("PublishTyping", ctx, mock.Anything).Return(nil)

	uc := NewThreadUseCase(mockThreadRepo, new(MockMessageRepository), new(MockStaffRepository), mockTypingRepo, mockPub)

	err := uc.Typing(ctx, thread.ID, viewer, false)
	assert.NoError(t, err)
	mockTypingRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

// staff typing for a provider emits their own user id, so the staff
// connection filters its own echo and the provider account does not
// swallow a colleague's ping as self
func TestThreadUseCase_Typing_StaffEmitsOwnUserID(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())
	staffID := uuid.NewString()
	viewer := domain.Identity{UserID: staffID, DisplayName: "Front Desk"}

	mockThreadRepo := new(MockThreadRepository)
	mockStaffRepo := new(MockStaffRepository)
	mockTypingRepo := new(MockTypingRepository)
	mockPub := new(MockEventPublisher)

	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockStaffRepo.On("IsMessagingStaff", ctx, thread.ProviderID, staffID).Return(true, nil)
	mockTypingRepo.On("Refresh", ctx, mock.MatchedBy(func(ev domain.TypingEvent) bool {
		return ev.UserID == staffID && ev.UserName == "Front Desk"
	})).Return(nil)
	mockPub.On("PublishTyping", ctx, mock.MatchedBy(func(ev domain.TypingEvent) bool {
		return ev.UserID == staffID
	})).Return(nil)

	uc := NewThreadUseCase(mockThreadRepo, new(MockMessageRepository), mockStaffRepo, mockTypingRepo, mockPub)

	err := uc.Typing(ctx, thread.ID, viewer, false)
	assert.NoError(t, err)
	mockTypingRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

func TestThreadUseCase_Typing_Stop(t *testing.T) {
	ctx := context.Background()
	thread := newTestThread(uuid.NewString(), uuid.NewString())
	viewer := domain.Identity{UserID: thread.ProviderID, DisplayName: "Daycare"}

	mockThreadRepo := new(MockThreadRepository)
	mockTypingRepo := new(MockTypingRepository)
	mockPub := new(MockEventPublisher)

	mockThreadRepo.On("FindByID", ctx, thread.ID).Return(thread, nil)
	mockTypingRepo.On("Clear", ctx, thread.ID, viewer.UserID).Return(nil)
	mockPub.On("PublishTyping", ctx, mock.MatchedBy(func(ev domain.TypingEvent) bool {
		return ev.Stopped
	})).Return(nil)

	uc := NewThreadUseCase(mockThreadRepo, new(MockMessageRepository), new(MockStaffRepository), mockTypingRepo, mockPub)

	err := uc.Typing(ctx, thread.ID, viewer, true)
	assert.NoError(t, err)
	mockTypingRepo.AssertExpectations(t)
}
