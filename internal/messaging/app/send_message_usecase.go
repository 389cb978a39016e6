package app

import (
	"context"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/internal/messaging/repository"
	"marketplace_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// SendMessageUseCase is the write path: authorize, validate, persist,
// then fan out. Persistence failure aborts the send with no
// publication; publish failures after a durable write are logged and
// never surfaced, the next List call covers the gap.
type SendMessageUseCase struct {
	threadRepo repository.ThreadRepository
	msgRepo    repository.MessageRepository
	staffRepo  repository.StaffRepository
	typingRepo repository.TypingRepository
	publisher  repository.EventPublisher
	notifier   repository.NotifyRepository
}

// NewSendMessageUseCase init send message use case
func NewSendMessageUseCase(
	threadRepo repository.ThreadRepository,
	msgRepo repository.MessageRepository,
	staffRepo repository.StaffRepository,
	typingRepo repository.TypingRepository,
	publisher repository.EventPublisher,
	notifier repository.NotifyRepository,
) *SendMessageUseCase {
	return &SendMessageUseCase{
		threadRepo: threadRepo,
		msgRepo:    msgRepo,
		staffRepo:  staffRepo,
		typingRepo: typingRepo,
		publisher:  publisher,
		notifier:   notifier,
	}
}

// Execute send message. clientMessageID is the caller's optimistic
// placeholder id, echoed in the fan-out so the sender's own client can
// reconcile without a refetch.
func (uc *SendMessageUseCase) Execute(ctx context.Context, threadID string, sender domain.Identity, content string, attachments []domain.AttachmentInput, clientMessageID string) (*domain.Message, error) {
	// 1. authorize: sender must act as one of the thread's two parties
	thread, err := uc.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	partyID, err := uc.actingParty(ctx, thread, sender.UserID)
	if err != nil {
		return nil, err
	}

	// 2.-3. validate and persist as one atomic unit
	msg, err := uc.msgRepo.Append(ctx, threadID, partyID, content, attachments)
	if err != nil {
		return nil, err
	}

	// sending ends the sender's typing state, keyed by the actor's own
	// user id so a staff send clears the staff member's entry
	if terr := uc.typingRepo.Clear(ctx, threadID, sender.UserID); terr != nil {
		logger.Log.Warn("clear typing on send failed", zap.String("thread_id", threadID), zap.Error(terr))
	}

	// 4. fan out the durable message; failures are logged, not surfaced
	ev := domain.NewMessageEvent{
		MessageID:       msg.ID,
		ThreadID:        threadID,
		SenderID:        partyID,
		SenderName:      sender.DisplayName,
		SenderAvatar:    sender.AvatarURL,
		Content:         msg.Content,
		CreatedAt:       msg.CreatedAt,
		Attachments:     msg.Attachments,
		ClientMessageID: clientMessageID,
	}
	if perr := uc.publisher.PublishNewMessage(ctx, ev); perr != nil {
		logger.Log.Error("publish new message failed", zap.String("message_id", msg.ID), zap.Error(perr))
	}

	uc.fanOutThreadUpdate(ctx, thread, partyID, sender.DisplayName, msg)

	recipient := thread.OtherParty(partyID)
	if nerr := uc.notifier.NotifyNewMessage(ctx, recipient, ev); nerr != nil {
		logger.Log.Error("notify pipeline publish failed", zap.String("message_id", msg.ID), zap.Error(nerr))
	}

	// 5. the durable record goes back to the caller
	return msg, nil
}

// StartThread entry point for "contact this provider" flows: resolves
// the unique pair thread (creating it when absent) and sends the first
// message through the normal pipeline.
func (uc *SendMessageUseCase) StartThread(ctx context.Context, requester domain.Identity, providerID string, subject *string, firstMessage string, attachments []domain.AttachmentInput) (*domain.Thread, *domain.Message, error) {
	thread, err := uc.threadRepo.GetOrCreate(ctx, requester.UserID, providerID, subject)
	if err != nil {
		return nil, nil, err
	}

	var msg *domain.Message
	if firstMessage != "" || len(attachments) > 0 {
		msg, err = uc.Execute(ctx, thread.ID, requester, firstMessage, attachments, "")
		if err != nil {
			return nil, nil, err
		}
	}

	return thread, msg, nil
}

// actingParty maps the sender onto a thread party: themselves when a
// direct party, the provider when authorized staff.
func (uc *SendMessageUseCase) actingParty(ctx context.Context, thread *domain.Thread, userID string) (string, error) {
	if thread.IsParty(userID) {
		return userID, nil
	}

	ok, err := uc.staffRepo.IsMessagingStaff(ctx, thread.ProviderID, userID)
	if err != nil {
		return "", err
	}
	if ok {
		return thread.ProviderID, nil
	}

	return "", domain.ErrNotParticipant
}

// fanOutThreadUpdate pushes a thread-list summary to the recipients
// minus the sender, so their list view updates without the thread open.
func (uc *SendMessageUseCase) fanOutThreadUpdate(ctx context.Context, thread *domain.Thread, senderPartyID, senderName string, msg *domain.Message) {
	recipient := thread.OtherParty(senderPartyID)

	unread, err := uc.msgRepo.CountUnread(ctx, thread.ID, recipient)
	if err != nil {
		logger.Log.Error("count unread for fan-out failed", zap.String("thread_id", thread.ID), zap.Error(err))
		return
	}

	update := domain.ThreadUpdateEvent{
		ThreadID:      thread.ID,
		Preview:       messagePreview(msg),
		SenderName:    senderName,
		LastMessageAt: msg.CreatedAt,
		UnreadCount:   unread,
	}
	if perr := uc.publisher.PublishThreadUpdate(ctx, recipient, update); perr != nil {
		logger.Log.Error("publish thread update failed", zap.String("thread_id", thread.ID), zap.Error(perr))
	}
}

// messagePreview falls back to the first attachment name for
// attachment-only messages.
func messagePreview(msg *domain.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	if len(msg.Attachments) > 0 {
		return msg.Attachments[0].Name
	}
	return ""
}
