package app

import (
	"context"
	"fmt"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/internal/messaging/repository"
	"marketplace_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// ThreadUseCase orchestrates thread lookup, authorization and unread
// accounting above the stores.
type ThreadUseCase struct {
	threadRepo repository.ThreadRepository
	msgRepo    repository.MessageRepository
	staffRepo  repository.StaffRepository
	typingRepo repository.TypingRepository
	publisher  repository.EventPublisher
}

// NewThreadUseCase init thread use case
func NewThreadUseCase(
	threadRepo repository.ThreadRepository,
	msgRepo repository.MessageRepository,
	staffRepo repository.StaffRepository,
	typingRepo repository.TypingRepository,
	publisher repository.EventPublisher,
) *ThreadUseCase {
	return &ThreadUseCase{
		threadRepo: threadRepo,
		msgRepo:    msgRepo,
		staffRepo:  staffRepo,
		typingRepo: typingRepo,
		publisher:  publisher,
	}
}

// ResolveForViewer returns the thread and the party id the viewer acts
// as: their own id for a direct party, the provider's id for
// authorized provider staff. Both a missing thread and an
// unauthorized viewer come back as ErrNotFound so existence never
// leaks.
func (uc *ThreadUseCase) ResolveForViewer(ctx context.Context, threadID, viewerID string) (*domain.Thread, string, error) {
	thread, err := uc.threadRepo.FindByID(ctx, threadID)
	if err != nil {
		return nil, "", err
	}

	if thread.IsParty(viewerID) {
		return thread, viewerID, nil
	}

	ok, err := uc.staffRepo.IsMessagingStaff(ctx, thread.ProviderID, viewerID)
	if err != nil {
		return nil, "", err
	}
	if ok {
		return thread, thread.ProviderID, nil
	}

	return nil, "", domain.ErrNotFound
}

// ListThreads returns the user's thread summaries, newest activity first
func (uc *ThreadUseCase) ListThreads(ctx context.Context, userID string, filter domain.ThreadFilter) ([]domain.ThreadSummary, error) {
	return uc.threadRepo.ListForUser(ctx, userID, filter)
}

// View resolves the thread for the viewer, pages its messages and
// marks the counterpart's messages read. The mark-read side effect is
// what the other party's next events or poll reflect as "seen".
func (uc *ThreadUseCase) View(ctx context.Context, threadID, viewerID, cursor string, limit int) ([]domain.Message, bool, string, error) {
	_, partyID, err := uc.ResolveForViewer(ctx, threadID, viewerID)
	if err != nil {
		return nil, false, "", err
	}

	msgs, hasMore, nextCursor, err := uc.msgRepo.List(ctx, threadID, cursor, limit)
	if err != nil {
		return nil, false, "", err
	}

	if _, err := uc.markRead(ctx, threadID, partyID); err != nil {
		logger.Log.Error("mark read on view failed", zap.String("thread_id", threadID), zap.Error(err))
	}

	return msgs, hasMore, nextCursor, nil
}

// MarkThreadRead bulk read transition for the viewer, with receipt fan-out
func (uc *ThreadUseCase) MarkThreadRead(ctx context.Context, threadID, viewerID string) (int64, error) {
	_, partyID, err := uc.ResolveForViewer(ctx, threadID, viewerID)
	if err != nil {
		return 0, err
	}
	return uc.markRead(ctx, threadID, partyID)
}

func (uc *ThreadUseCase) markRead(ctx context.Context, threadID, partyID string) (int64, error) {
	count, err := uc.msgRepo.MarkRead(ctx, threadID, partyID)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		ev := domain.ReadEvent{
			ThreadID: threadID,
			ReaderID: partyID,
			Count:    count,
			ReadAt:   time.Now().UTC(),
		}
		if perr := uc.publisher.PublishRead(ctx, ev); perr != nil {
			logger.Log.Error("publish read receipt failed", zap.String("thread_id", threadID), zap.Error(perr))
		}
	}

	return count, nil
}

// Archive toggles the thread's archived flag for a party
func (uc *ThreadUseCase) Archive(ctx context.Context, threadID, actorID string) (*domain.Thread, error) {
	thread, _, err := uc.ResolveForViewer(ctx, threadID, actorID)
	if err != nil {
		return nil, err
	}
	return uc.threadRepo.SetArchived(ctx, threadID, !thread.IsArchived)
}

// Typing refreshes (or clears) the caller's typing entry and fans the
// ping out to thread subscribers. Fire and forget from the caller's
// point of view, errors only logged. The event carries the actor's own
// user id, not the party id: a staff member typing for a provider must
// still receive nothing back on their own connection, and two staff
// typing at once are two entries.
func (uc *ThreadUseCase) Typing(ctx context.Context, threadID string, viewer domain.Identity, stopped bool) error {
	if _, _, err := uc.ResolveForViewer(ctx, threadID, viewer.UserID); err != nil {
		return err
	}

	ev := domain.TypingEvent{
		ThreadID: threadID,
		UserID:   viewer.UserID,
		UserName: viewer.DisplayName,
		Stopped:  stopped,
		At:       time.Now().UTC(),
	}

	if stopped {
		if terr := uc.typingRepo.Clear(ctx, threadID, viewer.UserID); terr != nil {
			logger.Log.Error("clear typing failed", zap.String("thread_id", threadID), zap.Error(terr))
		}
	} else {
		if terr := uc.typingRepo.Refresh(ctx, ev); terr != nil {
			logger.Log.Error("refresh typing failed", zap.String("thread_id", threadID), zap.Error(terr))
		}
	}

	if perr := uc.publisher.PublishTyping(ctx, ev); perr != nil {
		logger.Log.Error("publish typing failed", zap.String("thread_id", threadID), zap.Error(perr))
	}

	return nil
}

// ActiveTypers lists who is typing in the thread right now
func (uc *ThreadUseCase) ActiveTypers(ctx context.Context, threadID, viewerID string) ([]domain.TypingEvent, error) {
	if _, _, err := uc.ResolveForViewer(ctx, threadID, viewerID); err != nil {
		return nil, err
	}
	return uc.typingRepo.Active(ctx, threadID)
}

// ConfirmDelivered stamps the counterpart's pending messages DELIVERED
// once a live subscriber accepted the event. Best effort.
func (uc *ThreadUseCase) ConfirmDelivered(ctx context.Context, threadID, senderID string) {
	if err := uc.msgRepo.MarkDelivered(ctx, threadID, senderID); err != nil {
		logger.Log.Error(fmt.Sprintf("mark delivered failed: %v", err), zap.String("thread_id", threadID))
	}
}
