package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository definition message persistence and read-state bookkeeping
type MessageRepository interface {
	// Append validates, inserts the message with its attachments and
	// bumps the thread's last_message_at, all in one transaction.
	Append(ctx context.Context, threadID, senderID, content string, attachments []domain.AttachmentInput) (*domain.Message, error)
	// List pages messages oldest→newest with an exclusive seq cursor.
	List(ctx context.Context, threadID, cursor string, limit int) ([]domain.Message, bool, string, error)
	// MarkRead bulk-transitions unread counterpart messages to READ.
	MarkRead(ctx context.Context, threadID, viewerID string) (int64, error)
	// MarkDelivered best-effort SENT→DELIVERED for a sender's messages.
	MarkDelivered(ctx context.Context, threadID, senderID string) error
	CountUnread(ctx context.Context, threadID, viewerID string) (int64, error)
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository create a MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

const defaultPageSize = 50

func (r *messageRepository) Append(ctx context.Context, threadID, senderID, content string, attachments []domain.AttachmentInput) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs content or attachments", domain.ErrValidation)
	}

	var thread domain.Thread
	err := r.db.WithContext(ctx).Where("id = ?", threadID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find thread: %v", domain.ErrDatabase, err)
	}
	if !thread.IsParty(senderID) {
		return nil, domain.ErrNotParticipant
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   content,
		Status:    domain.StatusSent,
		CreatedAt: now,
	}
	for _, a := range attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			ID:          uuid.New().String(),
			MessageID:   msg.ID,
			URL:         a.URL,
			ContentType: a.ContentType,
			Name:        a.Name,
			CreatedAt:   now,
		})
	}

	// message insert and thread metadata update commit together or not at all
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Thread{}).
			Where("id = ?", threadID).
			Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: append message: %v", domain.ErrDatabase, err)
	}

	return msg, nil
}

// List fetches newest-first on seq < cursor for stable paging, then
// reverses for display. Overfetches one row to learn hasMore.
func (r *messageRepository) List(ctx context.Context, threadID, cursor string, limit int) ([]domain.Message, bool, string, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}

	q := r.db.WithContext(ctx).Where("thread_id = ?", threadID)
	if cursor != "" {
		seq, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, false, "", fmt.Errorf("%w: bad cursor %q", domain.ErrValidation, cursor)
		}
		q = q.Where("seq < ?", seq)
	}

	var msgs []domain.Message
	err := q.Preload("Attachments").
		Order("seq DESC").
		Limit(limit + 1).
		Find(&msgs).Error
	if err != nil {
		return nil, false, "", fmt.Errorf("%w: list messages: %v", domain.ErrDatabase, err)
	}

	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}

	nextCursor := ""
	if hasMore && len(msgs) > 0 {
		// oldest row of this page, cursor is exclusive
		nextCursor = strconv.FormatInt(msgs[len(msgs)-1].Seq, 10)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, hasMore, nextCursor, nil
}

// MarkRead is idempotent: the filter excludes rows already READ, so
// concurrent or repeated calls converge and the second returns 0.
func (r *messageRepository) MarkRead(ctx context.Context, threadID, viewerID string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND status <> ?", threadID, viewerID, domain.StatusRead).
		Updates(map[string]interface{}{
			"status":  domain.StatusRead,
			"read_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: mark read: %v", domain.ErrDatabase, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) MarkDelivered(ctx context.Context, threadID, senderID string) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("thread_id = ? AND sender_id = ? AND status = ?", threadID, senderID, domain.StatusSent).
		Update("status", domain.StatusDelivered).Error
	if err != nil {
		return fmt.Errorf("%w: mark delivered: %v", domain.ErrDatabase, err)
	}
	return nil
}

func (r *messageRepository) CountUnread(ctx context.Context, threadID, viewerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND status <> ?", threadID, viewerID, domain.StatusRead).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count unread: %v", domain.ErrDatabase, err)
	}
	return count, nil
}

func (r *messageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("id = ?", messageID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find message: %v", domain.ErrDatabase, err)
	}
	return &msg, nil
}
