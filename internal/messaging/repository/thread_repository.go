package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadRepository definition thread persistence
type ThreadRepository interface {
	GetOrCreate(ctx context.Context, requesterID, providerID string, subject *string) (*domain.Thread, error)
	FindByID(ctx context.Context, threadID string) (*domain.Thread, error)
	SetArchived(ctx context.Context, threadID string, archived bool) (*domain.Thread, error)
	ListForUser(ctx context.Context, userID string, filter domain.ThreadFilter) ([]domain.ThreadSummary, error)
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository create a ThreadRepository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

// GetOrCreate inserts the pair thread if absent. The unique pair index
// arbitrates concurrent first contact: the insert is ON CONFLICT DO
// NOTHING and the row is always read back, so every caller converges
// on the same thread id.
func (r *threadRepository) GetOrCreate(ctx context.Context, requesterID, providerID string, subject *string) (*domain.Thread, error) {
	now := time.Now().UTC()
	thread := &domain.Thread{
		ID:            uuid.New().String(),
		Subject:       subject,
		RequesterID:   requesterID,
		ProviderID:    providerID,
		LastMessageAt: now,
		CreatedAt:     now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "requester_id"}, {Name: "provider_id"}},
			DoNothing: true,
		}).
		Create(thread).Error
	if err != nil {
		return nil, fmt.Errorf("%w: get or create thread: %v", domain.ErrDatabase, err)
	}

	var out domain.Thread
	err = r.db.WithContext(ctx).
		Where("requester_id = ? AND provider_id = ?", requesterID, providerID).
		First(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%w: fetch pair thread: %v", domain.ErrDatabase, err)
	}

	return &out, nil
}

func (r *threadRepository) FindByID(ctx context.Context, threadID string) (*domain.Thread, error) {
	var thread domain.Thread
	err := r.db.WithContext(ctx).Where("id = ?", threadID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find thread: %v", domain.ErrDatabase, err)
	}
	return &thread, nil
}

func (r *threadRepository) SetArchived(ctx context.Context, threadID string, archived bool) (*domain.Thread, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("id = ?", threadID).
		Update("is_archived", archived)
	if res.Error != nil {
		return nil, fmt.Errorf("%w: archive thread: %v", domain.ErrDatabase, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(ctx, threadID)
}

// ListForUser returns the user's threads ordered by last activity,
// annotated with last message preview and unread count. Counts and
// previews are fetched in two grouped queries instead of per thread.
func (r *threadRepository) ListForUser(ctx context.Context, userID string, filter domain.ThreadFilter) ([]domain.ThreadSummary, error) {
	q := r.db.WithContext(ctx).
		Where("requester_id = ? OR provider_id = ?", userID, userID)
	if filter.Archived != nil {
		q = q.Where("is_archived = ?", *filter.Archived)
	}

	var threads []domain.Thread
	if err := q.Order("last_message_at DESC").Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("%w: list threads: %v", domain.ErrDatabase, err)
	}
	if len(threads) == 0 {
		return []domain.ThreadSummary{}, nil
	}

	ids := make([]string, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.ID)
	}

	type unreadRow struct {
		ThreadID string
		Count    int64
	}
	var unread []unreadRow
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("thread_id, COUNT(*) AS count").
		Where("thread_id IN ? AND sender_id <> ? AND status <> ?", ids, userID, domain.StatusRead).
		Group("thread_id").
		Scan(&unread).Error
	if err != nil {
		return nil, fmt.Errorf("%w: count unread: %v", domain.ErrDatabase, err)
	}
	unreadByThread := make(map[string]int64, len(unread))
	for _, row := range unread {
		unreadByThread[row.ThreadID] = row.Count
	}

	type previewRow struct {
		ThreadID string
		Content  string
		SenderID string
	}
	var previews []previewRow
	err = r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (thread_id) thread_id, content, sender_id
		     FROM messages WHERE thread_id IN ?
		     ORDER BY thread_id, seq DESC`, ids).
		Scan(&previews).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load previews: %v", domain.ErrDatabase, err)
	}
	previewByThread := make(map[string]previewRow, len(previews))
	for _, row := range previews {
		previewByThread[row.ThreadID] = row
	}

	summaries := make([]domain.ThreadSummary, 0, len(threads))
	for _, t := range threads {
		s := domain.ThreadSummary{
			Thread:      t,
			UnreadCount: unreadByThread[t.ID],
		}
		if p, ok := previewByThread[t.ID]; ok {
			s.LastMessagePreview = p.Content
			s.LastMessageSender = p.SenderID
		}
		summaries = append(summaries, s)
	}

	return summaries, nil
}
