package repository

import (
	"context"
	"strings"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/pkg/database"
)

// TypingRepository definition ephemeral typing state. Entries are TTL
// keys in redis, refreshed on each ping and never persisted to the
// durable store; expiry is the "stopped typing" fallback.
type TypingRepository interface {
	Refresh(ctx context.Context, ev domain.TypingEvent) error
	Clear(ctx context.Context, threadID, userID string) error
	Active(ctx context.Context, threadID string) ([]domain.TypingEvent, error)
}

type typingRepository struct {
	store database.RedisRepository[domain.TypingEvent]
	ttl   time.Duration
}

// NewTypingRepository create a TypingRepository with the given TTL
func NewTypingRepository(store database.RedisRepository[domain.TypingEvent], ttl time.Duration) TypingRepository {
	if ttl <= 0 {
		ttl = 4 * time.Second
	}
	return &typingRepository{store: store, ttl: ttl}
}

func typingKey(threadID, userID string) string {
	return "chat:typing:" + threadID + ":" + userID
}

func (r *typingRepository) Refresh(ctx context.Context, ev domain.TypingEvent) error {
	return r.store.Set(ctx, typingKey(ev.ThreadID, ev.UserID), ev, r.ttl)
}

func (r *typingRepository) Clear(ctx context.Context, threadID, userID string) error {
	return r.store.Del(ctx, typingKey(threadID, userID))
}

// Active lists the users currently typing in the thread. Keys that
// expire between scan and get are simply skipped.
func (r *typingRepository) Active(ctx context.Context, threadID string) ([]domain.TypingEvent, error) {
	keys, err := r.store.Keys(ctx, typingKey(threadID, "*"))
	if err != nil {
		return nil, err
	}

	events := make([]domain.TypingEvent, 0, len(keys))
	for _, key := range keys {
		ev, err := r.store.Get(ctx, key)
		if err != nil {
			if strings.Contains(err.Error(), "redis.Nil") {
				continue
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
