package bdd

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
)

// memStore in-memory stand-in for the relational store and the event
// fabric, shared by every fake repository in the suite
type memStore struct {
	mu       sync.Mutex
	threads  map[string]*domain.Thread
	messages map[string][]domain.Message
	staff    map[string]string // providerID:userID -> role
	nextSeq  int64

	// published events, keyed per recipient or per thread
	newMessages   map[string][]domain.NewMessageEvent // threadID
	readReceipts  map[string][]domain.ReadEvent       // threadID
	threadUpdates map[string][]domain.ThreadUpdateEvent
}

func newMemStore() *memStore {
	return &memStore{
		threads:       make(map[string]*domain.Thread),
		messages:      make(map[string][]domain.Message),
		staff:         make(map[string]string),
		newMessages:   make(map[string][]domain.NewMessageEvent),
		readReceipts:  make(map[string][]domain.ReadEvent),
		threadUpdates: make(map[string][]domain.ThreadUpdateEvent),
	}
}

func pairKey(requesterID, providerID string) string {
	return requesterID + ":" + providerID
}

// --- ThreadRepository ---

type memThreadRepo struct{ s *memStore }

func (r *memThreadRepo) GetOrCreate(ctx context.Context, requesterID, providerID string, subject *string) (*domain.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.threads {
		if t.RequesterID == requesterID && t.ProviderID == providerID {
			return t, nil
		}
	}
	t := &domain.Thread{
		ID:          uuid.NewString(),
		Subject:     subject,
		RequesterID: requesterID,
		ProviderID:  providerID,
		CreatedAt:   time.Now().UTC(),
	}
	r.s.threads[t.ID] = t
	return t, nil
}

func (r *memThreadRepo) FindByID(ctx context.Context, threadID string) (*domain.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.threads[threadID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (r *memThreadRepo) SetArchived(ctx context.Context, threadID string, archived bool) (*domain.Thread, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.threads[threadID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	t.IsArchived = archived
	return t, nil
}

func (r *memThreadRepo) ListForUser(ctx context.Context, userID string, filter domain.ThreadFilter) ([]domain.ThreadSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ThreadSummary
	for _, t := range r.s.threads {
		if !t.IsParty(userID) {
			continue
		}
		if filter.Archived != nil && t.IsArchived != *filter.Archived {
			continue
		}
		out = append(out, domain.ThreadSummary{Thread: *t})
	}
	return out, nil
}

// --- MessageRepository ---

type memMessageRepo struct{ s *memStore }

func (r *memMessageRepo) Append(ctx context.Context, threadID, senderID, content string, attachments []domain.AttachmentInput) (*domain.Message, error) {
	if content == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs content or attachments", domain.ErrValidation)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.threads[threadID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !t.IsParty(senderID) {
		return nil, domain.ErrNotParticipant
	}

	r.s.nextSeq++
	msg := domain.Message{
		ID:        uuid.NewString(),
		Seq:       r.s.nextSeq,
		ThreadID:  threadID,
		SenderID:  senderID,
		Content:   content,
		Status:    domain.StatusSent,
		CreatedAt: time.Now().UTC(),
	}
	for _, a := range attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			ID: uuid.NewString(), MessageID: msg.ID, URL: a.URL, ContentType: a.ContentType, Name: a.Name,
		})
	}
	r.s.messages[threadID] = append(r.s.messages[threadID], msg)
	t.LastMessageAt = msg.CreatedAt
	out := msg
	return &out, nil
}

func (r *memMessageRepo) List(ctx context.Context, threadID, cursor string, limit int) ([]domain.Message, bool, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// exclusive seq cursor, newest page first, oldest-first inside a page
	maxSeq := int64(math.MaxInt64)
	if cursor != "" {
		seq, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, false, "", fmt.Errorf("%w: bad cursor %q", domain.ErrValidation, cursor)
		}
		maxSeq = seq
	}

	var out []domain.Message
	for _, m := range r.s.messages[threadID] {
		if m.Seq < maxSeq {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	hasMore := len(out) > limit
	nextCursor := ""
	if hasMore {
		out = out[len(out)-limit:]
		nextCursor = strconv.FormatInt(out[0].Seq, 10)
	}

	return out, hasMore, nextCursor, nil
}

func (r *memMessageRepo) MarkRead(ctx context.Context, threadID, viewerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var count int64
	msgs := r.s.messages[threadID]
	for i := range msgs {
		if msgs[i].SenderID != viewerID && msgs[i].Status != domain.StatusRead {
			msgs[i].Status = domain.StatusRead
			msgs[i].ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (r *memMessageRepo) MarkDelivered(ctx context.Context, threadID, senderID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := r.s.messages[threadID]
	for i := range msgs {
		if msgs[i].SenderID == senderID && msgs[i].Status == domain.StatusSent {
			msgs[i].Status = domain.StatusDelivered
		}
	}
	return nil
}

func (r *memMessageRepo) CountUnread(ctx context.Context, threadID, viewerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, m := range r.s.messages[threadID] {
		if m.SenderID != viewerID && m.Status != domain.StatusRead {
			count++
		}
	}
	return count, nil
}

func (r *memMessageRepo) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, msgs := range r.s.messages {
		for _, m := range msgs {
			if m.ID == messageID {
				out := m
				return &out, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// --- StaffRepository ---

type memStaffRepo struct{ s *memStore }

func (r *memStaffRepo) IsMessagingStaff(ctx context.Context, providerID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.staff[pairKey(providerID, userID)]
	if !ok {
		return false, nil
	}
	for _, allowed := range domain.MessagingRoles {
		if role == allowed {
			return true, nil
		}
	}
	return false, nil
}

// --- TypingRepository ---

type memTypingRepo struct {
	mu     sync.Mutex
	typers map[string]domain.TypingEvent
}

func newMemTypingRepo() *memTypingRepo {
	return &memTypingRepo{typers: make(map[string]domain.TypingEvent)}
}

func (r *memTypingRepo) Refresh(ctx context.Context, ev domain.TypingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typers[ev.ThreadID+":"+ev.UserID] = ev
	return nil
}

func (r *memTypingRepo) Clear(ctx context.Context, threadID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.typers, threadID+":"+userID)
	return nil
}

func (r *memTypingRepo) Active(ctx context.Context, threadID string) ([]domain.TypingEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TypingEvent
	for _, ev := range r.typers {
		if ev.ThreadID == threadID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// --- EventPublisher ---

type memPublisher struct{ s *memStore }

func (p *memPublisher) PublishNewMessage(ctx context.Context, ev domain.NewMessageEvent) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.newMessages[ev.ThreadID] = append(p.s.newMessages[ev.ThreadID], ev)
	return nil
}

func (p *memPublisher) PublishTyping(ctx context.Context, ev domain.TypingEvent) error {
	return nil
}

func (p *memPublisher) PublishRead(ctx context.Context, ev domain.ReadEvent) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.readReceipts[ev.ThreadID] = append(p.s.readReceipts[ev.ThreadID], ev)
	return nil
}

func (p *memPublisher) PublishThreadUpdate(ctx context.Context, userID string, ev domain.ThreadUpdateEvent) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.threadUpdates[userID] = append(p.s.threadUpdates[userID], ev)
	return nil
}

// --- NotifyRepository ---

type memNotifyRepo struct{}

func (memNotifyRepo) NotifyNewMessage(ctx context.Context, recipientID string, ev domain.NewMessageEvent) error {
	return nil
}
