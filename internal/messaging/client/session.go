// Package client is the connection-side reconciliation layer: it keeps a
// thread's visible message list consistent while sends are in flight.
// Sends appear instantly as placeholder entries and are swapped for the
// durable record once the server confirms, or rolled back with the draft
// restored when it does not.
package client

import (
	"context"
	"fmt"
	"sync"

	"marketplace_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
)

// MessageSender is the server write path as seen from the client
type MessageSender interface {
	SendMessage(ctx context.Context, threadID, content string, attachments []domain.AttachmentInput, clientMessageID string) (*domain.Message, error)
}

// Entry one row of the rendered message list. Pending entries carry a
// placeholder id until the server confirms.
type Entry struct {
	ID          string
	SenderID    string
	SenderName  string
	Content     string
	Attachments []domain.AttachmentInput
	Pending     bool
}

// Session tracks one open thread for one user
type Session struct {
	threadID string
	self     domain.Identity
	sender   MessageSender
	uploader Uploader

	mu      sync.Mutex
	entries []Entry
	// every id ever rendered, placeholder and durable, so duplicate
	// event delivery and reordering are harmless
	seen  map[string]struct{}
	draft string
}

// NewSession create a session for one thread. uploader may be nil when
// the caller never sends attachments.
func NewSession(threadID string, self domain.Identity, sender MessageSender, uploader Uploader) *Session {
	return &Session{
		threadID: threadID,
		self:     self,
		sender:   sender,
		uploader: uploader,
		seen:     make(map[string]struct{}),
	}
}

// Seed loads an already-fetched message page into the list, oldest first
func (s *Session) Seed(msgs []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		s.seen[m.ID] = struct{}{}
		s.entries = append(s.entries, Entry{
			ID:          m.ID,
			SenderID:    m.SenderID,
			Content:     m.Content,
			Attachments: attachmentInputs(m.Attachments),
		})
	}
}

// Send runs the optimistic protocol: placeholder insert, attachment
// upload, server round trip, then swap or rollback. On any failure the
// placeholder is removed and the content is kept as the draft so the
// user can retry.
func (s *Session) Send(ctx context.Context, content string, files []Upload) (*domain.Message, error) {
	placeholderID := "temp-" + uuid.NewString()

	s.mu.Lock()
	s.seen[placeholderID] = struct{}{}
	s.entries = append(s.entries, Entry{
		ID:         placeholderID,
		SenderID:   s.self.UserID,
		SenderName: s.self.DisplayName,
		Content:    content,
		Pending:    true,
	})
	s.draft = ""
	s.mu.Unlock()

	attachments, err := s.uploadAll(ctx, files)
	if err != nil {
		s.rollback(placeholderID, content)
		return nil, err
	}
	s.setAttachments(placeholderID, attachments)

	msg, err := s.sender.SendMessage(ctx, s.threadID, content, attachments, placeholderID)
	if err != nil {
		s.rollback(placeholderID, content)
		return nil, err
	}

	s.confirm(placeholderID, msg)
	return msg, nil
}

// Receive feeds a live NewMessage event into the list. The session's
// own messages are dropped, they are already represented by the
// placeholder or its confirmed swap; everything else dedupes by id.
func (s *Session) Receive(ev domain.NewMessageEvent) {
	if ev.SenderID == s.self.UserID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[ev.MessageID]; dup {
		return
	}
	s.seen[ev.MessageID] = struct{}{}
	s.entries = append(s.entries, Entry{
		ID:          ev.MessageID,
		SenderID:    ev.SenderID,
		SenderName:  ev.SenderName,
		Content:     ev.Content,
		Attachments: attachmentInputs(ev.Attachments),
	})
}

// Entries snapshot of the rendered list
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Draft returns the restored input after a failed send, empty otherwise
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) uploadAll(ctx context.Context, files []Upload) ([]domain.AttachmentInput, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: no uploader configured", domain.ErrUpload)
	}

	attachments := make([]domain.AttachmentInput, 0, len(files))
	for _, f := range files {
		att, err := s.uploader.Upload(ctx, f)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

// confirm swaps the placeholder for the durable record, keyed by the
// durable id from then on
func (s *Session) confirm(placeholderID string, msg *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[msg.ID] = struct{}{}
	for i := range s.entries {
		if s.entries[i].ID != placeholderID {
			continue
		}
		s.entries[i] = Entry{
			ID:          msg.ID,
			SenderID:    msg.SenderID,
			SenderName:  s.self.DisplayName,
			Content:     msg.Content,
			Attachments: attachmentInputs(msg.Attachments),
		}
		return
	}
}

// rollback removes the placeholder and restores the draft
func (s *Session) rollback(placeholderID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == placeholderID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	delete(s.seen, placeholderID)
	s.draft = content
}

func (s *Session) setAttachments(placeholderID string, attachments []domain.AttachmentInput) {
	if len(attachments) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == placeholderID {
			s.entries[i].Attachments = attachments
			return
		}
	}
}

func attachmentInputs(atts []domain.Attachment) []domain.AttachmentInput {
	if len(atts) == 0 {
		return nil
	}
	out := make([]domain.AttachmentInput, len(atts))
	for i, a := range atts {
		out[i] = domain.AttachmentInput{URL: a.URL, ContentType: a.ContentType, Name: a.Name}
	}
	return out
}
