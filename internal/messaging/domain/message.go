package domain

import "time"

// MessageStatus definition message delivery state
type MessageStatus string

const (
	// StatusSent message persisted, counterpart not yet reached
	StatusSent MessageStatus = "SENT"
	// StatusDelivered a live counterpart subscriber accepted the event
	StatusDelivered MessageStatus = "DELIVERED"
	// StatusRead counterpart viewed the thread
	StatusRead MessageStatus = "READ"
)

// Message is an immutable unit of communication within a thread.
// Content and attachments never change after insert; only status and
// read_at transition.
type Message struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	Seq       int64         `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	ThreadID  string        `gorm:"size:36;index:idx_messages_thread" json:"thread_id"`
	SenderID  string        `gorm:"size:36;index" json:"sender_id"`
	Content   string        `gorm:"type:text" json:"content"`
	Status    MessageStatus `gorm:"size:16;default:SENT" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	ReadAt    *time.Time    `json:"read_at,omitempty"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
}

// TableName set message table name
func (Message) TableName() string { return "messages" }

// Attachment a file reference attached to a message, created in the
// same transaction as its parent and immutable afterwards.
type Attachment struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	MessageID   string    `gorm:"size:36;index" json:"message_id"`
	URL         string    `gorm:"size:512" json:"url"`
	ContentType string    `gorm:"size:128" json:"type"`
	Name        string    `gorm:"size:255" json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName set attachment table name
func (Attachment) TableName() string { return "attachments" }

// AttachmentInput descriptor of a pre-uploaded file, as handed to the
// send pipeline after the blob upload step.
type AttachmentInput struct {
	URL         string `json:"url"`
	ContentType string `json:"type"`
	Name        string `json:"name"`
}
