package domain

import "time"

// Action websocket request / notification action
type Action string

const (
	// EnterThread websocket action enter_thread
	EnterThread Action = "enter_thread"
	// LeaveThread websocket action leave_thread
	LeaveThread Action = "leave_thread"

	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// TypingPing websocket action typing
	TypingPing Action = "typing"
	// StopTyping websocket action stop_typing
	StopTyping Action = "stop_typing"
	// MarkRead websocket action mark_read
	MarkRead Action = "mark_read"

	// NotifyMessage websocket notification notify_message
	NotifyMessage Action = "notify_message"
	// NotifyTyping websocket notification notify_typing
	NotifyTyping Action = "notify_typing"
	// NotifyThreadUpdate websocket notification notify_thread_update
	NotifyThreadUpdate Action = "notify_thread_update"
	// NotifyRead websocket notification notify_read
	NotifyRead Action = "notify_read"
)

// WSRequest websocket Request
type WSRequest struct {
	Action          Action            `json:"action"`
	ThreadID        string            `json:"thread_id"`
	Content         string            `json:"content"`
	ClientMessageID string            `json:"client_message_id"`
	Attachments     []AttachmentInput `json:"attachments"`
	Cursor          string            `json:"cursor"`
	Limit           int               `json:"limit"`
}

// WSResponse websocket Response, same envelope as the REST surface
type WSResponse struct {
	Action  Action                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// NewMessageEvent carries the full durable message so subscribers need
// no follow-up fetch. ClientMessageID echoes the sender's placeholder
// id so its own client can reconcile the optimistic entry.
type NewMessageEvent struct {
	MessageID       string       `json:"message_id"`
	ThreadID        string       `json:"thread_id"`
	SenderID        string       `json:"sender_id"`
	SenderName      string       `json:"sender_name"`
	SenderAvatar    string       `json:"sender_avatar"`
	Content         string       `json:"content"`
	CreatedAt       time.Time    `json:"created_at"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	ClientMessageID string       `json:"client_message_id,omitempty"`
}

// TypingEvent ephemeral typing ping, never persisted
type TypingEvent struct {
	ThreadID string    `json:"thread_id"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Stopped  bool      `json:"stopped"`
	At       time.Time `json:"at"`
}

// ThreadUpdateEvent thread-list summary pushed on a user's own channel
type ThreadUpdateEvent struct {
	ThreadID      string    `json:"thread_id"`
	Preview       string    `json:"preview"`
	SenderName    string    `json:"sender_name"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`
}

// ReadEvent emitted on the thread channel after a viewer marked it read
type ReadEvent struct {
	ThreadID string    `json:"thread_id"`
	ReaderID string    `json:"reader_id"`
	Count    int64     `json:"count"`
	ReadAt   time.Time `json:"read_at"`
}
