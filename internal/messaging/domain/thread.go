package domain

import "time"

// Thread represents a single conversation between one requester
// (patient / parent) and one provider (daycare / practice).
// The (requester_id, provider_id) pair is unique: concurrent first
// contact from both sides converges on one row.
type Thread struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Subject       *string   `gorm:"size:255" json:"subject,omitempty"`
	RequesterID   string    `gorm:"size:36;uniqueIndex:idx_thread_pair,priority:1" json:"requester_id"`
	ProviderID    string    `gorm:"size:36;uniqueIndex:idx_thread_pair,priority:2;index" json:"provider_id"`
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
	IsArchived    bool      `json:"is_archived"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName set thread table name
func (Thread) TableName() string { return "threads" }

// IsParty check userID is one of the thread's two direct parties
func (t *Thread) IsParty(userID string) bool {
	return t.RequesterID == userID || t.ProviderID == userID
}

// OtherParty returns the counterpart of userID
func (t *Thread) OtherParty(userID string) string {
	if t.RequesterID == userID {
		return t.ProviderID
	}
	return t.RequesterID
}

// ThreadSummary thread annotated for list views
type ThreadSummary struct {
	Thread
	LastMessagePreview string `json:"last_message_preview"`
	LastMessageSender  string `json:"last_message_sender"`
	UnreadCount        int64  `json:"unread_count"`
}

// ThreadFilter named filters for listing threads
type ThreadFilter struct {
	Archived *bool
}

// ProviderStaff membership of a user in a provider's staff set.
// Staff whose role is in MessagingRoles share the provider party's
// read/write access to the provider's threads.
type ProviderStaff struct {
	ProviderID string    `gorm:"primaryKey;size:36" json:"provider_id"`
	UserID     string    `gorm:"primaryKey;size:36" json:"user_id"`
	Role       string    `gorm:"size:32" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName set provider staff table name
func (ProviderStaff) TableName() string { return "provider_staff" }

// MessagingRoles staff roles authorized to handle messaging
var MessagingRoles = []string{"owner", "manager", "coordinator"}
