package models

import "time"

// Message is one entry in a conversation. Rows are immutable after insert
// except for the attachment columns, which are patched once the upload
// finishes; the row exists before the blob does.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	SenderID       int       `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"`
	AttachmentPath *string   `db:"attachment_path" json:"attachment_path,omitempty"`
	AttachmentName *string   `db:"attachment_name" json:"attachment_name,omitempty"`
	AttachmentMime *string   `db:"attachment_mime" json:"attachment_mime,omitempty"`
	AttachmentSize *int64    `db:"attachment_size" json:"attachment_size,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// HasAttachment reports whether the attachment patch has landed.
func (m Message) HasAttachment() bool {
	return m.AttachmentPath != nil && *m.AttachmentPath != ""
}
