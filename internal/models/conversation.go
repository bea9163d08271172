package models

import "time"

// Conversation groups a set of participants around one message history,
// typically the crew assigned to a field-service job.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Member is one participant of a conversation.
type Member struct {
	ConversationID int    `db:"conversation_id" json:"conversation_id"`
	ParticipantID  int    `db:"participant_id" json:"participant_id"`
	DisplayName    string `db:"display_name" json:"display_name"`
}

// ConversationSummary is a listing row for one participant's inbox.
type ConversationSummary struct {
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	Title          string    `db:"title" json:"title"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Unread         int       `db:"-" json:"unread"`
}
