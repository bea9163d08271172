package models

import "time"

// ReceiptStatus is the delivery state a participant holds for a message.
// The only legal transition is delivered -> read; the ledger never moves
// a row backward.
type ReceiptStatus string

const (
	ReceiptDelivered ReceiptStatus = "delivered"
	ReceiptRead      ReceiptStatus = "read"
)

// Receipt asserts that a participant has delivered or read a message.
// At most one row exists per (conversation, message, participant).
type Receipt struct {
	ConversationID int           `db:"conversation_id" json:"conversation_id"`
	MessageID      int           `db:"message_id" json:"message_id"`
	ParticipantID  int           `db:"participant_id" json:"participant_id"`
	Status         ReceiptStatus `db:"status" json:"status"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}
