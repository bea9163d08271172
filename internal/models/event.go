package models

import "encoding/json"

// Event types carried on a conversation's websocket. "message" and
// "receipt" mirror the durable change feed; the rest are ephemeral
// broadcast signals and are never persisted.
const (
	EventMessage        = "message"
	EventMessageUpdated = "message_updated"
	EventReceipt        = "receipt"
	EventTyping         = "typing"
	EventPresence       = "presence"
	EventOffer          = "offer"
	EventAnswer         = "answer"
	EventCandidate      = "candidate"
	EventBye            = "bye"
)

// ConversationEvent is the single frame shape exchanged on a conversation
// websocket, both directions. Signal frames (offer/answer/candidate/bye)
// are tagged with sender and recipient ids; a frame addressed to someone
// else is ignored by every other subscriber on the shared channel.
type ConversationEvent struct {
	Type        string          `json:"type"`
	Message     *Message        `json:"message,omitempty"`
	Receipts    []Receipt       `json:"receipts,omitempty"`
	From        int             `json:"from,omitempty"`
	To          int             `json:"to,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Text        string          `json:"text,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// IsSignal reports whether the event belongs to the call-signaling
// handshake rather than the message/receipt feed.
func (e ConversationEvent) IsSignal() bool {
	switch e.Type {
	case EventOffer, EventAnswer, EventCandidate, EventBye:
		return true
	}
	return false
}
