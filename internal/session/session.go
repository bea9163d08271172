package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"conversation-service/internal/models"
)

// ReceiptWriter is the slice of the receipt ledger the session needs to
// issue delivered intents.
type ReceiptWriter interface {
	MarkDelivered(ctx context.Context, conversationID int, messageIDs []int, participantID int) ([]models.Receipt, error)
}

const deliveredWriteTimeout = 5 * time.Second

// Session owns the lifecycle of one active conversation view for one
// participant: the message feed, the receipt mirror, and typing presence.
// Call signaling is attached separately because it only exists while the
// call UI is up.
type Session struct {
	ConversationID int
	LocalID        int

	Feed    *Feed
	Tracker *Tracker
	Typing  *Aggregator

	cancel context.CancelFunc
}

// New builds a session. Delivered intents for remote messages are written
// through the receipt ledger fire-and-forget: a failed write is logged,
// swallowed, and re-issued implicitly the next time the view loads.
// onPresence, if set, receives the rendered typing summary on change.
func New(conversationID, localID int, writer ReceiptWriter, onPresence func(string)) *Session {
	s := &Session{
		ConversationID: conversationID,
		LocalID:        localID,
		Tracker:        NewTracker(),
		Typing:         NewAggregator(localID, onPresence),
	}
	s.Feed = NewFeed(localID, func(messageIDs []int) {
		if writer == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), deliveredWriteTimeout)
			defer cancel()
			if _, err := writer.MarkDelivered(ctx, conversationID, messageIDs, localID); err != nil {
				log.Printf("delivered receipt write failed conversation=%d participant=%d: %v", conversationID, localID, err)
			}
		}()
	})
	return s
}

// HistoryLoader is the slice of the backend a session seeds itself from.
type HistoryLoader interface {
	ListMessages(ctx context.Context, conversationID int) ([]models.Message, error)
	ListReceipts(ctx context.Context, conversationID int) ([]models.Receipt, error)
}

// Seed loads the message history and the receipt ledger into the session.
// On failure the feed stays empty and ErrBackendUnavailable is returned;
// the session itself stays usable for live events.
func (s *Session) Seed(ctx context.Context, loader HistoryLoader) error {
	msgs, err := loader.ListMessages(ctx, s.ConversationID)
	if err != nil {
		return fmt.Errorf("%w: load history: %v", ErrBackendUnavailable, err)
	}
	receipts, err := loader.ListReceipts(ctx, s.ConversationID)
	if err != nil {
		return fmt.Errorf("%w: load receipts: %v", ErrBackendUnavailable, err)
	}

	s.Feed.Load(msgs)
	for _, r := range receipts {
		s.Tracker.Record(r.MessageID, r.ParticipantID, r.Status)
	}
	return nil
}

// Start launches the typing sweep ticker. Must be paired with Close.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.Typing.Run(ctx, SweepInterval)
}

// Close stops the sweep ticker synchronously. After Close no timer fires
// for this session, so a conversation navigated away from cannot have its
// state mutated by stale callbacks.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// HandleEvent applies one change-feed or broadcast event to the session's
// state. Unknown event types are ignored.
func (s *Session) HandleEvent(ev models.ConversationEvent) {
	switch ev.Type {
	case models.EventMessage:
		if ev.Message != nil {
			s.Feed.ApplyInsert(*ev.Message)
		}
	case models.EventMessageUpdated:
		if ev.Message != nil {
			s.Feed.ApplyUpdate(*ev.Message)
		}
	case models.EventReceipt:
		for _, r := range ev.Receipts {
			s.Tracker.Record(r.MessageID, r.ParticipantID, r.Status)
		}
	case models.EventTyping:
		s.Typing.Observe(ev.From, ev.DisplayName, time.Now())
	}
}
