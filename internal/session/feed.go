package session

import (
	"sort"
	"sync"

	"conversation-service/internal/models"
)

// DeliveredFunc receives the ids of newly observed remote messages so a
// delivered receipt can be written for them. Implementations are expected
// to be fire-and-forget: failures are swallowed and the receipt is simply
// absent until the next view re-issues it.
type DeliveredFunc func(messageIDs []int)

// Feed is the ordered, append-only view of one conversation's messages.
// Live inserts are deduplicated by message id because the change feed
// delivers at least once, not exactly once.
type Feed struct {
	mu        sync.Mutex
	localID   int
	messages  []models.Message
	seen      map[int]struct{}
	delivered DeliveredFunc
}

// NewFeed creates an empty feed for the given local participant.
func NewFeed(localID int, delivered DeliveredFunc) *Feed {
	return &Feed{
		localID:   localID,
		seen:      make(map[int]struct{}),
		delivered: delivered,
	}
}

// Load merges a history query into the feed. The input is expected in
// ascending creation order; duplicates are dropped. Messages already
// applied live are kept in place, so a subscriber may join the room
// first and seed afterwards without losing the overlap window. On a
// fresh feed every remote message in the batch is reported through the
// delivered callback, so receipts missed earlier are re-issued
// implicitly on the next view.
func (f *Feed) Load(msgs []models.Message) {
	f.mu.Lock()
	var history []models.Message
	var remote []int
	for _, m := range msgs {
		if _, dup := f.seen[m.ID]; dup {
			continue
		}
		f.seen[m.ID] = struct{}{}
		history = append(history, m)
		if m.SenderID != f.localID {
			remote = append(remote, m.ID)
		}
	}
	// History precedes anything applied live during the seed window: live
	// arrivals are strictly newer than the snapshot they raced.
	f.messages = append(history, f.messages...)
	f.mu.Unlock()

	if len(remote) > 0 && f.delivered != nil {
		sort.Ints(remote)
		f.delivered(remote)
	}
}

// ApplyInsert appends a live message to the tail. Returns false when the
// message was already present (change-feed redelivery). Remote messages
// trigger a delivered intent.
func (f *Feed) ApplyInsert(msg models.Message) bool {
	f.mu.Lock()
	if _, dup := f.seen[msg.ID]; dup {
		f.mu.Unlock()
		return false
	}
	f.seen[msg.ID] = struct{}{}
	f.messages = append(f.messages, msg)
	remote := msg.SenderID != f.localID
	f.mu.Unlock()

	if remote && f.delivered != nil {
		f.delivered([]int{msg.ID})
	}
	return true
}

// ApplyUpdate replaces a message in place, keyed by id. Used for the
// attachment patch that lands after the insert; an update for a message
// not in the feed is dropped.
func (f *Feed) ApplyUpdate(msg models.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[msg.ID]; !ok {
		return false
	}
	for i := range f.messages {
		if f.messages[i].ID == msg.ID {
			f.messages[i] = msg
			return true
		}
	}
	return false
}

// Messages returns a copy of the current sequence.
func (f *Feed) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Len reports the number of messages in the feed.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}
