package session

import (
	"sort"
	"sync"

	"conversation-service/internal/models"
)

// Tracker mirrors the receipt ledger for one conversation: per message,
// the set of participants that delivered it and the set that read it. The
// two sets are tracked independently, exactly as the ledger emits them;
// read membership is never inferred locally and never removed.
type Tracker struct {
	mu        sync.Mutex
	byMessage map[int]*messageReceipts
}

type messageReceipts struct {
	delivered map[int]struct{}
	read      map[int]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{byMessage: make(map[int]*messageReceipts)}
}

// Record applies one receipt event. Idempotent: replaying an event is a
// no-op. Monotonic: a delivered event never touches read membership, so a
// participant already at read stays at read. Returns true when state
// changed.
func (t *Tracker) Record(messageID, participantID int, status models.ReceiptStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.byMessage[messageID]
	if !ok {
		state = &messageReceipts{
			delivered: make(map[int]struct{}),
			read:      make(map[int]struct{}),
		}
		t.byMessage[messageID] = state
	}

	switch status {
	case models.ReceiptRead:
		if _, exists := state.read[participantID]; exists {
			return false
		}
		state.read[participantID] = struct{}{}
		return true
	case models.ReceiptDelivered:
		if _, exists := state.delivered[participantID]; exists {
			return false
		}
		state.delivered[participantID] = struct{}{}
		return true
	}
	return false
}

// HasDelivered reports delivered-set membership. Read membership counts as
// delivered: read implies the message arrived.
func (t *Tracker) HasDelivered(messageID, participantID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.byMessage[messageID]
	if !ok {
		return false
	}
	if _, exists := state.read[participantID]; exists {
		return true
	}
	_, exists := state.delivered[participantID]
	return exists
}

// HasRead reports read-set membership.
func (t *Tracker) HasRead(messageID, participantID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.byMessage[messageID]
	if !ok {
		return false
	}
	_, exists := state.read[participantID]
	return exists
}

// ReadBy returns the sorted participant ids that read a message.
func (t *Tracker) ReadBy(messageID int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.byMessage[messageID]
	if !ok {
		return nil
	}
	ids := make([]int, 0, len(state.read))
	for id := range state.read {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// DeliveredBy returns the sorted participant ids that delivered a message,
// including those that moved on to read.
func (t *Tracker) DeliveredBy(messageID int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.byMessage[messageID]
	if !ok {
		return nil
	}
	set := make(map[int]struct{}, len(state.delivered)+len(state.read))
	for id := range state.delivered {
		set[id] = struct{}{}
	}
	for id := range state.read {
		set[id] = struct{}{}
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
