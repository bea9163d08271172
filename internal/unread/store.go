// Package unread keeps per-participant unread counters with an explicit
// lifecycle and a subscribe interface for count snapshots.
package unread

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store counts unread messages per (participant, conversation). Counters
// live in a Redis hash per participant so they survive process restarts
// and are shared across instances.
type Store struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[int]map[chan map[int]int]struct{}
}

// NewStore constructs a Store on an existing Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{
		rdb:  rdb,
		subs: make(map[int]map[chan map[int]int]struct{}),
	}
}

func key(participantID int) string {
	return fmt.Sprintf("unread:%d", participantID)
}

// Increment bumps a participant's counter for one conversation and
// notifies subscribers.
func (s *Store) Increment(ctx context.Context, participantID, conversationID int) error {
	if err := s.rdb.HIncrBy(ctx, key(participantID), strconv.Itoa(conversationID), 1).Err(); err != nil {
		return err
	}
	s.notify(ctx, participantID)
	return nil
}

// Reset clears a participant's counter for one conversation and notifies
// subscribers. Resetting an absent counter is a no-op.
func (s *Store) Reset(ctx context.Context, participantID, conversationID int) error {
	if err := s.rdb.HDel(ctx, key(participantID), strconv.Itoa(conversationID)).Err(); err != nil {
		return err
	}
	s.notify(ctx, participantID)
	return nil
}

// Counts returns a participant's unread counts keyed by conversation id.
func (s *Store) Counts(ctx context.Context, participantID int) (map[int]int, error) {
	raw, err := s.rdb.HGetAll(ctx, key(participantID)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int, len(raw))
	for field, value := range raw {
		conversationID, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		counts[conversationID] = n
	}
	return counts, nil
}

// Subscribe registers for count snapshots of one participant. The
// returned cancel func must be called on teardown; after it returns the
// channel receives nothing further.
func (s *Store) Subscribe(participantID int) (<-chan map[int]int, func()) {
	ch := make(chan map[int]int, 1)

	s.mu.Lock()
	if _, ok := s.subs[participantID]; !ok {
		s.subs[participantID] = make(map[chan map[int]int]struct{})
	}
	s.subs[participantID][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.subs[participantID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(s.subs, participantID)
			}
		}
	}
	return ch, cancel
}

// Close drops all subscriptions. Counters stay in Redis.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[int]map[chan map[int]int]struct{})
}

func (s *Store) notify(ctx context.Context, participantID int) {
	s.mu.Lock()
	set := s.subs[participantID]
	if len(set) == 0 {
		s.mu.Unlock()
		return
	}
	channels := make([]chan map[int]int, 0, len(set))
	for ch := range set {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	counts, err := s.Counts(ctx, participantID)
	if err != nil {
		return
	}
	for _, ch := range channels {
		// Drop the stale snapshot if the subscriber has not consumed it;
		// only the latest matters.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- counts:
		default:
		}
	}
}
