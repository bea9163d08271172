package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// TypingExpiry is the inactivity window after which a typing entry is
	// pruned. Typing is a lease: senders renew it by repeating the event,
	// so expiry gives "stopped typing" without an explicit stop signal.
	TypingExpiry = 3 * time.Second

	// SweepInterval is how often the prune pass runs.
	SweepInterval = 1500 * time.Millisecond

	// ReadDwell is the recommended debounce before a visible message is
	// marked read, so fast scroll-past does not produce spurious receipts.
	ReadDwell = 500 * time.Millisecond
)

type typingEntry struct {
	displayName string
	lastSeenAt  time.Time
}

// Aggregator projects ephemeral typing events into a live "who is typing"
// set for one conversation. Nothing here is persisted or read back from
// the backend.
type Aggregator struct {
	mu       sync.Mutex
	localID  int
	entries  map[int]typingEntry
	onChange func(summary string)
}

// NewAggregator creates an aggregator for the given local participant.
// onChange, if set, receives the rendered summary whenever the live set
// changes.
func NewAggregator(localID int, onChange func(string)) *Aggregator {
	return &Aggregator{
		localID:  localID,
		entries:  make(map[int]typingEntry),
		onChange: onChange,
	}
}

// Observe applies one typing event. Events from the local participant are
// ignored; others insert or refresh the lease.
func (a *Aggregator) Observe(participantID int, displayName string, now time.Time) {
	if participantID == a.localID {
		return
	}
	a.mu.Lock()
	_, existed := a.entries[participantID]
	a.entries[participantID] = typingEntry{displayName: displayName, lastSeenAt: now}
	summary := a.summaryLocked()
	a.mu.Unlock()

	if !existed {
		a.notify(summary)
	}
}

// Sweep prunes entries idle longer than TypingExpiry and returns how many
// were removed.
func (a *Aggregator) Sweep(now time.Time) int {
	a.mu.Lock()
	removed := 0
	for id, entry := range a.entries {
		if now.Sub(entry.lastSeenAt) > TypingExpiry {
			delete(a.entries, id)
			removed++
		}
	}
	summary := a.summaryLocked()
	a.mu.Unlock()

	if removed > 0 {
		a.notify(summary)
	}
	return removed
}

// Summary renders the current live set as display text. Pure function of
// current state; empty when nobody is typing.
func (a *Aggregator) Summary() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

func (a *Aggregator) summaryLocked() string {
	if len(a.entries) == 0 {
		return ""
	}
	names := make([]string, 0, len(a.entries))
	for _, entry := range a.entries {
		names = append(names, entry.displayName)
	}
	sort.Strings(names)

	switch len(names) {
	case 1:
		return names[0] + " is typing…"
	case 2:
		return names[0] + " and " + names[1] + " are typing…"
	default:
		return fmt.Sprintf("%s, %s and %d others are typing…", names[0], names[1], len(names)-2)
	}
}

// Run drives Sweep on a fixed interval until the context is cancelled.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.Sweep(now)
		}
	}
}

func (a *Aggregator) notify(summary string) {
	if a.onChange != nil {
		a.onChange(summary)
	}
}
