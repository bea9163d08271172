package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"conversation-service/internal/models"
)

// CallState is the media negotiation state of a two-party audio call.
type CallState int

const (
	CallIdle CallState = iota
	CallOfferSent
	CallOfferReceived
	CallAnswerSent
	CallConnected
	CallClosed
)

func (s CallState) String() string {
	switch s {
	case CallIdle:
		return "idle"
	case CallOfferSent:
		return "offer-sent"
	case CallOfferReceived:
		return "offer-received"
	case CallAnswerSent:
		return "answer-sent"
	case CallConnected:
		return "connected"
	case CallClosed:
		return "closed"
	}
	return "unknown"
}

// MediaSession abstracts the local audio and peer-connection stack.
type MediaSession interface {
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	ApplyRemoteOffer(ctx context.Context, offer json.RawMessage) error
	CreateAnswer(ctx context.Context) (json.RawMessage, error)
	ApplyRemoteAnswer(ctx context.Context, answer json.RawMessage) error
	AddCandidate(ctx context.Context, candidate json.RawMessage) error
	Close() error
}

// MediaFactory acquires local audio and returns a fresh media session.
type MediaFactory func(ctx context.Context) (MediaSession, error)

// SignalSender publishes a signaling frame on the conversation's broadcast
// channel.
type SignalSender interface {
	SendSignal(ctx context.Context, event models.ConversationEvent) error
}

// Call coordinates one peer-to-peer audio call over the shared,
// conversation-scoped broadcast channel. Nothing is persisted; losing the
// bye signal means the far side stays up until manually closed. Concurrent
// call attempts in one conversation are not disambiguated: a second offer
// arriving while non-idle is dropped.
type Call struct {
	mu      sync.Mutex
	self    int
	remote  int
	state   CallState
	media   MediaSession
	acquire MediaFactory
	send    SignalSender
}

// NewCall creates an idle call for the local participant.
func NewCall(self int, acquire MediaFactory, send SignalSender) *Call {
	return &Call{self: self, acquire: acquire, send: send}
}

// State returns the current negotiation state.
func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remote returns the far participant id, zero until resolved.
func (c *Call) Remote() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Initiate starts the caller side: acquire audio, create the offer,
// broadcast it addressed to the target. Failures abort the call and
// surface to the caller; there is no automatic retry for signaling.
func (c *Call) Initiate(ctx context.Context, target int) error {
	c.mu.Lock()
	if c.state != CallIdle {
		c.mu.Unlock()
		return fmt.Errorf("call already in state %s", c.state)
	}

	media, err := c.acquire(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMediaAcquisitionFailed, err)
	}

	offer, err := media.CreateOffer(ctx)
	if err != nil {
		media.Close()
		c.mu.Unlock()
		return fmt.Errorf("create offer: %w", err)
	}

	c.media = media
	c.remote = target
	c.state = CallOfferSent
	c.mu.Unlock()

	ev := models.ConversationEvent{Type: models.EventOffer, From: c.self, To: target, Payload: offer}
	if err := c.send.SendSignal(ctx, ev); err != nil {
		c.abort()
		return fmt.Errorf("send offer: %w", err)
	}
	return nil
}

// HandleSignal applies one frame from the shared channel. Frames sent by
// the local participant or addressed to someone else are ignored.
func (c *Call) HandleSignal(ctx context.Context, ev models.ConversationEvent) error {
	if ev.From == c.self {
		return nil
	}
	if ev.To != 0 && ev.To != c.self {
		return nil
	}

	switch ev.Type {
	case models.EventOffer:
		return c.handleOffer(ctx, ev)
	case models.EventAnswer:
		return c.handleAnswer(ctx, ev)
	case models.EventCandidate:
		c.handleCandidate(ctx, ev)
		return nil
	case models.EventBye:
		c.handleBye()
		return nil
	}
	return nil
}

func (c *Call) handleOffer(ctx context.Context, ev models.ConversationEvent) error {
	c.mu.Lock()
	if c.state != CallIdle {
		c.mu.Unlock()
		return nil
	}

	media, err := c.acquire(ctx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMediaAcquisitionFailed, err)
	}

	if err := media.ApplyRemoteOffer(ctx, ev.Payload); err != nil {
		media.Close()
		c.mu.Unlock()
		return fmt.Errorf("apply offer: %w", err)
	}

	answer, err := media.CreateAnswer(ctx)
	if err != nil {
		media.Close()
		c.mu.Unlock()
		return fmt.Errorf("create answer: %w", err)
	}

	c.media = media
	c.remote = ev.From
	c.state = CallAnswerSent
	c.mu.Unlock()

	reply := models.ConversationEvent{Type: models.EventAnswer, From: c.self, To: ev.From, Payload: answer}
	if err := c.send.SendSignal(ctx, reply); err != nil {
		c.abort()
		return fmt.Errorf("send answer: %w", err)
	}
	return nil
}

func (c *Call) handleAnswer(ctx context.Context, ev models.ConversationEvent) error {
	c.mu.Lock()
	// Only valid while an offer is outstanding; an answer in any other
	// state (idle included) causes no transition.
	if c.state != CallOfferSent || ev.From != c.remote {
		c.mu.Unlock()
		return nil
	}
	media := c.media
	c.mu.Unlock()

	if err := media.ApplyRemoteAnswer(ctx, ev.Payload); err != nil {
		c.abort()
		return fmt.Errorf("apply answer: %w", err)
	}

	c.mu.Lock()
	if c.state == CallOfferSent {
		c.state = CallConnected
	}
	c.mu.Unlock()
	return nil
}

func (c *Call) handleCandidate(ctx context.Context, ev models.ConversationEvent) {
	c.mu.Lock()
	media := c.media
	c.mu.Unlock()
	if media == nil {
		return
	}
	// Candidate failures are non-fatal; some are expected to fail or
	// arrive late.
	if err := media.AddCandidate(ctx, ev.Payload); err != nil {
		log.Printf("ice candidate dropped: %v", err)
	}
}

func (c *Call) handleBye() {
	c.mu.Lock()
	media := c.media
	c.media = nil
	c.state = CallClosed
	c.mu.Unlock()
	if media != nil {
		media.Close()
	}
}

// SendCandidate broadcasts a locally discovered ICE candidate addressed to
// the remote peer.
func (c *Call) SendCandidate(ctx context.Context, candidate json.RawMessage) error {
	c.mu.Lock()
	remote := c.remote
	state := c.state
	c.mu.Unlock()
	if state == CallIdle || state == CallClosed || remote == 0 {
		return nil
	}
	ev := models.ConversationEvent{Type: models.EventCandidate, From: c.self, To: remote, Payload: candidate}
	return c.send.SendSignal(ctx, ev)
}

// Terminate broadcasts a single bye, best-effort, and closes local media.
// There is no negotiated shutdown beyond that one signal.
func (c *Call) Terminate(ctx context.Context) {
	c.mu.Lock()
	remote := c.remote
	state := c.state
	c.mu.Unlock()

	if state != CallIdle && state != CallClosed {
		ev := models.ConversationEvent{Type: models.EventBye, From: c.self, To: remote}
		if err := c.send.SendSignal(ctx, ev); err != nil {
			log.Printf("bye signal lost: %v", err)
		}
	}
	c.handleBye()
}

func (c *Call) abort() {
	c.handleBye()
}
