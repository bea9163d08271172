package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/models"
)

type fakeMedia struct {
	offer        json.RawMessage
	answer       json.RawMessage
	candidateErr error
	applied      []string
	closed       bool
}

func (m *fakeMedia) CreateOffer(context.Context) (json.RawMessage, error) {
	return m.offer, nil
}

func (m *fakeMedia) ApplyRemoteOffer(_ context.Context, _ json.RawMessage) error {
	m.applied = append(m.applied, "offer")
	return nil
}

func (m *fakeMedia) CreateAnswer(context.Context) (json.RawMessage, error) {
	return m.answer, nil
}

func (m *fakeMedia) ApplyRemoteAnswer(_ context.Context, _ json.RawMessage) error {
	m.applied = append(m.applied, "answer")
	return nil
}

func (m *fakeMedia) AddCandidate(_ context.Context, _ json.RawMessage) error {
	m.applied = append(m.applied, "candidate")
	return m.candidateErr
}

func (m *fakeMedia) Close() error {
	m.closed = true
	return nil
}

type fakeSender struct {
	sent []models.ConversationEvent
	err  error
}

func (s *fakeSender) SendSignal(_ context.Context, ev models.ConversationEvent) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, ev)
	return nil
}

func mediaFactory(m *fakeMedia) MediaFactory {
	return func(context.Context) (MediaSession, error) { return m, nil }
}

func TestCallOfferAnswerHandshake(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{offer: json.RawMessage(`{"sdp":"o"}`)}
	sender := &fakeSender{}
	call := NewCall(1, mediaFactory(media), sender)

	require.NoError(t, call.Initiate(ctx, 2))
	require.Equal(t, CallOfferSent, call.State())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, models.EventOffer, sender.sent[0].Type)
	assert.Equal(t, 1, sender.sent[0].From)
	assert.Equal(t, 2, sender.sent[0].To)

	answer := models.ConversationEvent{Type: models.EventAnswer, From: 2, To: 1, Payload: json.RawMessage(`{"sdp":"a"}`)}
	require.NoError(t, call.HandleSignal(ctx, answer))
	assert.Equal(t, CallConnected, call.State())
	assert.Equal(t, []string{"answer"}, media.applied)
}

func TestCallAnswerInIdleIsIgnored(t *testing.T) {
	call := NewCall(1, mediaFactory(&fakeMedia{}), &fakeSender{})

	ev := models.ConversationEvent{Type: models.EventAnswer, From: 2, To: 1}
	require.NoError(t, call.HandleSignal(context.Background(), ev))
	// No spurious transition out of idle.
	assert.Equal(t, CallIdle, call.State())
}

func TestCallCalleeAnswersOffer(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{answer: json.RawMessage(`{"sdp":"a"}`)}
	sender := &fakeSender{}
	call := NewCall(2, mediaFactory(media), sender)

	offer := models.ConversationEvent{Type: models.EventOffer, From: 1, To: 2, Payload: json.RawMessage(`{"sdp":"o"}`)}
	require.NoError(t, call.HandleSignal(ctx, offer))

	assert.Equal(t, CallAnswerSent, call.State())
	assert.Equal(t, 1, call.Remote())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, models.EventAnswer, sender.sent[0].Type)
	assert.Equal(t, 1, sender.sent[0].To)
}

func TestCallIgnoresFramesForOthers(t *testing.T) {
	ctx := context.Background()
	call := NewCall(3, mediaFactory(&fakeMedia{}), &fakeSender{})

	// Addressed to participant 2 on the shared conversation channel.
	offer := models.ConversationEvent{Type: models.EventOffer, From: 1, To: 2}
	require.NoError(t, call.HandleSignal(ctx, offer))
	assert.Equal(t, CallIdle, call.State())

	// Own frame echoed back.
	own := models.ConversationEvent{Type: models.EventOffer, From: 3, To: 2}
	require.NoError(t, call.HandleSignal(ctx, own))
	assert.Equal(t, CallIdle, call.State())
}

func TestCallCandidateErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{offer: json.RawMessage(`{}`), candidateErr: errors.New("stale candidate")}
	call := NewCall(1, mediaFactory(media), &fakeSender{})
	require.NoError(t, call.Initiate(ctx, 2))

	cand := models.ConversationEvent{Type: models.EventCandidate, From: 2, To: 1, Payload: json.RawMessage(`{}`)}
	require.NoError(t, call.HandleSignal(ctx, cand))
	assert.Equal(t, CallOfferSent, call.State())
}

func TestCallByeClosesMedia(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{offer: json.RawMessage(`{}`)}
	call := NewCall(1, mediaFactory(media), &fakeSender{})
	require.NoError(t, call.Initiate(ctx, 2))

	bye := models.ConversationEvent{Type: models.EventBye, From: 2, To: 1}
	require.NoError(t, call.HandleSignal(ctx, bye))

	assert.Equal(t, CallClosed, call.State())
	assert.True(t, media.closed)
}

func TestCallMediaAcquisitionFailure(t *testing.T) {
	failing := func(context.Context) (MediaSession, error) {
		return nil, errors.New("no microphone")
	}
	call := NewCall(1, failing, &fakeSender{})

	err := call.Initiate(context.Background(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMediaAcquisitionFailed)
	assert.Equal(t, CallIdle, call.State())
}

func TestCallTerminateSendsSingleBye(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{offer: json.RawMessage(`{}`)}
	sender := &fakeSender{}
	call := NewCall(1, mediaFactory(media), sender)
	require.NoError(t, call.Initiate(ctx, 2))

	call.Terminate(ctx)

	assert.Equal(t, CallClosed, call.State())
	assert.True(t, media.closed)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, models.EventBye, sender.sent[1].Type)

	// Terminating again is a no-op: no second bye.
	call.Terminate(ctx)
	assert.Len(t, sender.sent, 2)
}

func TestCallSecondOfferWhileBusyIsDropped(t *testing.T) {
	ctx := context.Background()
	media := &fakeMedia{answer: json.RawMessage(`{}`)}
	sender := &fakeSender{}
	call := NewCall(2, mediaFactory(media), sender)

	first := models.ConversationEvent{Type: models.EventOffer, From: 1, To: 2, Payload: json.RawMessage(`{}`)}
	require.NoError(t, call.HandleSignal(ctx, first))
	require.Equal(t, CallAnswerSent, call.State())

	second := models.ConversationEvent{Type: models.EventOffer, From: 5, To: 2, Payload: json.RawMessage(`{}`)}
	require.NoError(t, call.HandleSignal(ctx, second))

	assert.Equal(t, CallAnswerSent, call.State())
	assert.Equal(t, 1, call.Remote())
	assert.Len(t, sender.sent, 1)
}
