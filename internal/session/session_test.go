package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/models"
)

type recordingWriter struct {
	mu    sync.Mutex
	calls [][]int
	done  chan struct{}
}

func newRecordingWriter(expected int) *recordingWriter {
	return &recordingWriter{done: make(chan struct{}, expected)}
}

func (w *recordingWriter) MarkDelivered(_ context.Context, _ int, messageIDs []int, _ int) ([]models.Receipt, error) {
	w.mu.Lock()
	w.calls = append(w.calls, messageIDs)
	w.mu.Unlock()
	w.done <- struct{}{}
	return nil, nil
}

func (w *recordingWriter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivered write not issued")
	}
}

func TestSessionWritesDeliveredReceiptForRemoteInsert(t *testing.T) {
	writer := newRecordingWriter(1)
	sess := New(1, 10, writer, nil)

	sess.HandleEvent(models.ConversationEvent{
		Type:    models.EventMessage,
		Message: &models.Message{ID: 42, ConversationID: 1, SenderID: 20},
	})

	writer.wait(t)
	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Equal(t, [][]int{{42}}, writer.calls)
}

func TestSessionReceiptEventsFeedTheTracker(t *testing.T) {
	sess := New(1, 10, nil, nil)

	sess.HandleEvent(models.ConversationEvent{
		Type: models.EventReceipt,
		Receipts: []models.Receipt{
			{ConversationID: 1, MessageID: 5, ParticipantID: 20, Status: models.ReceiptDelivered},
			{ConversationID: 1, MessageID: 5, ParticipantID: 30, Status: models.ReceiptRead},
		},
	})

	assert.Equal(t, []int{20, 30}, sess.Tracker.DeliveredBy(5))
	assert.Equal(t, []int{30}, sess.Tracker.ReadBy(5))
}

func TestSessionTypingEventUpdatesPresence(t *testing.T) {
	var presence []string
	sess := New(1, 10, nil, func(s string) { presence = append(presence, s) })

	sess.HandleEvent(models.ConversationEvent{Type: models.EventTyping, From: 20, DisplayName: "Alice"})
	sess.HandleEvent(models.ConversationEvent{Type: models.EventTyping, From: 10, DisplayName: "me"})

	require.Equal(t, []string{"Alice is typing…"}, presence)
}

type fakeLoader struct {
	msgs     []models.Message
	receipts []models.Receipt
	msgErr   error
	rcptErr  error
}

func (l fakeLoader) ListMessages(context.Context, int) ([]models.Message, error) {
	return l.msgs, l.msgErr
}

func (l fakeLoader) ListReceipts(context.Context, int) ([]models.Receipt, error) {
	return l.receipts, l.rcptErr
}

func TestSessionSeedLoadsFeedAndTracker(t *testing.T) {
	sess := New(1, 10, nil, nil)

	err := sess.Seed(context.Background(), fakeLoader{
		msgs: []models.Message{
			{ID: 1, ConversationID: 1, SenderID: 10, Body: "hi"},
			{ID: 2, ConversationID: 1, SenderID: 20, Body: "hello"},
		},
		receipts: []models.Receipt{
			{ConversationID: 1, MessageID: 1, ParticipantID: 20, Status: models.ReceiptRead},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Feed.Len())
	assert.True(t, sess.Tracker.HasRead(1, 20))
}

func TestSessionSeedFailureLeavesFeedEmpty(t *testing.T) {
	sess := New(1, 10, nil, nil)

	err := sess.Seed(context.Background(), fakeLoader{msgErr: assert.AnError})
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Zero(t, sess.Feed.Len())

	err = sess.Seed(context.Background(), fakeLoader{rcptErr: assert.AnError})
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestSessionCloseStopsSweep(t *testing.T) {
	sess := New(1, 10, nil, nil)
	sess.Start(context.Background())
	sess.Close()
	// Closing twice is safe.
	sess.Close()
}
