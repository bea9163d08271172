package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"conversation-service/internal/mocks"
	"conversation-service/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.conversation-service", "conversation-service", "test")

	participantID := int64(7)
	publisher.On("Publish", mock.Anything, "audit.conversation-service", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(telemetry.AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.SchemaVersion == 1 &&
			envelope.EventType == "audit_log" &&
			envelope.Service == "conversation-service" &&
			envelope.Environment == "test" &&
			envelope.RequestID == "req-1" &&
			envelope.ParticipantID != nil && *envelope.ParticipantID == 7 &&
			envelope.Payload.Level == "INFO" &&
			envelope.Payload.Text == "message created" &&
			envelope.OccurredAt != ""
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "message created", "req-1", &participantID)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterPublishErrorSwallowed(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.conversation-service", "conversation-service", "test")

	publisher.On("Publish", mock.Anything, "audit.conversation-service", mock.Anything).
		Return(assert.AnError).Once()

	// Audit is best-effort; a broker failure never reaches the caller.
	emitter.Emit(context.Background(), "ERROR", "message store failed", "req-2", nil)

	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	publisher := new(mocks.PublisherMock)

	var emitter *telemetry.AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "req-3", nil)

	telemetry.NewAuditEmitter(nil, "k", "s", "e").Emit(context.Background(), "INFO", "ignored", "req-4", nil)

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
