package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies one websocket connection for observability.
type ConnInfo struct {
	ConnID        string
	ParticipantID int
	DisplayName   string
	DeviceID      string
	IP            string
	RequestID     string
	TraceID       string
	ConnectedAt   time.Time
}

func newConnID() string {
	return uuid.NewString()
}
