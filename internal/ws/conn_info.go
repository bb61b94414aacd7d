package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo is the identity recorded for one live connection.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
