package gateway

import (
	"time"

	"arcana-reading-server/internal/domain/event"
)

// Envelope is the wire form of every outbound message.
type Envelope struct {
	Type      event.Type  `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	SessionID string      `json:"sessionId,omitempty"`
	JobID     string      `json:"jobId,omitempty"`
}

func envelope(sessionID string, ev event.Event) Envelope {
	return Envelope{
		Type:      ev.EventType(),
		Data:      ev,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		JobID:     ev.JobRef(),
	}
}
