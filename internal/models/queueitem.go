package models

import "time"

// QueueItem is the scheduling-facing projection of a Recording used for
// oldest-first batch selection. It is keyed by (status, capturedAt,
// recordingId) in the durable store so status scans come back in capture
// order. It carries scheduling metadata that is irrelevant once the
// recording reaches a terminal state and may be pruned independently
// via the store's TTL field.
type QueueItem struct {
	RecordingID string `json:"recordingId" dynamodbav:"recording_id"`
	UserID      string `json:"userId" dynamodbav:"user_id"`
	Status      Status `json:"status" dynamodbav:"status"`

	// QueuedAt is the capture timestamp, not the wall-clock insert time.
	// FIFO ordering is defined solely by capture time, so a recording
	// captured earlier is scheduled first even if it reached the queue
	// later (e.g. after a network outage).
	QueuedAt time.Time `json:"queuedAt" dynamodbav:"queued_at,unixtime"`

	Attempts  int    `json:"attempts" dynamodbav:"attempts"`
	LastError string `json:"lastError,omitempty" dynamodbav:"last_error,omitempty"`

	// ExpiresAt is the TTL epoch seconds set once the item turns terminal.
	ExpiresAt int64 `json:"expiresAt,omitempty" dynamodbav:"expires_at,omitempty"`

	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updated_at,unixtime"`
}

// ItemFor projects a Recording into its queue item.
func ItemFor(rec *Recording) *QueueItem {
	return &QueueItem{
		RecordingID: rec.RecordingID,
		UserID:      rec.UserID,
		Status:      rec.Status,
		QueuedAt:    rec.CapturedAt,
		Attempts:    rec.RetryCount,
		UpdatedAt:   rec.UpdatedAt,
	}
}
