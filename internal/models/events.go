package models

// TranscriptPartial represents an interim transcript surfaced while a
// real-time session is in progress.
type TranscriptPartial struct {
	EventType   string `json:"eventType"`
	RecordingID string `json:"recordingId"`
	UserID      string `json:"userId"`
	SessionID   string `json:"sessionId"`
	Timestamp   int64  `json:"timestamp"`
	Text        string `json:"text"`
}

// RecordingLifecycle represents a recording reaching a new status. Emitted
// for every transition; terminal events additionally carry the transcript
// outcome or failure reason.
type RecordingLifecycle struct {
	EventType   string  `json:"eventType"`
	RecordingID string  `json:"recordingId"`
	UserID      string  `json:"userId"`
	Timestamp   int64   `json:"timestamp"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	Confidence  float64 `json:"confidence,omitempty"`
	Transcript  string  `json:"transcript,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}
