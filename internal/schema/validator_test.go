package schema

import (
	"testing"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
)

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		event   any
		wantErr bool
	}{
		{
			name: "valid partial",
			event: models.TranscriptPartial{
				EventType:   "transcript.partial",
				RecordingID: "rec-1",
				SessionID:   "sess-1",
				Text:        "namaste",
			},
			wantErr: false,
		},
		{
			name: "partial missing session",
			event: models.TranscriptPartial{
				EventType:   "transcript.partial",
				RecordingID: "rec-1",
			},
			wantErr: true,
		},
		{
			name: "valid lifecycle",
			event: models.RecordingLifecycle{
				EventType:   "recording.completed",
				RecordingID: "rec-1",
				Status:      "COMPLETED",
			},
			wantErr: false,
		},
		{
			name: "lifecycle missing status",
			event: models.RecordingLifecycle{
				EventType:   "recording.completed",
				RecordingID: "rec-1",
			},
			wantErr: true,
		},
		{
			name:    "unknown payloads pass through",
			event:   struct{ X int }{X: 1},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
