package events

import (
	"context"
	"testing"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
)

func TestNewDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{
			name: "explicitly disabled",
			cfg: &Config{
				Brokers:        []string{"localhost:9092"},
				TopicPartial:   "bolbharat.transcripts.partial",
				TopicLifecycle: "bolbharat.recordings.lifecycle",
				Enabled:        false,
			},
		},
		{
			name: "no brokers",
			cfg: &Config{
				TopicPartial:   "bolbharat.transcripts.partial",
				TopicLifecycle: "bolbharat.recordings.lifecycle",
				Enabled:        true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerPartial != nil || p.writerLifecycle != nil {
				t.Error("expected no writers in log-only mode")
			}
		})
	}
}

func TestNewEnabled(t *testing.T) {
	cfg := &Config{
		Brokers:        []string{"localhost:9092"},
		TopicPartial:   "bolbharat.transcripts.partial",
		TopicLifecycle: "bolbharat.recordings.lifecycle",
		Principal:      "svc-recording-orchestrator",
		Enabled:        true,
	}
	p := New(cfg)
	defer p.Close()

	if !p.enabled {
		t.Error("expected publisher to be enabled")
	}
	if p.writerPartial == nil || p.writerLifecycle == nil {
		t.Error("expected writers to be configured")
	}
	if p.principal != "svc-recording-orchestrator" {
		t.Errorf("principal = %q", p.principal)
	}
}

func TestPublishLogOnly(t *testing.T) {
	p := New(nil)

	event := models.RecordingLifecycle{
		EventType:   "recording.completed",
		RecordingID: "rec-1",
		Status:      "COMPLETED",
	}
	if err := p.PublishLifecycle(context.Background(), "rec-1", event); err != nil {
		t.Fatalf("PublishLifecycle: %v", err)
	}

	partial := models.TranscriptPartial{
		EventType:   "transcript.partial",
		RecordingID: "rec-1",
		SessionID:   "sess-1",
		Text:        "नमस्ते",
	}
	if err := p.PublishPartial(context.Background(), "sess-1", partial); err != nil {
		t.Fatalf("PublishPartial: %v", err)
	}
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	p := New(nil)

	event := models.RecordingLifecycle{
		EventType: "recording.completed",
		// RecordingID missing
		Status: "COMPLETED",
	}
	if err := p.PublishLifecycle(context.Background(), "", event); err == nil {
		t.Fatal("expected validation error for event missing recordingId")
	}
}

func TestCloseDisabled(t *testing.T) {
	p := New(nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
