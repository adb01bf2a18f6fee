package models

import (
	"errors"
	"testing"
	"time"
)

func validMeta() AudioMeta {
	return AudioMeta{
		DurationSec:  12.5,
		SampleRateHz: 16000,
		Channels:     1,
		Format:       FormatWAV,
	}
}

func TestAudioMeta_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AudioMeta)
		wantErr error
	}{
		{"valid", func(m *AudioMeta) {}, nil},
		{"sample rate at boundary", func(m *AudioMeta) { m.SampleRateHz = 8000 }, nil},
		{"sample rate below 8000", func(m *AudioMeta) { m.SampleRateHz = 7999 }, ErrSampleRateTooLow},
		{"zero duration", func(m *AudioMeta) { m.DurationSec = 0 }, ErrNonPositiveLength},
		{"negative duration", func(m *AudioMeta) { m.DurationSec = -1 }, ErrNonPositiveLength},
		{"unknown format", func(m *AudioMeta) { m.Format = "aiff" }, ErrUnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMeta()
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewRecording_Defaults(t *testing.T) {
	captured := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	rec, err := NewRecording("user-1", captured, validMeta(), LanguageHindi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.RecordingID == "" {
		t.Error("expected generated recording ID")
	}
	if rec.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", rec.Status)
	}
	if rec.RetryCount != 0 {
		t.Errorf("expected retry count 0, got %d", rec.RetryCount)
	}
	if !rec.CapturedAt.Equal(captured) {
		t.Errorf("expected capture time preserved, got %v", rec.CapturedAt)
	}
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		t.Error("updatedAt must not precede createdAt")
	}
	if !rec.Blob.IsZero() {
		t.Error("expected no blob location before upload")
	}
}

func TestNewRecording_RejectsInvalidInput(t *testing.T) {
	captured := time.Now()

	if _, err := NewRecording("u", captured, AudioMeta{DurationSec: 1, SampleRateHz: 4000, Format: FormatWAV}, LanguageHindi); err == nil {
		t.Error("expected error for low sample rate")
	}
	if _, err := NewRecording("u", captured, validMeta(), "fr-FR"); !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("expected ErrUnknownLanguage, got %v", err)
	}
}

func TestNewRecordingID_Unique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	ids := make(chan string, n)

	for i := 0; i < n/100; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				ids <- NewRecordingID()
			}
		}()
	}

	for i := 0; i < n; i++ {
		id := <-ids
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate recording ID generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestTranscriptionResult_Validate(t *testing.T) {
	words := []WordDetail{
		{Word: "namaste", StartOffset: 0, EndOffset: 400 * time.Millisecond, Confidence: 0.9},
		{Word: "india", StartOffset: 500 * time.Millisecond, EndOffset: 900 * time.Millisecond, Confidence: 0.8},
	}

	tests := []struct {
		name    string
		result  TranscriptionResult
		wantErr bool
	}{
		{"valid", TranscriptionResult{Transcript: "namaste india", Confidence: 0.85, Words: words}, false},
		{"no words", TranscriptionResult{Transcript: "x", Confidence: 0.5}, false},
		{"confidence above 1", TranscriptionResult{Confidence: 1.2}, true},
		{"unordered words", TranscriptionResult{Confidence: 0.9, Words: []WordDetail{words[1], words[0]}}, true},
		{"end before start", TranscriptionResult{Confidence: 0.9, Words: []WordDetail{
			{Word: "x", StartOffset: time.Second, EndOffset: 0, Confidence: 0.9},
		}}, true},
		{"missing word text", TranscriptionResult{Confidence: 0.9, Words: []WordDetail{
			{StartOffset: 0, EndOffset: time.Second, Confidence: 0.9},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestItemFor_ProjectsCaptureTime(t *testing.T) {
	captured := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rec, err := NewRecording("user-1", captured, validMeta(), LanguageMarathi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := ItemFor(rec)
	if !item.QueuedAt.Equal(captured) {
		t.Errorf("queuedAt must be the capture timestamp, got %v", item.QueuedAt)
	}
	if item.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", item.Status)
	}
}
