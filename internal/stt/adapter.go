// Package stt defines the interface for speech-to-text providers, batch
// and streaming variants.
package stt

import (
	"context"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
)

// JobHandle identifies a submitted batch transcription job.
type JobHandle string

// BatchTranscriber submits whole recordings and polls for results. The
// provider fetches audio through the blob reference; the core never
// proxies bytes.
type BatchTranscriber interface {
	// SubmitBatch starts an asynchronous transcription of the referenced
	// blob and returns a handle to poll.
	SubmitBatch(ctx context.Context, ref store.BlobRef, lang models.Language) (JobHandle, error)

	// PollResult reports the job's outcome. done is false while the job
	// is still running.
	PollResult(ctx context.Context, handle JobHandle) (result *models.TranscriptionResult, done bool, err error)
}

// Callback receives transcript results from a streaming session.
type Callback interface {
	// OnPartial is called when an interim/partial transcript is received.
	OnPartial(text string)

	// OnFinal is called when a pause boundary finalizes the segment.
	OnFinal(result *models.TranscriptionResult)

	// OnError is called when an error occurs during transcription.
	OnError(err error)
}

// StreamTranscriber is the streaming variant: audio in, a sequence of
// partial-text events terminated by one final event out.
type StreamTranscriber interface {
	// Start begins a streaming transcription session.
	Start(ctx context.Context, lang models.Language, cb Callback) error

	// SendAudio sends audio bytes to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}
