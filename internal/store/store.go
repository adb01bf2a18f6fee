// Package store defines the durable store and blob store contracts the
// orchestration core depends on. Any backend offering key-value semantics
// with conditional writes, a status-ordered scan and a TTL field satisfies
// DurableStore; the core assumes nothing beyond read-after-write
// consistency on a single key.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
)

var (
	// ErrNotFound - no record exists for the given key.
	ErrNotFound = errors.New("record not found")
	// ErrKeyExists - a conditional insert lost to an existing record.
	ErrKeyExists = errors.New("key already exists")
	// ErrConditionFailed - a conditional update lost an optimistic race.
	ErrConditionFailed = errors.New("conditional update failed")
	// ErrBlobExists - re-upload attempted for a key already written.
	// Blob locations are write-once; conflicts are rejected, not overwritten.
	ErrBlobExists = errors.New("blob already exists")
)

// DurableStore is the single source of truth for recording state.
type DurableStore interface {
	// PutRecording inserts a new recording. Fails with ErrKeyExists if the
	// recordingId is already present.
	PutRecording(ctx context.Context, rec *models.Recording) error

	// GetRecording returns the recording for id or ErrNotFound.
	GetRecording(ctx context.Context, id string) (*models.Recording, error)

	// UpdateRecording persists rec conditioned on the stored status still
	// being expectStatus. Fails with ErrConditionFailed if another writer
	// got there first. The condition makes PENDING→PROCESSING claims
	// atomic across concurrent workers.
	UpdateRecording(ctx context.Context, rec *models.Recording, expectStatus models.Status) error

	// QueryByStatus returns up to limit queue items in the given status,
	// ordered ascending by capture timestamp, ties broken by recordingId.
	QueryByStatus(ctx context.Context, status models.Status, limit int) ([]*models.QueueItem, error)

	// ExpireItem stamps the queue item's TTL so terminal items age out of
	// the scheduling index after the retention window.
	ExpireItem(ctx context.Context, id string, expiresAt time.Time) error
}

// BlobRef is a time-bounded access reference to a stored blob, usable by
// the transcription capability to fetch audio without the core proxying
// bytes.
type BlobRef struct {
	Location models.BlobLocation
	URL      string
	Expires  time.Time
}

// BlobStore holds captured audio bytes.
type BlobStore interface {
	// Put uploads audio under key. Write-once: a second put for the same
	// key fails with ErrBlobExists.
	Put(ctx context.Context, key string, data []byte) (models.BlobLocation, error)

	// Presign returns a revocable access reference valid for the given
	// window.
	Presign(ctx context.Context, loc models.BlobLocation, window time.Duration) (BlobRef, error)
}
