// Package memory provides in-process DurableStore and BlobStore
// implementations with the same conditional-write semantics as the
// DynamoDB backend. Used for local development (STORE_DRIVER=memory)
// and tests, the way the mock STT provider stands in for Google.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
)

// Store implements store.DurableStore in memory. Thread-safe.
type Store struct {
	mu         sync.Mutex
	recordings map[string]models.Recording
	items      map[string]models.QueueItem
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		recordings: make(map[string]models.Recording),
		items:      make(map[string]models.QueueItem),
	}
}

// PutRecording inserts a new recording and its queue item projection.
func (s *Store) PutRecording(ctx context.Context, rec *models.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.recordings[rec.RecordingID]; exists {
		return fmt.Errorf("recording %s: %w", rec.RecordingID, store.ErrKeyExists)
	}
	s.recordings[rec.RecordingID] = *rec
	s.items[rec.RecordingID] = *models.ItemFor(rec)
	return nil
}

// GetRecording returns a copy of the stored recording.
func (s *Store) GetRecording(ctx context.Context, id string) (*models.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recordings[id]
	if !ok {
		return nil, fmt.Errorf("recording %s: %w", id, store.ErrNotFound)
	}
	out := rec
	return &out, nil
}

// UpdateRecording persists rec if the stored status still matches
// expectStatus, mirroring a DynamoDB conditional write.
func (s *Store) UpdateRecording(ctx context.Context, rec *models.Recording, expectStatus models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.recordings[rec.RecordingID]
	if !ok {
		return fmt.Errorf("recording %s: %w", rec.RecordingID, store.ErrNotFound)
	}
	if cur.Status != expectStatus {
		return fmt.Errorf("recording %s: status is %s, expected %s: %w",
			rec.RecordingID, cur.Status, expectStatus, store.ErrConditionFailed)
	}

	s.recordings[rec.RecordingID] = *rec

	item := s.items[rec.RecordingID]
	item.Status = rec.Status
	item.Attempts = rec.RetryCount
	item.LastError = rec.LastError
	item.UpdatedAt = rec.UpdatedAt
	s.items[rec.RecordingID] = item
	return nil
}

// QueryByStatus returns up to limit items in capture order, recordingId
// breaking ties for determinism.
func (s *Store) QueryByStatus(ctx context.Context, status models.Status, limit int) ([]*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []*models.QueueItem
	for id := range s.items {
		item := s.items[id]
		if item.Status != status {
			continue
		}
		if item.ExpiresAt > 0 && item.ExpiresAt <= now.Unix() {
			continue
		}
		cp := item
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].QueuedAt.Equal(out[j].QueuedAt) {
			return out[i].QueuedAt.Before(out[j].QueuedAt)
		}
		return out[i].RecordingID < out[j].RecordingID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExpireItem stamps the queue item's TTL.
func (s *Store) ExpireItem(ctx context.Context, id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("queue item %s: %w", id, store.ErrNotFound)
	}
	item.ExpiresAt = expiresAt.Unix()
	s.items[id] = item
	return nil
}

// Blobs implements store.BlobStore in memory.
type Blobs struct {
	mu     sync.Mutex
	bucket string
	data   map[string][]byte
}

// NewBlobs creates an empty in-memory blob store.
func NewBlobs(bucket string) *Blobs {
	return &Blobs{
		bucket: bucket,
		data:   make(map[string][]byte),
	}
}

// Put stores audio bytes under key. Write-once.
func (b *Blobs) Put(ctx context.Context, key string, data []byte) (models.BlobLocation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.data[key]; exists {
		return models.BlobLocation{}, fmt.Errorf("blob %s: %w", key, store.ErrBlobExists)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.data[key] = cp

	return models.BlobLocation{Bucket: b.bucket, Key: key, Region: "local"}, nil
}

// Presign returns a synthetic access reference for local use.
func (b *Blobs) Presign(ctx context.Context, loc models.BlobLocation, window time.Duration) (store.BlobRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.data[loc.Key]; !exists {
		return store.BlobRef{}, fmt.Errorf("blob %s: %w", loc.Key, store.ErrNotFound)
	}
	return store.BlobRef{
		Location: loc,
		URL:      fmt.Sprintf("memory://%s/%s", loc.Bucket, loc.Key),
		Expires:  time.Now().Add(window),
	}, nil
}

// Get returns the stored bytes; used by tests and the mock transcriber.
func (b *Blobs) Get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[key]
	return data, ok
}
