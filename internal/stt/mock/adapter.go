// Package mock provides scripted STT adapters for testing and local runs
// without cloud credentials. It simulates realistic behavior: progressive
// partial transcripts, exactly one final per session, asynchronous batch
// jobs and injectable failures.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
	"github.com/omspatilgit/BolBharat-AI/internal/stt"
)

// SimulatedResult is a scripted transcription outcome.
type SimulatedResult struct {
	Partials   []string
	Transcript string
	Confidence float64
}

// DefaultResults provides sample outcomes for simulation.
var DefaultResults = []SimulatedResult{
	{
		Partials:   []string{"mujhe apna", "mujhe apna khata"},
		Transcript: "mujhe apna khata band karna hai",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"haan", "haan theek"},
		Transcript: "haan theek hai aage badhiye",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"mera balance", "mera balance kitna"},
		Transcript: "mera balance kitna hai",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"dhanyavad"},
		Transcript: "dhanyavad bahut shukriya",
		Confidence: 0.62,
	},
}

func toResult(s SimulatedResult) *models.TranscriptionResult {
	out := &models.TranscriptionResult{
		Transcript: s.Transcript,
		Confidence: s.Confidence,
		Language:   models.LanguageHindi,
	}
	offset := time.Duration(0)
	for i := 0; i < len(s.Transcript); i++ {
		if i == 0 || s.Transcript[i-1] == ' ' {
			end := offset + 300*time.Millisecond
			word := s.Transcript[i:]
			for j := i; j < len(s.Transcript); j++ {
				if s.Transcript[j] == ' ' {
					word = s.Transcript[i:j]
					break
				}
			}
			out.Words = append(out.Words, models.WordDetail{
				Word:        word,
				StartOffset: offset,
				EndOffset:   end,
				Confidence:  s.Confidence,
			})
			offset = end + 100*time.Millisecond
		}
	}
	return out
}

type job struct {
	result    *models.TranscriptionResult
	pollsLeft int
}

// Batch implements stt.BatchTranscriber with scripted outcomes.
type Batch struct {
	mu      sync.Mutex
	jobs    map[stt.JobHandle]*job
	nextJob int
	scriptN int

	// Result overrides the cycled default script when set.
	Result *models.TranscriptionResult
	// SubmitErrs are consumed one per SubmitBatch call; nil entries succeed.
	SubmitErrs []error
	// PollsUntilDone makes PollResult report stillRunning that many times.
	PollsUntilDone int

	SubmitCalls int
	PollCalls   int
}

// NewBatch creates a mock batch transcriber.
func NewBatch() *Batch {
	return &Batch{jobs: make(map[stt.JobHandle]*job)}
}

// FailSubmits queues n failing SubmitBatch calls returning err.
func (b *Batch) FailSubmits(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < n; i++ {
		b.SubmitErrs = append(b.SubmitErrs, err)
	}
}

// SubmitBatch starts a scripted job.
func (b *Batch) SubmitBatch(ctx context.Context, ref store.BlobRef, lang models.Language) (stt.JobHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.SubmitCalls++
	if len(b.SubmitErrs) > 0 {
		err := b.SubmitErrs[0]
		b.SubmitErrs = b.SubmitErrs[1:]
		if err != nil {
			return "", err
		}
	}

	result := b.Result
	if result == nil {
		result = toResult(DefaultResults[b.scriptN%len(DefaultResults)])
		b.scriptN++
	}

	b.nextJob++
	handle := stt.JobHandle(fmt.Sprintf("mock-job-%d", b.nextJob))
	b.jobs[handle] = &job{result: result, pollsLeft: b.PollsUntilDone}
	return handle, nil
}

// PollResult reports stillRunning until the scripted poll budget drains.
func (b *Batch) PollResult(ctx context.Context, handle stt.JobHandle) (*models.TranscriptionResult, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.PollCalls++
	j, ok := b.jobs[handle]
	if !ok {
		return nil, true, fmt.Errorf("unknown job handle %q", handle)
	}
	if j.pollsLeft > 0 {
		j.pollsLeft--
		return nil, false, nil
	}
	return j.result, true, nil
}

// Nothing in the scripted runs holds resources, but the mock mirrors the
// provider shape.
func (b *Batch) Close() error { return nil }

// Stream implements stt.StreamTranscriber with scripted partials and one
// final per session.
type Stream struct {
	mu           sync.Mutex
	cb           stt.Callback
	script       SimulatedResult
	partialIndex int
	finalSent    bool
	closed       bool

	// Err, when set, is delivered through OnError on the next SendAudio.
	Err error
	// Synchronous delivers callbacks inline instead of asynchronously,
	// keeping tests deterministic.
	Synchronous bool
}

var (
	streamCounter int
	streamMu      sync.Mutex
)

// NewStream creates a mock streaming transcriber cycling the default
// script.
func NewStream() *Stream {
	streamMu.Lock()
	idx := streamCounter % len(DefaultResults)
	streamCounter++
	streamMu.Unlock()

	return &Stream{script: DefaultResults[idx]}
}

// NewStreamScripted creates a mock streaming transcriber with a fixed
// script.
func NewStreamScripted(script SimulatedResult) *Stream {
	return &Stream{script: script, Synchronous: true}
}

// Start begins a mock session.
func (s *Stream) Start(ctx context.Context, lang models.Language, cb stt.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
	return nil
}

// SendAudio simulates receiving audio: one partial per frame, then the
// final once the partial script drains. Callbacks fire outside the lock.
func (s *Stream) SendAudio(ctx context.Context, audio []byte) error {
	s.mu.Lock()
	var fn func(cb stt.Callback)
	switch {
	case s.closed || s.cb == nil:
	case s.Err != nil:
		err := s.Err
		fn = func(cb stt.Callback) { cb.OnError(err) }
	case s.partialIndex < len(s.script.Partials):
		partial := s.script.Partials[s.partialIndex]
		s.partialIndex++
		fn = func(cb stt.Callback) { cb.OnPartial(partial) }
	case !s.finalSent:
		s.finalSent = true
		result := toResult(s.script)
		fn = func(cb stt.Callback) { cb.OnFinal(result) }
	}
	cb := s.cb
	sync := s.Synchronous
	s.mu.Unlock()

	if fn == nil {
		return nil
	}
	if sync {
		fn(cb)
		return nil
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		fn(cb)
	}()
	return nil
}

// Close ends the mock session. If the final was never reached, the capture
// simply ends without one, like a provider stream cut short.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

