// Package models defines the recording and queue item data structures
// tracked by the orchestration core.
package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Language is a closed set of language tags the transcription capability
// accepts. LanguageUnknown marks a recording pending detection.
type Language string

const (
	LanguageHindi    Language = "hi-IN"
	LanguageMarathi  Language = "mr-IN"
	LanguageHinglish Language = "hi-EN"
	LanguageUnknown  Language = "unknown"
)

// Valid returns true if l is one of the accepted language tags.
func (l Language) Valid() bool {
	switch l {
	case LanguageHindi, LanguageMarathi, LanguageHinglish, LanguageUnknown:
		return true
	}
	return false
}

// AudioFormat is the declared container format of a captured recording.
type AudioFormat string

const (
	FormatWAV  AudioFormat = "wav"
	FormatFLAC AudioFormat = "flac"
	FormatOGG  AudioFormat = "ogg"
	FormatMP3  AudioFormat = "mp3"
	FormatAMR  AudioFormat = "amr"
)

// Valid returns true if f is a container format accepted by the
// transcription capability.
func (f AudioFormat) Valid() bool {
	switch f {
	case FormatWAV, FormatFLAC, FormatOGG, FormatMP3, FormatAMR:
		return true
	}
	return false
}

// MinSampleRateHz is the lowest sample rate accepted by validation.
const MinSampleRateHz = 8000

// Validation errors for captured audio metadata.
var (
	ErrSampleRateTooLow  = errors.New("sample rate below 8000 Hz")
	ErrNonPositiveLength = errors.New("duration must be greater than zero")
	ErrUnknownFormat     = errors.New("unrecognized audio container format")
	ErrUnknownLanguage   = errors.New("unrecognized language tag")
)

// AudioMeta describes the captured audio.
type AudioMeta struct {
	DurationSec  float64     `json:"durationSec" dynamodbav:"duration_sec"`
	SampleRateHz int         `json:"sampleRateHz" dynamodbav:"sample_rate_hz"`
	Channels     int         `json:"channels" dynamodbav:"channels"`
	Format       AudioFormat `json:"format" dynamodbav:"format"`
}

// Validate checks the metadata against the capture requirements.
func (m AudioMeta) Validate() error {
	if m.DurationSec <= 0 {
		return ErrNonPositiveLength
	}
	if m.SampleRateHz < MinSampleRateHz {
		return fmt.Errorf("%w: %d", ErrSampleRateTooLow, m.SampleRateHz)
	}
	if !m.Format.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, m.Format)
	}
	return nil
}

// BlobLocation is a reference into the blob store. Set once the upload
// succeeds; immutable thereafter.
type BlobLocation struct {
	Bucket string `json:"bucket" dynamodbav:"bucket"`
	Key    string `json:"key" dynamodbav:"key"`
	Region string `json:"region" dynamodbav:"region"`
}

// IsZero returns true if no upload has been recorded yet.
func (b BlobLocation) IsZero() bool {
	return b.Bucket == "" && b.Key == ""
}

// WordDetail is one transcribed word with its timing pair and confidence.
// No partial entries are permitted in a completed result.
type WordDetail struct {
	Word        string        `json:"word" dynamodbav:"word"`
	StartOffset time.Duration `json:"startOffset" dynamodbav:"start_offset"`
	EndOffset   time.Duration `json:"endOffset" dynamodbav:"end_offset"`
	Confidence  float64       `json:"confidence" dynamodbav:"confidence"`
}

// TranscriptionResult is the outcome of a successful transcription call.
type TranscriptionResult struct {
	Transcript string       `json:"transcript"`
	Confidence float64      `json:"confidence"`
	Words      []WordDetail `json:"words"`
	Language   Language     `json:"language"`
}

// Validate checks a completed result: confidence normalized to [0,1],
// words ordered by start offset, every word carrying timing and confidence.
func (r TranscriptionResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	for i, w := range r.Words {
		if w.Word == "" {
			return fmt.Errorf("word %d: empty text", i)
		}
		if w.EndOffset < w.StartOffset {
			return fmt.Errorf("word %d: end offset before start offset", i)
		}
		if w.Confidence < 0 || w.Confidence > 1 {
			return fmt.Errorf("word %d: confidence %v outside [0,1]", i, w.Confidence)
		}
	}
	if !sort.SliceIsSorted(r.Words, func(i, j int) bool {
		return r.Words[i].StartOffset < r.Words[j].StartOffset
	}) {
		return errors.New("word details not ordered by start offset")
	}
	return nil
}

// Recording is one captured voice utterance and its metadata/results.
type Recording struct {
	RecordingID string       `json:"recordingId" dynamodbav:"recording_id"`
	UserID      string       `json:"userId" dynamodbav:"user_id"`
	Blob        BlobLocation `json:"blob" dynamodbav:"blob"`
	Audio       AudioMeta    `json:"audio" dynamodbav:"audio"`
	Language    Language     `json:"language" dynamodbav:"language"`
	Status      Status       `json:"status" dynamodbav:"status"`
	RetryCount  int          `json:"retryCount" dynamodbav:"retry_count"`

	// Set on completion only.
	Confidence *float64     `json:"confidence,omitempty" dynamodbav:"confidence,omitempty"`
	Transcript string       `json:"transcript,omitempty" dynamodbav:"transcript,omitempty"`
	Words      []WordDetail `json:"words,omitempty" dynamodbav:"words,omitempty"`

	// LastError holds the failure/quality reason for FAILED and
	// REVIEW_NEEDED recordings so they stay queryable with it attached.
	LastError string `json:"lastError,omitempty" dynamodbav:"last_error,omitempty"`

	CapturedAt time.Time `json:"capturedAt" dynamodbav:"captured_at,unixtime"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"created_at,unixtime"`
	UpdatedAt  time.Time `json:"updatedAt" dynamodbav:"updated_at,unixtime"`
}

// NewRecordingID returns a globally unique recording identifier.
func NewRecordingID() string {
	return uuid.New().String()
}

// NewRecording builds a Recording at capture time in PENDING state.
func NewRecording(userID string, capturedAt time.Time, audio AudioMeta, lang Language) (*Recording, error) {
	if err := audio.Validate(); err != nil {
		return nil, err
	}
	if !lang.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	now := time.Now().UTC()
	return &Recording{
		RecordingID: NewRecordingID(),
		UserID:      userID,
		Audio:       audio,
		Language:    lang,
		Status:      StatusPending,
		CapturedAt:  capturedAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
