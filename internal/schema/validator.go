// Package schema validates outbound event payloads before publish.
package schema

import (
	"errors"
	"fmt"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
)

var errMissingField = errors.New("missing required event field")

// Validator checks required fields on outbound events.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks the known event shapes; unknown payloads pass through.
func (v *Validator) Validate(event any) error {
	switch ev := event.(type) {
	case models.TranscriptPartial:
		return required(map[string]string{
			"eventType":   ev.EventType,
			"recordingId": ev.RecordingID,
			"sessionId":   ev.SessionID,
		})
	case models.RecordingLifecycle:
		return required(map[string]string{
			"eventType":   ev.EventType,
			"recordingId": ev.RecordingID,
			"status":      ev.Status,
		})
	}
	return nil
}

func required(fields map[string]string) error {
	for name, val := range fields {
		if val == "" {
			return fmt.Errorf("%w: %s", errMissingField, name)
		}
	}
	return nil
}
