// Package google provides Google Cloud Speech-to-Text adapters, batch and
// streaming. Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
package google

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/store"
	"github.com/omspatilgit/BolBharat-AI/internal/stt"
)

// encodingFor maps declared container formats onto provider encodings.
func encodingFor(format models.AudioFormat) speechpb.RecognitionConfig_AudioEncoding {
	switch format {
	case models.FormatFLAC:
		return speechpb.RecognitionConfig_FLAC
	case models.FormatOGG:
		return speechpb.RecognitionConfig_OGG_OPUS
	case models.FormatMP3:
		return speechpb.RecognitionConfig_MP3
	case models.FormatAMR:
		return speechpb.RecognitionConfig_AMR
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// languageCode maps the closed language set onto provider tags. Code-mixed
// Hinglish rides the Hindi model; unknown defers to Hindi pending detection.
func languageCode(lang models.Language) string {
	switch lang {
	case models.LanguageMarathi:
		return "mr-IN"
	default:
		return "hi-IN"
	}
}

// Batch implements stt.BatchTranscriber on LongRunningRecognize.
type Batch struct {
	client       *speech.Client
	sampleRateHz int
	format       models.AudioFormat
}

// NewBatch creates a batch transcriber.
func NewBatch(ctx context.Context, sampleRateHz int, format models.AudioFormat) (*Batch, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &Batch{client: c, sampleRateHz: sampleRateHz, format: format}, nil
}

// SubmitBatch starts an asynchronous recognition of the referenced blob.
// The operation name is the poll handle.
func (b *Batch) SubmitBatch(ctx context.Context, ref store.BlobRef, lang models.Language) (stt.JobHandle, error) {
	op, err := b.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:              encodingFor(b.format),
			SampleRateHertz:       int32(b.sampleRateHz),
			LanguageCode:          languageCode(lang),
			EnableWordTimeOffsets: true,
			EnableWordConfidence:  true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: ref.URL},
		},
	})
	if err != nil {
		return "", stt.ClassifyProviderError(err)
	}
	return stt.JobHandle(op.Name()), nil
}

// PollResult polls the named operation. done is false while it runs.
func (b *Batch) PollResult(ctx context.Context, handle stt.JobHandle) (*models.TranscriptionResult, bool, error) {
	op := b.client.LongRunningRecognizeOperation(string(handle))
	resp, err := op.Poll(ctx)
	if err != nil {
		return nil, op.Done(), stt.ClassifyProviderError(err)
	}
	if !op.Done() {
		return nil, false, nil
	}
	return fromResponse(resp), true, nil
}

// Close releases the underlying client.
func (b *Batch) Close() error {
	return b.client.Close()
}

func fromResponse(resp *speechpb.LongRunningRecognizeResponse) *models.TranscriptionResult {
	out := &models.TranscriptionResult{}
	for _, res := range resp.GetResults() {
		if len(res.Alternatives) == 0 {
			continue
		}
		alt := res.Alternatives[0]
		if out.Transcript != "" {
			out.Transcript += " "
		}
		out.Transcript += alt.Transcript
		// Confidence of the full result is the lowest alternative
		// confidence seen, so one weak segment flags the whole recording.
		if out.Confidence == 0 || float64(alt.Confidence) < out.Confidence {
			out.Confidence = float64(alt.Confidence)
		}
		for _, w := range alt.Words {
			out.Words = append(out.Words, models.WordDetail{
				Word:        w.Word,
				StartOffset: w.StartTime.AsDuration(),
				EndOffset:   w.EndTime.AsDuration(),
				Confidence:  float64(w.Confidence),
			})
		}
	}
	return out
}
