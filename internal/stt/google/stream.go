package google

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/omspatilgit/BolBharat-AI/internal/models"
	"github.com/omspatilgit/BolBharat-AI/internal/stt"
)

// Stream implements stt.StreamTranscriber on StreamingRecognize.
type Stream struct {
	client       *speech.Client
	stream       speechpb.Speech_StreamingRecognizeClient
	cb           stt.Callback
	sampleRateHz int
}

// NewStream creates a streaming transcriber.
func NewStream(ctx context.Context, sampleRateHz int) (*Stream, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &Stream{client: c, sampleRateHz: sampleRateHz}, nil
}

// Start begins a streaming recognition session and sends the initial
// config message.
func (s *Stream) Start(ctx context.Context, lang models.Language, cb stt.Callback) error {
	stream, err := s.client.StreamingRecognize(ctx)
	if err != nil {
		return stt.ClassifyProviderError(err)
	}
	s.stream = stream
	s.cb = cb

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:              speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:       int32(s.sampleRateHz),
					LanguageCode:          languageCode(lang),
					EnableWordTimeOffsets: true,
					EnableWordConfidence:  true,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return stt.ClassifyProviderError(err)
	}

	go s.listen()
	return nil
}

// SendAudio sends audio bytes to the provider.
func (s *Stream) SendAudio(ctx context.Context, audio []byte) error {
	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
	return stt.ClassifyProviderError(err)
}

// Close ends the streaming session.
func (s *Stream) Close() error {
	if s.stream != nil {
		return s.stream.CloseSend()
	}
	return nil
}

// listen receives transcript responses and invokes callbacks until the
// stream ends.
func (s *Stream) listen() {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			s.cb.OnError(stt.ClassifyProviderError(err))
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if !r.IsFinal {
				s.cb.OnPartial(alt.Transcript)
				continue
			}

			result := &models.TranscriptionResult{
				Transcript: alt.Transcript,
				Confidence: float64(alt.Confidence),
			}
			for _, w := range alt.Words {
				result.Words = append(result.Words, models.WordDetail{
					Word:        w.Word,
					StartOffset: w.StartTime.AsDuration(),
					EndOffset:   w.EndTime.AsDuration(),
					Confidence:  float64(w.Confidence),
				})
			}
			s.cb.OnFinal(result)
		}
	}
}
