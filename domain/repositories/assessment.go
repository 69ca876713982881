package repositories

import (
	"context"
	"errors"

	"github.com/w3joe/eloquentai/domain/entities"
)

// Assessment error taxonomy. Adapters return these sentinels (optionally
// wrapped) so callers can distinguish "nothing worth scoring" from real
// failures.
var (
	// ErrNoAudioData indicates an empty utterance buffer was submitted.
	ErrNoAudioData = errors.New("no audio data recorded")

	// ErrNoSpeechDetected indicates the service found no recognizable speech.
	ErrNoSpeechDetected = errors.New("no speech detected")

	// ErrCredentialsMissing indicates the service credentials are not configured.
	ErrCredentialsMissing = errors.New("assessment service credentials not configured")

	// ErrRecognitionFailed is the generic failure for any other non-success
	// result from the service.
	ErrRecognitionFailed = errors.New("recognition failed")
)

// PronunciationAssessor abstracts the external pronunciation scoring
// service. pcm is mono 16kHz 16-bit little-endian samples; a nil pcm selects
// self-capture mode, where the service manages its own microphone input.
type PronunciationAssessor interface {
	Assess(ctx context.Context, language string, pcm []byte) (*entities.PronunciationAssessment, error)
}
