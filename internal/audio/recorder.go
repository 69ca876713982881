package audio

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
)

// Capture holds the audio detached from one closed utterance buffer. Once
// detached it is independent of the recorder, so scoring can proceed while
// the next utterance records.
type Capture struct {
	frames      []Frame
	sampleRate  int
	selfManaged bool
}

// UtteranceRecorder captures audio for the span of one user utterance and
// hands it to the pronunciation assessor. Stop is synchronous so the caller
// can close one buffer before opening the next; Assess runs on the detached
// capture and may overlap the following utterance.
type UtteranceRecorder interface {
	// Attach records a reference to the shared microphone stream. It does
	// not start capturing.
	Attach(stream *LiveStream)
	// Start begins buffering audio for a new utterance. No-op when no
	// stream is attached.
	Start()
	// Stop closes the open buffer and detaches its audio. Returns nil when
	// nothing was captured.
	Stop() *Capture
	// Assess submits a detached capture for assessment. A nil assessment
	// with nil error means the utterance was not worth scoring (too short,
	// no speech, or a swallowed assessment failure).
	Assess(ctx context.Context, capture *Capture) (*entities.PronunciationAssessment, error)
}

// StreamTapRecorder taps the shared microphone stream, buffering raw frames
// per utterance without opening a second audio source.
type StreamTapRecorder struct {
	assessor repositories.PronunciationAssessor
	language string
	logger   *zap.Logger

	mu        sync.Mutex
	stream    *LiveStream
	frames    []Frame
	cancelTap func()
	recording bool
}

// NewStreamTapRecorder creates a recorder that captures from a shared
// stream and scores with the given assessor.
func NewStreamTapRecorder(assessor repositories.PronunciationAssessor, language string, logger *zap.Logger) *StreamTapRecorder {
	return &StreamTapRecorder{
		assessor: assessor,
		language: language,
		logger:   logger,
	}
}

// Attach stores the shared stream for later tapping.
func (r *StreamTapRecorder) Attach(stream *LiveStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream = stream
}

// Start begins buffering frames from the shared stream. A previous
// unfinished utterance is discarded first.
func (r *StreamTapRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return
	}

	// Defensive reset in case the prior buffer was never stopped.
	if r.cancelTap != nil {
		r.cancelTap()
		r.cancelTap = nil
	}
	r.frames = nil
	r.recording = true

	ch, cancel := r.stream.Subscribe()
	r.cancelTap = cancel

	go func() {
		for frame := range ch {
			r.mu.Lock()
			if r.recording {
				r.frames = append(r.frames, frame)
			}
			r.mu.Unlock()
		}
	}()
}

// Stop cancels the tap and detaches the buffered frames. The recorder is
// immediately ready for the next Start.
func (r *StreamTapRecorder) Stop() *Capture {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recording = false
	if r.cancelTap != nil {
		r.cancelTap()
		r.cancelTap = nil
	}
	frames := r.frames
	r.frames = nil

	if len(frames) == 0 || r.stream == nil {
		return nil
	}
	return &Capture{frames: frames, sampleRate: r.stream.SampleRate()}
}

// Assess merges and resamples a detached capture and runs the assessment.
// Failures local to this utterance are logged and swallowed.
func (r *StreamTapRecorder) Assess(ctx context.Context, capture *Capture) (*entities.PronunciationAssessment, error) {
	if capture == nil || len(capture.frames) == 0 {
		return nil, nil
	}

	pcm, err := Resample16k(MergeFrames(capture.frames), capture.sampleRate)
	if err != nil {
		r.logger.Warn("Failed to resample utterance audio", zap.Error(err))
		return nil, nil
	}

	assessment, err := r.assessor.Assess(ctx, r.language, pcm)
	if err != nil {
		if errors.Is(err, repositories.ErrNoAudioData) || errors.Is(err, repositories.ErrNoSpeechDetected) {
			return nil, nil
		}
		r.logger.Warn("Pronunciation assessment failed",
			zap.String("language", r.language),
			zap.Error(err))
		return nil, nil
	}

	// Brief filler utterances are common and not worth scoring.
	if !assessment.Scorable() {
		return nil, nil
	}

	return assessment, nil
}

// SelfCaptureRecorder delegates capture to the assessment service itself.
// Attach and Start are no-ops; Assess triggers a service-managed recording.
type SelfCaptureRecorder struct {
	assessor repositories.PronunciationAssessor
	language string
	logger   *zap.Logger
}

// NewSelfCaptureRecorder creates a recorder in self-capture mode.
func NewSelfCaptureRecorder(assessor repositories.PronunciationAssessor, language string, logger *zap.Logger) *SelfCaptureRecorder {
	return &SelfCaptureRecorder{
		assessor: assessor,
		language: language,
		logger:   logger,
	}
}

// Attach is a no-op in self-capture mode.
func (r *SelfCaptureRecorder) Attach(stream *LiveStream) {}

// Start is a no-op in self-capture mode.
func (r *SelfCaptureRecorder) Start() {}

// Stop marks the turn boundary; the service holds the audio itself.
func (r *SelfCaptureRecorder) Stop() *Capture {
	return &Capture{selfManaged: true}
}

// Assess asks the assessment service to capture and score on its own.
func (r *SelfCaptureRecorder) Assess(ctx context.Context, capture *Capture) (*entities.PronunciationAssessment, error) {
	if capture == nil {
		return nil, nil
	}
	assessment, err := r.assessor.Assess(ctx, r.language, nil)
	if err != nil {
		if errors.Is(err, repositories.ErrNoAudioData) || errors.Is(err, repositories.ErrNoSpeechDetected) {
			return nil, nil
		}
		r.logger.Warn("Pronunciation assessment failed",
			zap.String("language", r.language),
			zap.Error(err))
		return nil, nil
	}
	if !assessment.Scorable() {
		return nil, nil
	}
	return assessment, nil
}
