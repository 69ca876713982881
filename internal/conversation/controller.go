package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
	"github.com/w3joe/eloquentai/internal/audio"
	"github.com/w3joe/eloquentai/usecase"
)

// ErrMicrophoneUnavailable indicates the learner's microphone could not be
// acquired. Non-fatal to navigation: surfaced as a dismissible overlay.
var ErrMicrophoneUnavailable = errors.New("microphone unavailable")

// MicrophoneSource hands the controller the shared microphone stream. The
// session gateway implements this against the client connection.
type MicrophoneSource interface {
	Acquire(ctx context.Context) (*audio.LiveStream, error)
}

// Notifier receives controller updates for the presentation layer. All
// methods are called from controller goroutines and must not block.
type Notifier interface {
	StateChanged(state entities.SessionState)
	TranscriptAppended(entry entities.TranscriptEntry)
	AssessmentAdded(assessment entities.PronunciationAssessment)
	FeedbackReady(record entities.FeedbackRecord)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) StateChanged(entities.SessionState)                 {}
func (NopNotifier) TranscriptAppended(entities.TranscriptEntry)        {}
func (NopNotifier) AssessmentAdded(entities.PronunciationAssessment)   {}
func (NopNotifier) FeedbackReady(entities.FeedbackRecord)              {}

// Controller owns the lifecycle of one practice conversation from connect
// to feedback delivery. It is the sole writer of the session state and the
// single point where the agent's event stream, the utterance audio
// lifecycle and the final feedback call are serialized into one record.
type Controller struct {
	agent    repositories.ConversationAgent
	mic      MicrophoneSource
	recorder audio.UtteranceRecorder
	feedback *usecase.FeedbackService
	store    repositories.FeedbackRepository
	notifier Notifier
	logger   *zap.Logger

	scenario entities.Scenario
	level    string

	mu            sync.Mutex
	session       *entities.PracticeSession
	handle        repositories.AgentSession
	micDenied     bool
	utteranceOpen bool
	ended         bool
	endDone       chan struct{}
	final         *entities.FeedbackRecord
}

// Config bundles the controller's collaborators and session context.
type Config struct {
	Agent          repositories.ConversationAgent
	Microphone     MicrophoneSource
	Recorder       audio.UtteranceRecorder
	Feedback       *usecase.FeedbackService
	Store          repositories.FeedbackRepository
	Notifier       Notifier
	Logger         *zap.Logger
	SessionID      string
	Scenario       entities.Scenario
	TargetLanguage string
	LearnerLevel   string
}

// NewController creates a controller for one practice session.
func NewController(cfg Config) *Controller {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	level := cfg.LearnerLevel
	if level == "" {
		level = "Intermediate"
	}
	return &Controller{
		agent:    cfg.Agent,
		mic:      cfg.Microphone,
		recorder: cfg.Recorder,
		feedback: cfg.Feedback,
		store:    cfg.Store,
		notifier: notifier,
		logger:   cfg.Logger,
		scenario: cfg.Scenario,
		level:    level,
		endDone:  make(chan struct{}),
		session:  entities.NewPracticeSession(cfg.SessionID, cfg.Scenario.Title, cfg.TargetLanguage),
	}
}

// Start acquires the microphone and opens the agent session. A microphone
// failure raises the overlay flag and parks the session in the error state
// without contacting the agent.
func (c *Controller) Start(ctx context.Context) error {
	c.setState(entities.SessionStateConnecting)

	stream, err := c.mic.Acquire(ctx)
	if err != nil {
		c.logger.Warn("Microphone acquisition failed", zap.Error(err))
		c.mu.Lock()
		c.micDenied = true
		c.mu.Unlock()
		c.setState(entities.SessionStateError)
		return ErrMicrophoneUnavailable
	}

	c.recorder.Attach(stream)

	handle, err := c.agent.StartSession(ctx, repositories.AgentSessionConfig{
		Scenario:       c.scenario,
		TargetLanguage: entities.LanguageName(c.session.TargetLanguage),
		LearnerLevel:   c.level,
		FirstMessage:   c.scenario.Scene,
	})
	if err != nil {
		c.logger.Error("Failed to start agent session", zap.Error(err))
		c.setState(entities.SessionStateError)
		return err
	}

	c.mu.Lock()
	c.handle = handle
	c.mu.Unlock()

	go c.forwardAudio(stream, handle)
	go c.loop(ctx, handle.Events())
	return nil
}

// forwardAudio relays the learner's microphone frames to the agent service.
// The recorder taps the same stream through its own subscription; both are
// read-only consumers.
func (c *Controller) forwardAudio(stream *audio.LiveStream, handle repositories.AgentSession) {
	ch, cancel := stream.Subscribe()
	defer cancel()
	for frame := range ch {
		if err := handle.SendAudio(frame); err != nil {
			c.logger.Debug("Stopped forwarding audio to agent", zap.Error(err))
			return
		}
	}
}

func (c *Controller) loop(ctx context.Context, events <-chan repositories.AgentEvent) {
	for ev := range events {
		if c.handleEvent(ctx, ev) {
			// Disconnect reported by the service: run the normal end path.
			if _, err := c.End(ctx); err != nil {
				c.logger.Error("Failed to end session after disconnect", zap.Error(err))
			}
			return
		}
	}
}

// handleEvent applies one agent event to the state machine. It returns true
// when the session should be ended.
func (c *Controller) handleEvent(ctx context.Context, ev repositories.AgentEvent) bool {
	switch ev.Kind {
	case repositories.AgentEventConnected:
		c.setState(entities.SessionStateListening)

	case repositories.AgentEventMessage:
		// Transcript appends are never gated by the state machine.
		c.mu.Lock()
		c.session.AppendTranscript(ev.Source, ev.Text)
		entry := c.session.Transcript[len(c.session.Transcript)-1]
		c.mu.Unlock()
		c.notifier.TranscriptAppended(entry)

	case repositories.AgentEventModeChanged:
		c.handleModeChange(ctx, ev.Mode)

	case repositories.AgentEventError:
		c.mu.Lock()
		if isMicrophoneError(ev.Text) {
			c.micDenied = true
		}
		c.mu.Unlock()
		c.logger.Error("Conversation transport error", zap.String("message", ev.Text))
		c.setState(entities.SessionStateError)

	case repositories.AgentEventDisconnected:
		return true
	}
	return false
}

func (c *Controller) handleModeChange(ctx context.Context, mode repositories.AgentMode) {
	switch mode {
	case repositories.AgentModeSpeaking:
		c.setState(entities.SessionStateAgentSpeaking)

		// The user just finished their turn. The buffer must be closed
		// before the next listening toggle can open a new one, so Stop runs
		// inline on the event loop; only the scoring call leaves it.
		c.mu.Lock()
		open := c.utteranceOpen
		c.utteranceOpen = false
		c.mu.Unlock()
		if open {
			if capture := c.recorder.Stop(); capture != nil {
				go c.scoreUtterance(ctx, capture)
			}
		}

	case repositories.AgentModeListening:
		c.setState(entities.SessionStateListening)

		// The user is about to speak: open a fresh utterance buffer.
		c.mu.Lock()
		c.utteranceOpen = true
		c.mu.Unlock()
		c.recorder.Start()
	}
}

func (c *Controller) scoreUtterance(ctx context.Context, capture *audio.Capture) {
	assessment, err := c.recorder.Assess(ctx, capture)
	if err != nil || assessment == nil {
		return
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		c.logger.Info("Dropping assessment that completed after session end",
			zap.String("sessionID", c.session.ID))
		return
	}
	if err := c.session.AddAssessment(assessment); err != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.notifier.AssessmentAdded(*assessment)
}

// End stops the agent session, assembles the feedback record and persists
// it. It is idempotent: late callers wait for the first call to finish and
// receive its record. Feedback generation failure degrades to a placeholder
// record; ending a session never leaves the user stuck.
func (c *Controller) End(ctx context.Context) (*entities.FeedbackRecord, error) {
	c.mu.Lock()
	if c.ended {
		done := c.endDone
		c.mu.Unlock()
		<-done
		c.mu.Lock()
		final := c.final
		c.mu.Unlock()
		return final, nil
	}
	c.ended = true
	handle := c.handle
	c.mu.Unlock()

	c.setState(entities.SessionStateProcessing)

	if handle != nil {
		if err := handle.End(); err != nil {
			c.logger.Warn("Failed to stop agent session", zap.Error(err))
		}
	}

	// Close any buffer still open. Its audio arrives too late to influence
	// this session's record.
	if capture := c.recorder.Stop(); capture != nil {
		c.logger.Info("Discarding utterance recorded during session end")
	}

	now := time.Now()
	c.mu.Lock()
	duration := c.session.DurationSeconds(now)
	transcript := c.session.Transcript
	assessments := c.session.Assessments
	score := c.session.PronunciationScore()
	targetLanguage := c.session.TargetLanguage
	c.mu.Unlock()

	record, err := c.feedback.BuildFeedbackRecord(ctx, transcript, c.scenario, targetLanguage, duration)
	if err != nil {
		c.logger.Error("Feedback generation failed, producing degraded record",
			zap.String("sessionID", c.sessionID()),
			zap.Error(err))
		record = c.feedback.Degraded(c.scenario, targetLanguage, duration)
	}
	record.Pronunciation = assessments
	record.PronunciationScore = score

	if err := c.store.Save(ctx, record); err != nil {
		c.logger.Error("Failed to persist feedback record",
			zap.String("sessionID", c.sessionID()),
			zap.Error(err))
	}

	c.mu.Lock()
	c.final = record
	c.mu.Unlock()
	close(c.endDone)

	c.setState(entities.SessionStateEnded)
	c.notifier.FeedbackReady(*record)
	return record, nil
}

// Close tears the session down when the flow is abandoned before End. The
// agent session is still stopped; failures are swallowed because the user
// has already left.
func (c *Controller) Close() {
	c.mu.Lock()
	handle := c.handle
	ended := c.ended
	c.mu.Unlock()
	if ended || handle == nil {
		return
	}
	if err := handle.End(); err != nil {
		c.logger.Debug("Ignoring agent stop error during teardown", zap.Error(err))
	}
}

// State returns the current session state.
func (c *Controller) State() entities.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// MicrophoneDenied reports whether the microphone overlay should be shown.
func (c *Controller) MicrophoneDenied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micDenied
}

// Session returns the underlying session record.
func (c *Controller) Session() *entities.PracticeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

func (c *Controller) setState(state entities.SessionState) {
	c.mu.Lock()
	if c.session.State == entities.SessionStateEnded || c.session.State == state {
		// ended is terminal
		c.mu.Unlock()
		return
	}
	c.session.State = state
	c.mu.Unlock()
	c.notifier.StateChanged(state)
}

func isMicrophoneError(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "microphone") ||
		strings.Contains(lower, "permission") ||
		strings.Contains(lower, "notallowed")
}
