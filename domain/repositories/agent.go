package repositories

import (
	"context"

	"github.com/w3joe/eloquentai/domain/entities"
)

// AgentEventKind enumerates the events a conversation agent session emits.
type AgentEventKind string

const (
	AgentEventConnected    AgentEventKind = "connected"
	AgentEventDisconnected AgentEventKind = "disconnected"
	AgentEventMessage      AgentEventKind = "message"
	AgentEventModeChanged  AgentEventKind = "mode_changed"
	AgentEventError        AgentEventKind = "error"
)

// AgentMode reports whose turn it is in the conversation.
type AgentMode string

const (
	AgentModeListening AgentMode = "listening"
	AgentModeSpeaking  AgentMode = "speaking"
)

// AgentEvent is one normalized event from the conversation service.
type AgentEvent struct {
	Kind   AgentEventKind
	Source entities.TranscriptRole // set for message events
	Text   string                  // message text or error message
	Mode   AgentMode               // set for mode_changed events
}

// AgentSessionConfig carries the scenario context passed to the agent as a
// structured system instruction plus the opening line it speaks.
type AgentSessionConfig struct {
	Scenario       entities.Scenario
	TargetLanguage string // display name, e.g. "Spanish"
	LearnerLevel   string
	FirstMessage   string
}

// AgentSession is a live conversation with the voice agent service.
type AgentSession interface {
	// Events returns the session's event stream. The channel is closed when
	// the underlying transport closes.
	Events() <-chan AgentEvent
	// SendAudio forwards one chunk of the learner's microphone audio.
	SendAudio(pcm []byte) error
	// Speaking reports whether the agent is currently talking.
	Speaking() bool
	// End terminates the session. Safe to call multiple times.
	End() error
}

// ConversationAgent abstracts the external real-time voice agent service.
type ConversationAgent interface {
	StartSession(ctx context.Context, config AgentSessionConfig) (AgentSession, error)
}
