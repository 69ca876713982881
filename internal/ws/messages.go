package ws

import (
	"github.com/w3joe/eloquentai/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// client -> server
	MessageTypeSessionStart MessageType = "session_start"
	MessageTypeEndSession   MessageType = "end_session"

	// server -> client
	MessageTypeState      MessageType = "state"
	MessageTypeTranscript MessageType = "transcript"
	MessageTypeAssessment MessageType = "assessment"
	MessageTypeFeedback   MessageType = "feedback"
	MessageTypeError      MessageType = "error"
)

// SessionStartMessage opens a practice session on an established socket.
// Binary frames that follow carry raw mono s16le PCM at SampleRate.
type SessionStartMessage struct {
	Type         MessageType       `json:"type"`
	Scenario     entities.Scenario `json:"scenario"`
	Language     string            `json:"language"` // short code, e.g. "es"
	LearnerLevel string            `json:"learner_level"`
	SampleRate   int               `json:"sample_rate"`
	MicGranted   bool              `json:"mic_granted"`
}

// StateMessage reports a session state change.
type StateMessage struct {
	Type      MessageType           `json:"type"`
	State     entities.SessionState `json:"state"`
	MicDenied bool                  `json:"mic_denied"`
}

// TranscriptMessage carries one new transcript entry.
type TranscriptMessage struct {
	Type  MessageType              `json:"type"`
	Entry entities.TranscriptEntry `json:"entry"`
}

// AssessmentMessage carries one completed pronunciation assessment.
type AssessmentMessage struct {
	Type       MessageType                      `json:"type"`
	Assessment entities.PronunciationAssessment `json:"assessment"`
}

// FeedbackMessage delivers the final session feedback record.
type FeedbackMessage struct {
	Type   MessageType             `json:"type"`
	Record entities.FeedbackRecord `json:"record"`
}

// ErrorMessage reports a user-facing error. Raw service errors are never
// forwarded; Message is always a translated, generic text.
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}
