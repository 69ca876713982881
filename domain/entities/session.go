package entities

import (
	"errors"
	"time"
)

// SessionState represents the lifecycle state of a practice conversation.
// It is owned exclusively by the session controller.
type SessionState string

const (
	SessionStateIdle          SessionState = "idle"
	SessionStateConnecting    SessionState = "connecting"
	SessionStateListening     SessionState = "listening"
	SessionStateAgentSpeaking SessionState = "agent_speaking"
	SessionStateProcessing    SessionState = "processing"
	SessionStateEnded         SessionState = "ended"
	SessionStateError         SessionState = "error"
)

// TranscriptRole identifies who spoke a transcript line.
type TranscriptRole string

const (
	TranscriptRoleUser  TranscriptRole = "user"
	TranscriptRoleAgent TranscriptRole = "agent"
)

// TranscriptEntry is one spoken line reported by the conversation service.
// Entries are appended in report order and never mutated afterwards.
type TranscriptEntry struct {
	Role      TranscriptRole `json:"role" bson:"role"`
	Text      string         `json:"text" bson:"text"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
}

// PracticeSession accumulates everything one live conversation produces:
// the transcript and the per-utterance pronunciation assessments.
type PracticeSession struct {
	ID             string                    `json:"id" bson:"_id,omitempty"`
	ScenarioTitle  string                    `json:"scenario_title" bson:"scenario_title"`
	TargetLanguage string                    `json:"target_language" bson:"target_language"`
	StartedAt      time.Time                 `json:"started_at" bson:"started_at"`
	State          SessionState              `json:"state" bson:"state"`
	Transcript     []TranscriptEntry         `json:"transcript" bson:"transcript"`
	Assessments    []PronunciationAssessment `json:"assessments" bson:"assessments"`
}

// NewPracticeSession creates an empty session in the idle state.
func NewPracticeSession(id, scenarioTitle, targetLanguage string) *PracticeSession {
	return &PracticeSession{
		ID:             id,
		ScenarioTitle:  scenarioTitle,
		TargetLanguage: targetLanguage,
		StartedAt:      time.Now(),
		State:          SessionStateIdle,
		Transcript:     make([]TranscriptEntry, 0),
		Assessments:    make([]PronunciationAssessment, 0),
	}
}

// AppendTranscript adds a spoken line to the transcript.
func (s *PracticeSession) AppendTranscript(role TranscriptRole, text string) {
	s.Transcript = append(s.Transcript, TranscriptEntry{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
}

// AddAssessment appends a completed assessment. Assessments with fewer than
// MinScorableWords recognized words are rejected.
func (s *PracticeSession) AddAssessment(a *PronunciationAssessment) error {
	if !a.Scorable() {
		return errors.New("assessment has too few recognized words")
	}
	s.Assessments = append(s.Assessments, *a)
	return nil
}

// PronunciationScore recomputes the aggregate score from the full
// assessment list.
func (s *PracticeSession) PronunciationScore() int {
	return AggregatePronunciationScore(s.Assessments)
}

// DurationSeconds returns the wall-clock session length up to now.
func (s *PracticeSession) DurationSeconds(now time.Time) int {
	return int(now.Sub(s.StartedAt).Round(time.Second) / time.Second)
}

// Validate validates the session data
func (s *PracticeSession) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.TargetLanguage == "" {
		return errors.New("target language is required")
	}
	switch s.State {
	case SessionStateIdle, SessionStateConnecting, SessionStateListening,
		SessionStateAgentSpeaking, SessionStateProcessing, SessionStateEnded, SessionStateError:
		return nil
	}
	return errors.New("invalid session state")
}
