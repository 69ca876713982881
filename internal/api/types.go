package api

import "time"

// ExtractProfileRequest carries the free-text bio to analyze during
// onboarding.
type ExtractProfileRequest struct {
	Bio            string   `json:"bio" validate:"required"`
	ContextTags    []string `json:"context_tags"`
	TargetLanguage string   `json:"target_language" validate:"required"`
}

// CustomScenarioRequest carries a user-written scenario description.
type CustomScenarioRequest struct {
	Description string `json:"description" validate:"required"`
}

// AssessRequest carries one recorded utterance for standalone assessment.
// Audio is base64-encoded mono s16le PCM at 16kHz.
type AssessRequest struct {
	Language string `json:"language" validate:"required"`
	Audio    string `json:"audio" validate:"required"`
}

// CreateSessionResponse returns the credentials for opening the live
// conversation socket.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
