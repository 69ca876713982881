package llm

import (
	"context"
	"errors"
)

// MockGenerationService is a scripted generation service for tests and
// offline development. Responses are returned in order; when the script is
// exhausted the last response repeats.
type MockGenerationService struct {
	Responses []string
	Err       error
	Prompts   []string
	calls     int
}

// NewMockGenerationService creates a mock that always returns response.
func NewMockGenerationService(response string) *MockGenerationService {
	return &MockGenerationService{Responses: []string{response}}
}

// Generate returns the next scripted response.
func (m *MockGenerationService) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	m.calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", errors.New("mock generation service has no responses")
	}
	idx := m.calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Calls reports how many times Generate was invoked.
func (m *MockGenerationService) Calls() int {
	return m.calls
}
