package assessment

import (
	"context"
	"sync"

	"github.com/w3joe/eloquentai/domain/entities"
)

// MockAssessor is a scripted assessor for tests. Results are returned in
// order; when the script runs out it returns Err (or the last result).
type MockAssessor struct {
	Results []*entities.PronunciationAssessment
	Err     error

	mu    sync.Mutex
	calls int
	audio [][]byte
}

// Assess returns the next scripted result.
func (m *MockAssessor) Assess(ctx context.Context, language string, pcm []byte) (*entities.PronunciationAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	m.audio = append(m.audio, buf)

	idx := m.calls
	m.calls++

	if m.Err != nil {
		return nil, m.Err
	}
	if idx >= len(m.Results) {
		if len(m.Results) == 0 {
			return nil, nil
		}
		idx = len(m.Results) - 1
	}
	return m.Results[idx], nil
}

// Calls reports how many assessments were requested.
func (m *MockAssessor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Audio returns the audio buffers received, in call order.
func (m *MockAssessor) Audio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}
