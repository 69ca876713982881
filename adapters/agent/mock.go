package agent

import (
	"context"
	"sync"

	"github.com/w3joe/eloquentai/domain/repositories"
)

// MockAgent is a scripted conversation agent for tests and offline
// development.
type MockAgent struct {
	StartErr error

	mu       sync.Mutex
	sessions []*MockSession
}

// StartSession returns a fresh scripted session.
func (m *MockAgent) StartSession(ctx context.Context, config repositories.AgentSessionConfig) (repositories.AgentSession, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	session := NewMockSession()
	m.mu.Lock()
	m.sessions = append(m.sessions, session)
	m.mu.Unlock()
	return session, nil
}

// Sessions returns the sessions handed out so far.
func (m *MockAgent) Sessions() []*MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions
}

// MockSession lets a test drive the event stream by hand.
type MockSession struct {
	events chan repositories.AgentEvent

	mu       sync.Mutex
	speaking bool
	ended    bool
	endCalls int
	audio    [][]byte
}

// NewMockSession creates an idle scripted session.
func NewMockSession() *MockSession {
	return &MockSession{events: make(chan repositories.AgentEvent, 64)}
}

// Emit pushes one event to the session's consumer.
func (s *MockSession) Emit(ev repositories.AgentEvent) {
	if ev.Kind == repositories.AgentEventModeChanged {
		s.mu.Lock()
		s.speaking = ev.Mode == repositories.AgentModeSpeaking
		s.mu.Unlock()
	}
	s.events <- ev
}

// CloseEvents closes the event stream, simulating transport shutdown.
func (s *MockSession) CloseEvents() {
	close(s.events)
}

func (s *MockSession) Events() <-chan repositories.AgentEvent {
	return s.events
}

func (s *MockSession) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.audio = append(s.audio, buf)
	return nil
}

func (s *MockSession) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// End is idempotent, matching the real service contract.
func (s *MockSession) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endCalls++
	s.ended = true
	return nil
}

// EndCalls reports how many times End was invoked.
func (s *MockSession) EndCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endCalls
}

// Ended reports whether End was called.
func (s *MockSession) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
