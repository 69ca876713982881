package audio

import "sync"

// Frame is one chunk of raw mono 16-bit little-endian PCM at the stream's
// sample rate.
type Frame []byte

// LiveStream is a broadcast hub for the learner's microphone audio. The
// session gateway publishes frames as they arrive from the client; the
// conversation agent forwarder and the utterance recorder each subscribe as
// read-only consumers so neither disturbs the other's audio path.
type LiveStream struct {
	sampleRate int

	mu     sync.Mutex
	subs   map[int]chan Frame
	nextID int
	closed bool
}

// NewLiveStream creates a stream carrying audio at the given sample rate.
func NewLiveStream(sampleRate int) *LiveStream {
	return &LiveStream{
		sampleRate: sampleRate,
		subs:       make(map[int]chan Frame),
	}
}

// SampleRate returns the rate of the published frames in Hz.
func (s *LiveStream) SampleRate() int {
	return s.sampleRate
}

// Subscribe registers a new consumer. The returned cancel function removes
// the subscription and closes its channel; it is safe to call more than once.
func (s *LiveStream) Subscribe() (<-chan Frame, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	ch := make(chan Frame, 64)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish fans a frame out to every subscriber. Slow consumers have frames
// dropped rather than blocking the publisher.
func (s *LiveStream) Publish(frame Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Close shuts the stream down and closes all subscriber channels.
func (s *LiveStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
