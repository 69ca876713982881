package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/adapters/agent"
	"github.com/w3joe/eloquentai/adapters/llm"
	"github.com/w3joe/eloquentai/adapters/memory"
	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
	"github.com/w3joe/eloquentai/internal/audio"
	"github.com/w3joe/eloquentai/usecase"
)

const feedbackJSON = `{
	"fluencyScore": 85,
	"corrections": [{"original": "yo es", "correction": "yo soy", "explanation": "ser conjugation"}],
	"vocabulary": [{"word": "cafe", "translation": "coffee", "example": "Quiero un cafe."}],
	"summary": "Good session overall.",
	"focusTip": "Practice ser vs estar."
}`

type fakeMic struct {
	stream *audio.LiveStream
	err    error
}

func (m *fakeMic) Acquire(ctx context.Context) (*audio.LiveStream, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stream, nil
}

// fakeRecorder scripts Assess results and records the lifecycle call order.
type fakeRecorder struct {
	mu       sync.Mutex
	attached *audio.LiveStream
	ops      []string
	assessed int
	results  []*entities.PronunciationAssessment
}

func (r *fakeRecorder) Attach(stream *audio.LiveStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = stream
}

func (r *fakeRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, "start")
}

func (r *fakeRecorder) Stop() *audio.Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, "stop")
	return &audio.Capture{}
}

func (r *fakeRecorder) Assess(ctx context.Context, capture *audio.Capture) (*entities.PronunciationAssessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.assessed
	r.assessed++
	if idx >= len(r.results) {
		return nil, nil
	}
	return r.results[idx], nil
}

func (r *fakeRecorder) counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.ops {
		if op == "start" {
			starts++
		} else {
			stops++
		}
	}
	return starts, stops
}

func (r *fakeRecorder) sequence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	copy(out, r.ops)
	return out
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu          sync.Mutex
	states      []entities.SessionState
	transcript  []entities.TranscriptEntry
	assessments []entities.PronunciationAssessment
	feedback    []entities.FeedbackRecord
}

func (n *recordingNotifier) StateChanged(state entities.SessionState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func (n *recordingNotifier) TranscriptAppended(entry entities.TranscriptEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transcript = append(n.transcript, entry)
}

func (n *recordingNotifier) AssessmentAdded(a entities.PronunciationAssessment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assessments = append(n.assessments, a)
}

func (n *recordingNotifier) FeedbackReady(record entities.FeedbackRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feedback = append(n.feedback, record)
}

func (n *recordingNotifier) assessmentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.assessments)
}

func (n *recordingNotifier) transcriptCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transcript)
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

type fixture struct {
	controller *Controller
	agent      *agent.MockAgent
	recorder   *fakeRecorder
	notifier   *recordingNotifier
	store      *memory.Store
	generator  *llm.MockGenerationService
	stream     *audio.LiveStream
}

func newFixture(t *testing.T, micErr error) *fixture {
	t.Helper()
	logger := zap.NewNop()
	stream := audio.NewLiveStream(48000)
	mockAgent := &agent.MockAgent{}
	recorder := &fakeRecorder{}
	notifier := &recordingNotifier{}
	store := memory.NewStore()
	generator := llm.NewMockGenerationService(feedbackJSON)

	controller := NewController(Config{
		Agent:      mockAgent,
		Microphone: &fakeMic{stream: stream, err: micErr},
		Recorder:   recorder,
		Feedback:   usecase.NewFeedbackService(generator, logger),
		Store:      memory.FeedbackRepository{Store: store},
		Notifier:   notifier,
		Logger:     logger,
		SessionID:  "session-test",
		Scenario: entities.Scenario{
			Title: "Ordering Coffee",
			Scene: "You walk into a small cafe in Madrid.",
			Character: entities.Character{
				Name: "Lucia",
				Role: "Barista",
			},
		},
		TargetLanguage: "es",
		LearnerLevel:   "Intermediate",
	})

	return &fixture{
		controller: controller,
		agent:      mockAgent,
		recorder:   recorder,
		notifier:   notifier,
		store:      store,
		generator:  generator,
		stream:     stream,
	}
}

func (f *fixture) session(t *testing.T) *agent.MockSession {
	t.Helper()
	sessions := f.agent.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 agent session, got %d", len(sessions))
	}
	return sessions[0]
}

func TestStartMicrophoneDenied(t *testing.T) {
	f := newFixture(t, errors.New("permission denied"))

	err := f.controller.Start(context.Background())
	if !errors.Is(err, ErrMicrophoneUnavailable) {
		t.Fatalf("Expected ErrMicrophoneUnavailable, got %v", err)
	}
	if f.controller.State() != entities.SessionStateError {
		t.Errorf("Expected error state, got %s", f.controller.State())
	}
	if !f.controller.MicrophoneDenied() {
		t.Error("Expected microphone denied flag to be set")
	}
	if len(f.agent.Sessions()) != 0 {
		t.Error("Expected agent session to never be started")
	}
}

func TestModeTogglesDriveUtteranceLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.recorder.results = []*entities.PronunciationAssessment{
		{
			Transcript: "un cafe por favor",
			Words: []entities.PronunciationWord{
				{Word: "un", AccuracyScore: 90},
				{Word: "cafe", AccuracyScore: 80},
			},
		},
	}

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	session := f.session(t)

	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})
	waitFor(t, "controller never reached listening", func() bool {
		return f.controller.State() == entities.SessionStateListening
	})

	// Agent starts talking without a prior listening toggle: no buffer is
	// open, nothing to finalize.
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})
	waitFor(t, "controller never reached agent_speaking", func() bool {
		return f.controller.State() == entities.SessionStateAgentSpeaking
	})
	if _, stops := f.recorder.counts(); stops != 0 {
		t.Errorf("Expected no stop without an open utterance, got %d", stops)
	}

	// Listening opens a buffer, speaking closes and scores it.
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeListening})
	waitFor(t, "recorder was never started", func() bool {
		starts, _ := f.recorder.counts()
		return starts == 1
	})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})
	waitFor(t, "assessment never surfaced", func() bool {
		return f.notifier.assessmentCount() == 1
	})
	if _, stops := f.recorder.counts(); stops != 1 {
		t.Errorf("Expected exactly one stop, got %d", stops)
	}

	// Duplicate speaking toggles must not close the buffer again.
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventMessage, Source: entities.TranscriptRoleAgent, Text: "Aqui tiene."})
	waitFor(t, "transcript entry never surfaced", func() bool {
		return f.notifier.transcriptCount() == 1
	})
	if _, stops := f.recorder.counts(); stops != 1 {
		t.Errorf("Expected still one stop after duplicate speaking, got %d", stops)
	}

	if len(f.controller.Session().Assessments) != 1 {
		t.Errorf("Expected 1 stored assessment, got %d", len(f.controller.Session().Assessments))
	}
}

func TestEndBuildsAndPersistsFeedback(t *testing.T) {
	f := newFixture(t, nil)
	f.recorder.results = []*entities.PronunciationAssessment{
		{
			Transcript: "un cafe por favor",
			Words: []entities.PronunciationWord{
				{Word: "un", AccuracyScore: 90},
				{Word: "cafe", AccuracyScore: 55},
			},
		},
	}

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	session := f.session(t)

	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeListening})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventMessage, Source: entities.TranscriptRoleUser, Text: "Un cafe por favor"})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})
	waitFor(t, "assessment never surfaced", func() bool {
		return f.notifier.assessmentCount() == 1
	})

	record, err := f.controller.End(context.Background())
	if err != nil {
		t.Fatalf("Unexpected end error: %v", err)
	}
	if record.FluencyScore != 85 {
		t.Errorf("Expected fluency score 85, got %d", record.FluencyScore)
	}
	if record.ScenarioName != "Ordering Coffee" {
		t.Errorf("Unexpected scenario name: %s", record.ScenarioName)
	}
	if record.Language != "Spanish" {
		t.Errorf("Expected language Spanish, got %s", record.Language)
	}
	if len(record.Pronunciation) != 1 {
		t.Errorf("Expected 1 assessment on the record, got %d", len(record.Pronunciation))
	}
	// (90 + 55) / 2 = 72.5 rounds to 73
	if record.PronunciationScore != 73 {
		t.Errorf("Expected pronunciation score 73, got %d", record.PronunciationScore)
	}
	if f.controller.State() != entities.SessionStateEnded {
		t.Errorf("Expected ended state, got %s", f.controller.State())
	}
	if !session.Ended() {
		t.Error("Expected agent session to be stopped")
	}

	stored, err := f.store.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("Unexpected store error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected exactly 1 persisted record, got %d", len(stored))
	}
}

func TestEndIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	session := f.session(t)
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})

	first, err := f.controller.End(context.Background())
	if err != nil {
		t.Fatalf("Unexpected end error: %v", err)
	}
	second, err := f.controller.End(context.Background())
	if err != nil {
		t.Fatalf("Unexpected second end error: %v", err)
	}
	if first != second {
		t.Error("Expected second End to return the first record")
	}

	stored, err := f.store.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("Unexpected store error: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("Expected exactly 1 persisted record, got %d", len(stored))
	}
}

func TestGenerationFailureProducesDegradedRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.Err = errors.New("model unavailable")
	f.recorder.results = []*entities.PronunciationAssessment{
		{
			Transcript: "un cafe por favor",
			Words: []entities.PronunciationWord{
				{Word: "un", AccuracyScore: 90},
				{Word: "cafe", AccuracyScore: 80},
			},
		},
	}

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	session := f.session(t)
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeListening})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})
	waitFor(t, "assessment never surfaced", func() bool {
		return f.notifier.assessmentCount() == 1
	})

	record, err := f.controller.End(context.Background())
	if err != nil {
		t.Fatalf("Expected degraded record instead of error, got %v", err)
	}
	if record.FluencyScore != 0 {
		t.Errorf("Expected fluency score 0 on degraded record, got %d", record.FluencyScore)
	}
	if len(record.Corrections) != 0 || len(record.Vocabulary) != 0 {
		t.Error("Expected empty corrections and vocabulary on degraded record")
	}
	if record.Summary == "" {
		t.Error("Expected explanatory summary on degraded record")
	}
	if len(record.Pronunciation) != 1 {
		t.Errorf("Expected assessments preserved on degraded record, got %d", len(record.Pronunciation))
	}
	if record.PronunciationScore != 85 {
		t.Errorf("Expected pronunciation score 85, got %d", record.PronunciationScore)
	}
	if f.controller.State() != entities.SessionStateEnded {
		t.Errorf("Expected ended state, got %s", f.controller.State())
	}

	stored, err := f.store.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("Unexpected store error: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("Expected exactly 1 persisted record, got %d", len(stored))
	}
}

func TestDisconnectEndsSession(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	session := f.session(t)
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventDisconnected})

	waitFor(t, "session never ended after disconnect", func() bool {
		return f.controller.State() == entities.SessionStateEnded
	})

	stored, err := f.store.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("Unexpected store error: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("Expected 1 persisted record after disconnect, got %d", len(stored))
	}
}

func TestBackToBackTurnFlipsCloseBufferBeforeNextStart(t *testing.T) {
	f := newFixture(t, nil)
	f.recorder.results = []*entities.PronunciationAssessment{
		{
			Transcript: "un cafe",
			Words: []entities.PronunciationWord{
				{Word: "un", AccuracyScore: 90},
				{Word: "cafe", AccuracyScore: 80},
			},
		},
		{
			Transcript: "con leche",
			Words: []entities.PronunciationWord{
				{Word: "con", AccuracyScore: 85},
				{Word: "leche", AccuracyScore: 75},
			},
		},
	}

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	session := f.session(t)

	// Interruptions and VAD flips arrive back to back with no pause between
	// turns. Every buffer must still be closed before the next one opens.
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeListening})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeListening})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})

	waitFor(t, "assessments never surfaced", func() bool {
		return f.notifier.assessmentCount() == 2
	})

	want := []string{"start", "stop", "start", "stop"}
	got := f.recorder.sequence()
	if len(got) != len(want) {
		t.Fatalf("Expected lifecycle %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected lifecycle %v, got %v", want, got)
		}
	}

	if len(f.controller.Session().Assessments) != 2 {
		t.Errorf("Expected both utterances scored, got %d", len(f.controller.Session().Assessments))
	}
}

// slowGenerator stalls so End stays in the feedback phase long enough for a
// second caller to arrive.
type slowGenerator struct {
	delay    time.Duration
	response string
}

func (g *slowGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(g.delay):
	}
	return g.response, nil
}

func TestConcurrentEndWaitsForFirstRecord(t *testing.T) {
	logger := zap.NewNop()
	stream := audio.NewLiveStream(48000)
	mockAgent := &agent.MockAgent{}
	store := memory.NewStore()

	controller := NewController(Config{
		Agent:          mockAgent,
		Microphone:     &fakeMic{stream: stream},
		Recorder:       &fakeRecorder{},
		Feedback:       usecase.NewFeedbackService(&slowGenerator{delay: 100 * time.Millisecond, response: feedbackJSON}, logger),
		Store:          memory.FeedbackRepository{Store: store},
		Notifier:       &recordingNotifier{},
		Logger:         logger,
		SessionID:      "session-test",
		Scenario:       entities.Scenario{Title: "Ordering Coffee"},
		TargetLanguage: "es",
	})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}

	records := make(chan *entities.FeedbackRecord, 2)
	for i := 0; i < 2; i++ {
		go func() {
			record, err := controller.End(context.Background())
			if err != nil {
				t.Errorf("Unexpected end error: %v", err)
			}
			records <- record
		}()
	}

	first := <-records
	second := <-records
	if first == nil || second == nil {
		t.Fatal("Expected both End calls to return a record")
	}
	if first != second {
		t.Error("Expected both End calls to return the same record")
	}

	stored, err := store.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("Unexpected store error: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("Expected exactly 1 persisted record, got %d", len(stored))
	}
}

func TestTranscriptAppendsAreNeverGated(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.controller.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected start error: %v", err)
	}
	session := f.session(t)

	// Messages arriving before connected and in every mode still land.
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventMessage, Source: entities.TranscriptRoleAgent, Text: "Hola!"})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventModeChanged, Mode: repositories.AgentModeSpeaking})
	session.Emit(repositories.AgentEvent{Kind: repositories.AgentEventMessage, Source: entities.TranscriptRoleUser, Text: "Buenos dias"})

	waitFor(t, "transcript entries never surfaced", func() bool {
		return f.notifier.transcriptCount() == 2
	})

	transcript := f.controller.Session().Transcript
	if len(transcript) != 2 {
		t.Fatalf("Expected 2 transcript entries, got %d", len(transcript))
	}
	if transcript[0].Text != "Hola!" || transcript[1].Text != "Buenos dias" {
		t.Error("Expected transcript entries in arrival order")
	}
}
