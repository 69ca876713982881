package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
)

const defaultEndpoint = "wss://api.elevenlabs.io/v1/convai/conversation"

// vadThreshold is the voice-activity score above which the learner is
// considered to be speaking, flipping the session back to listening mode.
const vadThreshold = 0.6

// ElevenLabsAgent implements ConversationAgent against the ElevenLabs
// conversational AI WebSocket API.
type ElevenLabsAgent struct {
	agentID  string
	apiKey   string
	endpoint string
	logger   *zap.Logger
}

// NewElevenLabsAgent creates an agent client from ELEVENLABS_AGENT_ID and
// (optionally) ELEVENLABS_API_KEY.
func NewElevenLabsAgent(logger *zap.Logger) (*ElevenLabsAgent, error) {
	agentID := os.Getenv("ELEVENLABS_AGENT_ID")
	if agentID == "" {
		return nil, fmt.Errorf("ELEVENLABS_AGENT_ID environment variable is required")
	}
	endpoint := os.Getenv("ELEVENLABS_WS_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &ElevenLabsAgent{
		agentID:  agentID,
		apiKey:   os.Getenv("ELEVENLABS_API_KEY"),
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// StartSession dials the agent service and sends the scenario context as a
// conversation override.
func (a *ElevenLabsAgent) StartSession(ctx context.Context, config repositories.AgentSessionConfig) (repositories.AgentSession, error) {
	header := http.Header{}
	if a.apiKey != "" {
		header.Set("xi-api-key", a.apiKey)
	}

	url := fmt.Sprintf("%s?agent_id=%s", a.endpoint, a.agentID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent service: %w", err)
	}

	session := &elevenLabsSession{
		conn:   conn,
		events: make(chan repositories.AgentEvent, 32),
		logger: a.logger,
	}

	if err := session.writeJSON(initiationPayload(config)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send session config: %w", err)
	}

	go session.readLoop()
	return session, nil
}

func initiationPayload(config repositories.AgentSessionConfig) map[string]interface{} {
	prompt := []string{
		"## Scenario Context",
		"Character name: " + config.Scenario.Character.Name,
		"Character role: " + config.Scenario.Character.Role,
		"Personality: " + config.Scenario.Character.Personality,
		"Scene: " + config.Scenario.Scene,
		"Language: " + config.TargetLanguage,
		"Student level: " + config.LearnerLevel,
	}
	if len(config.Scenario.Tips) > 0 {
		prompt = append(prompt, "Conversation tips for the student: "+strings.Join(config.Scenario.Tips, "; "))
	}

	return map[string]interface{}{
		"type": "conversation_initiation_client_data",
		"conversation_config_override": map[string]interface{}{
			"agent": map[string]interface{}{
				"prompt": map[string]interface{}{
					"prompt": strings.Join(prompt, "\n"),
				},
				"first_message": config.FirstMessage,
			},
		},
	}
}

type elevenLabsSession struct {
	conn   *websocket.Conn
	events chan repositories.AgentEvent
	logger *zap.Logger

	writeMu  sync.Mutex
	stateMu  sync.Mutex
	speaking bool
	ended    bool
}

func (s *elevenLabsSession) Events() <-chan repositories.AgentEvent {
	return s.events
}

func (s *elevenLabsSession) Speaking() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.speaking
}

// SendAudio forwards one chunk of learner audio upstream.
func (s *elevenLabsSession) SendAudio(pcm []byte) error {
	return s.writeJSON(map[string]interface{}{
		"user_audio_chunk": base64.StdEncoding.EncodeToString(pcm),
	})
}

// End closes the session. Safe to call multiple times.
func (s *elevenLabsSession) End() error {
	s.stateMu.Lock()
	if s.ended {
		s.stateMu.Unlock()
		return nil
	}
	s.ended = true
	s.stateMu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

func (s *elevenLabsSession) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

type upstreamMessage struct {
	Type                   string `json:"type"`
	UserTranscriptionEvent struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`
	AgentResponseEvent struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`
	VadScoreEvent struct {
		VadScore float64 `json:"vad_score"`
	} `json:"vad_score_event"`
	PingEvent struct {
		EventID int `json:"event_id"`
	} `json:"ping_event"`
}

// readLoop normalizes upstream protocol messages into agent events. It owns
// the events channel and closes it when the transport goes away.
func (s *elevenLabsSession) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.stateMu.Lock()
			ended := s.ended
			s.stateMu.Unlock()
			if !ended && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(repositories.AgentEvent{
					Kind: repositories.AgentEventError,
					Text: err.Error(),
				})
			}
			s.emit(repositories.AgentEvent{Kind: repositories.AgentEventDisconnected})
			return
		}

		var msg upstreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("Failed to parse agent message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "conversation_initiation_metadata":
			s.emit(repositories.AgentEvent{Kind: repositories.AgentEventConnected})

		case "user_transcript":
			s.emit(repositories.AgentEvent{
				Kind:   repositories.AgentEventMessage,
				Source: entities.TranscriptRoleUser,
				Text:   msg.UserTranscriptionEvent.UserTranscript,
			})

		case "agent_response":
			s.emit(repositories.AgentEvent{
				Kind:   repositories.AgentEventMessage,
				Source: entities.TranscriptRoleAgent,
				Text:   msg.AgentResponseEvent.AgentResponse,
			})

		case "audio":
			s.setMode(true)

		case "interruption", "agent_response_correction":
			s.setMode(false)

		case "vad_score":
			if msg.VadScoreEvent.VadScore >= vadThreshold {
				s.setMode(false)
			}

		case "ping":
			if err := s.writeJSON(map[string]interface{}{
				"type":     "pong",
				"event_id": msg.PingEvent.EventID,
			}); err != nil {
				s.logger.Warn("Failed to answer ping", zap.Error(err))
			}
		}
	}
}

// setMode tracks whose turn it is and emits a mode change on transitions.
func (s *elevenLabsSession) setMode(speaking bool) {
	s.stateMu.Lock()
	changed := s.speaking != speaking
	s.speaking = speaking
	s.stateMu.Unlock()
	if !changed {
		return
	}

	mode := repositories.AgentModeListening
	if speaking {
		mode = repositories.AgentModeSpeaking
	}
	s.emit(repositories.AgentEvent{
		Kind: repositories.AgentEventModeChanged,
		Mode: mode,
	})
}

func (s *elevenLabsSession) emit(ev repositories.AgentEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("Dropping agent event, consumer too slow",
			zap.String("kind", string(ev.Kind)))
	}
}
