package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
	"github.com/w3joe/eloquentai/internal/audio"
	"github.com/w3joe/eloquentai/internal/conversation"
	"github.com/w3joe/eloquentai/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Gateway turns each WebSocket connection into one practice session: binary
// frames feed the shared microphone stream, control messages drive the
// session controller, and controller notifications flow back as JSON.
type Gateway struct {
	agent    repositories.ConversationAgent
	assessor repositories.PronunciationAssessor
	feedback *usecase.FeedbackService
	store    repositories.FeedbackRepository
	logger   *zap.Logger
}

// NewGateway creates a new session gateway
func NewGateway(
	agent repositories.ConversationAgent,
	assessor repositories.PronunciationAssessor,
	feedback *usecase.FeedbackService,
	store repositories.FeedbackRepository,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		agent:    agent,
		assessor: assessor,
		feedback: feedback,
		store:    store,
		logger:   logger,
	}
}

// Handle upgrades the connection and runs the session until either side
// goes away.
func (g *Gateway) Handle(c echo.Context, sessionID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		g.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &client{
		gateway:   g,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
		logger:    g.logger,
	}

	go client.writePump()
	client.readPump()
	return nil
}

// client is a middleman between one websocket connection and its session
// controller.
type client struct {
	gateway *Gateway

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	sessionID string
	logger    *zap.Logger

	mu         sync.Mutex
	stream     *audio.LiveStream
	controller *conversation.Controller
	closed     bool
}

// readPump pumps messages from the websocket connection into the session.
func (c *client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.processControlMessage(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps outbound messages to the websocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) processControlMessage(message []byte) {
	var base struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		return
	}

	switch base.Type {
	case MessageTypeSessionStart:
		c.handleSessionStart(message)
	case MessageTypeEndSession:
		c.handleEndSession()
	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(base.Type)))
	}
}

func (c *client) processAudioFrame(data []byte) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		c.logger.Warn("Received audio frame before session start",
			zap.String("sessionID", c.sessionID))
		return
	}
	frame := make(audio.Frame, len(data))
	copy(frame, data)
	stream.Publish(frame)
}

func (c *client) handleSessionStart(message []byte) {
	var msg SessionStartMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Error("Failed to parse session start", zap.Error(err))
		c.sendError("Invalid session start message.")
		return
	}

	c.mu.Lock()
	if c.controller != nil {
		c.mu.Unlock()
		c.logger.Warn("Session already started", zap.String("sessionID", c.sessionID))
		return
	}

	sampleRate := msg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	stream := audio.NewLiveStream(sampleRate)
	c.stream = stream

	recorder := audio.NewStreamTapRecorder(c.gateway.assessor, msg.Language, c.logger)
	controller := conversation.NewController(conversation.Config{
		Agent:          c.gateway.agent,
		Microphone:     &clientMicrophone{stream: stream, granted: msg.MicGranted},
		Recorder:       recorder,
		Feedback:       c.gateway.feedback,
		Store:          c.gateway.store,
		Notifier:       (*clientNotifier)(c),
		Logger:         c.logger,
		SessionID:      c.sessionID,
		Scenario:       msg.Scenario,
		TargetLanguage: msg.Language,
		LearnerLevel:   msg.LearnerLevel,
	})
	c.controller = controller
	c.mu.Unlock()

	go func() {
		if err := controller.Start(context.Background()); err != nil {
			if errors.Is(err, conversation.ErrMicrophoneUnavailable) {
				c.sendError("We need microphone access to have a voice conversation.")
				return
			}
			c.logger.Error("Failed to start session",
				zap.String("sessionID", c.sessionID),
				zap.Error(err))
			c.sendError("Could not start the conversation. Please try again.")
		}
	}()
}

func (c *client) handleEndSession() {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()
	if controller == nil {
		return
	}

	go func() {
		if _, err := controller.End(context.Background()); err != nil {
			c.logger.Error("Failed to end session",
				zap.String("sessionID", c.sessionID),
				zap.Error(err))
		}
	}()
}

// teardown runs when the socket goes away. The session is stopped
// best-effort; the user has already left the flow.
func (c *client) teardown() {
	c.conn.Close()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stream := c.stream
	controller := c.controller
	close(c.send)
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if controller != nil {
		controller.Close()
	}
}

func (c *client) enqueue(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Dropping outbound message, client too slow",
			zap.String("sessionID", c.sessionID))
	}
}

func (c *client) sendError(message string) {
	c.enqueue(ErrorMessage{Type: MessageTypeError, Message: message})
}

// clientMicrophone hands the controller the stream the client is publishing
// into. Denial is reported by the client at session start.
type clientMicrophone struct {
	stream  *audio.LiveStream
	granted bool
}

func (m *clientMicrophone) Acquire(ctx context.Context) (*audio.LiveStream, error) {
	if !m.granted {
		return nil, errors.New("microphone permission denied by client")
	}
	return m.stream, nil
}

// clientNotifier forwards controller updates to the connected client.
type clientNotifier client

func (n *clientNotifier) StateChanged(state entities.SessionState) {
	c := (*client)(n)
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()
	micDenied := false
	if controller != nil {
		micDenied = controller.MicrophoneDenied()
	}
	c.enqueue(StateMessage{Type: MessageTypeState, State: state, MicDenied: micDenied})
}

func (n *clientNotifier) TranscriptAppended(entry entities.TranscriptEntry) {
	(*client)(n).enqueue(TranscriptMessage{Type: MessageTypeTranscript, Entry: entry})
}

func (n *clientNotifier) AssessmentAdded(assessment entities.PronunciationAssessment) {
	(*client)(n).enqueue(AssessmentMessage{Type: MessageTypeAssessment, Assessment: assessment})
}

func (n *clientNotifier) FeedbackReady(record entities.FeedbackRecord) {
	(*client)(n).enqueue(FeedbackMessage{Type: MessageTypeFeedback, Record: record})
}
