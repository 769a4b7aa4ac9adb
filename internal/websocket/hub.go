package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/vista/adapters/stt"
	"github.com/satriahrh/vista/adapters/tts"
	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Frames carry base64 JPEGs.
	maxMessageSize = 2 * 1024 * 1024

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// consoles authenticate with a bearer token, not cookies
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServerSpeech holds the optional server-side speech adapters. A nil field
// leaves that capability to the console browser.
type ServerSpeech struct {
	STT         repositories.SpeechToText
	TTS         repositories.TextToSpeech
	AudioConfig repositories.AudioConfig
	ContentType string
}

// Hub maintains the set of connected consoles, one client per console id
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	// stopped is closed when Run returns
	stopped chan struct{}

	mu sync.RWMutex

	services usecase.Services
	config   usecase.SessionConfig
	speech   ServerSpeech
	clock    clock.Clock

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	services usecase.Services,
	config usecase.SessionConfig,
	speech ServerSpeech,
	clk clock.Clock,
	logger *zap.Logger,
) *Hub {
	if speech.STT != nil && speech.AudioConfig.SampleRate == 0 {
		speech.AudioConfig = stt.DefaultAudioConfig
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		services:   services,
		config:     config,
		speech:     speech,
		clock:      clk,
		logger:     logger,
	}
}

// Run starts the hub's main loop. A console that reconnects replaces its
// previous connection. All clients are closed when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			previous := h.clients[client.consoleID]
			h.clients[client.consoleID] = client
			h.mu.Unlock()
			if previous != nil {
				h.logger.Info("Console reconnected, closing previous connection", zap.String("consoleID", client.consoleID))
				go previous.Close()
			}
			h.logger.Info("Console registered", zap.String("consoleID", client.consoleID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.consoleID]; ok && current == client {
				delete(h.clients, client.consoleID)
			}
			h.mu.Unlock()
			h.logger.Info("Console unregistered", zap.String("consoleID", client.consoleID))

		case <-ctx.Done():
			h.mu.Lock()
			clients := make([]*Client, 0, len(h.clients))
			for id, c := range h.clients {
				clients = append(clients, c)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			for _, c := range clients {
				c.Close()
			}
			return
		}
	}
}

// GetActiveConsoles returns the ids of connected consoles
func (h *Hub) GetActiveConsoles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Sessions returns a descriptor of every connected console session
func (h *Hub) Sessions() []entities.ConsoleSession {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sessions := make([]entities.ConsoleSession, 0, len(clients))
	for _, c := range clients {
		sessions = append(sessions, c.session.Descriptor())
	}
	return sessions
}

// SendToConsole queues a JSON message for one console
func (h *Hub) SendToConsole(consoleID string, message interface{}) error {
	h.mu.RLock()
	client, ok := h.clients[consoleID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("console %s not connected", consoleID)
	}
	return client.sendJSON(message)
}

// CloseIdle closes every console that has been silent longer than d
func (h *Hub) CloseIdle(d time.Duration) int {
	h.mu.RLock()
	var idle []*Client
	for _, c := range h.clients {
		if c.session.Idle(d) {
			idle = append(idle, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range idle {
		h.logger.Info("Closing idle console", zap.String("consoleID", c.consoleID))
		c.Close()
	}
	return len(idle)
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// newSession wires a console session to the client's remote ports
func (h *Hub) newSession(c *Client) *usecase.Session {
	info := entities.NewConsoleSession(uuid.New().String(), c.consoleID)

	ports := usecase.Ports{
		Synthesizer: &remoteSynthesizer{client: c},
		Frames:      c.frames,
		Streams:     remoteStreams{client: c},
		Recognizer: func(sink repositories.TranscriptSink) repositories.SpeechRecognizer {
			c.recognizer = &remoteRecognizer{client: c}
			return c.recognizer
		},
	}
	if h.speech.STT != nil {
		ports.Recognizer = func(sink repositories.TranscriptSink) repositories.SpeechRecognizer {
			c.streaming = stt.NewStreamingRecognizer(h.speech.STT, h.speech.AudioConfig, sink, c.logger)
			return c.streaming
		}
	}
	if h.speech.TTS != nil {
		ports.Synthesizer = tts.NewStreamingSynthesizer(h.speech.TTS, &audioSink{client: c, contentType: h.speech.ContentType}, c.logger)
	}
	if synth, ok := ports.Synthesizer.(*remoteSynthesizer); ok {
		c.synth = synth
	}

	return usecase.NewSession(info, h.config, h.services, ports, h.clock, c.logger)
}

// HandleWebSocketWithAuth handles websocket requests with a pre-authenticated console id
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, consoleID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, consoleID, logger.With(zap.String("consoleID", consoleID)))
	client.session = hub.newSession(client)

	select {
	case hub.register <- client:
	case <-hub.stopped:
		client.Close()
		conn.Close()
		return nil
	}
	client.start()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func marshalMessage(message interface{}) (WriteData, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return WriteData{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	return WriteData{Type: websocket.TextMessage, Payload: payload}, nil
}
