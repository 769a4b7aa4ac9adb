package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/vista/adapters/stt"
	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/internal/supervisor"
	"github.com/satriahrh/vista/usecase"
)

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and one console session
type Client struct {
	hub *Hub

	// The websocket connection. Nil in tests that only exercise dispatch.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	outbox chan WriteData

	consoleID string
	logger    *zap.Logger
	validator *MessageValidator

	session    *usecase.Session
	frames     *remoteFrames
	synth      *remoteSynthesizer
	recognizer *remoteRecognizer
	streaming  *stt.StreamingRecognizer

	ctx    context.Context
	cancel context.CancelFunc
	// done is closed once the client stops accepting outbound messages
	done        chan struct{}
	unsubscribe func()

	mu     sync.Mutex
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, consoleID string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:       hub,
		conn:      conn,
		outbox:    make(chan WriteData, sendBufferSize),
		consoleID: consoleID,
		logger:    logger,
		validator: NewMessageValidator(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.frames = newRemoteFrames(c)
	return c
}

// start subscribes the client to its session and sends the first snapshot
func (c *Client) start() {
	c.unsubscribe = c.session.Journal().Subscribe(c)
	c.session.SetListener(c)
	c.session.Start()

	c.sendJSON(&SnapshotMessage{
		BaseMessage: newBase(MessageTypeSnapshot),
		Snapshot:    c.session.Snapshot(c.ctx),
	})
}

// Close ends the session and the connection. It is safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.cancel()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	if c.session != nil {
		c.session.Close()
	}
	close(c.outbox)
}

// send queues an outbound frame. Frames are dropped when the buffer is full
// so a slow console never blocks the session.
func (c *Client) send(data WriteData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.outbox <- data:
		return nil
	default:
		c.logger.Warn("Outbound buffer full, dropping message", zap.Int("type", data.Type))
		return errors.New("outbound buffer full")
	}
}

func (c *Client) sendJSON(message interface{}) error {
	data, err := marshalMessage(message)
	if err != nil {
		c.logger.Error("Failed to encode outbound message", zap.Error(err))
		return err
	}
	return c.send(data)
}

func (c *Client) sendError(code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	c.sendJSON(CreateErrorMessage(code, message, details))
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.Close()
		c.conn.Close()
	}()

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
			break
		}

		c.session.Touch()
		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.outbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
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

// processMessage validates and dispatches one message from the console.
// Anything that may wait on a console reply runs off the read loop.
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected console message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, "Invalid message", err)
		return
	}

	s := c.session
	switch msg := parsed.(type) {
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))

	case *SettingsMessage:
		c.reply(s.UpdateSettings(c.ctx, msg.Settings), "Settings rejected")
	case *DevicesMessage:
		if msg.Error != "" {
			s.ReportEnumerationError(msg.Error)
			return
		}
		s.UpdateDevices(msg.Devices)
	case *SelectDeviceMessage:
		c.reply(s.SelectDevice(c.ctx, msg.Kind, msg.DeviceID), "Device selection rejected")
	case *StreamErrorMessage:
		s.ReportStreamError(msg.Kind, msg.Message)

	case *TranscriptMessage:
		if c.fromCurrentRecognizer(msg.Instance) {
			s.Recognizer().OnTranscript(msg.Text, msg.Final)
		}
	case *RecognizerErrorMessage:
		if c.fromCurrentRecognizer(msg.Instance) {
			s.Recognizer().OnRecognizerError(msg.Code)
		}
	case *RecognizerEndMessage:
		if c.recognizer == nil || c.recognizer.ended(msg.Instance) {
			s.Recognizer().OnRecognizerEnd()
		} else {
			c.logger.Debug("Dropping end of a stopped recognizer", zap.Uint64("instance", msg.Instance))
		}
	case *SpeechEndMessage:
		if c.synth != nil {
			c.synth.ended(msg.Utterance)
		}
	case *TriggerCaptureMessage:
		c.reply(s.TriggerCapture(), "Capture unavailable")

	case *DetectionsMessage:
		s.IngestDetections(msg.Detections)
	case *HandsMessage:
		s.IngestHands(msg.Hands)
	case *AudioScoresMessage:
		s.IngestAudioScores(msg.Scores)
	case *AudioLevelMessage:
		s.IngestAudioLevel(msg.Average)
	case *FrameMessage:
		if !c.frames.resolve(msg) {
			c.logger.Debug("Dropping unrequested frame", zap.String("requestID", msg.RequestID))
		}

	case *ChatMessage:
		go c.reply(s.HandleChat(c.ctx, msg.Text), "Chat request dropped")
	case *SummarizeMessage:
		go c.reply(s.Summarize(c.ctx, msg.Minutes), "Summary request dropped")
	case *ClearLogMessage:
		s.ClearLog()
	}
}

// reply reports a rejected request back to the console
func (c *Client) reply(err error, message string) {
	if err == nil {
		return
	}
	code := ErrorCodeRejected
	if errors.Is(err, supervisor.ErrBusy) {
		code = ErrorCodeBusy
	}
	c.logger.Debug(message, zap.Error(err))
	c.sendError(code, message, err)
}

// fromCurrentRecognizer drops recognizer events of a stopped instance
func (c *Client) fromCurrentRecognizer(instance uint64) bool {
	if c.recognizer == nil || c.recognizer.current(instance) {
		return true
	}
	c.logger.Debug("Dropping event of a stopped recognizer", zap.Uint64("instance", instance))
	return false
}

// processBinaryAudioChunk feeds microphone audio to the server-side recognizer
func (c *Client) processBinaryAudioChunk(data []byte) {
	if c.streaming == nil {
		c.logger.Warn("Received binary audio chunk but server-side recognition is off",
			zap.Int("size", len(data)))
		return
	}
	if err := c.streaming.Feed(data); err != nil {
		c.logger.Error("Failed to stream audio data", zap.Error(err))
	}
}

// OnLogEntry implements journal.Observer
func (c *Client) OnLogEntry(entry entities.LogEntry) {
	c.sendJSON(&LogEntryMessage{BaseMessage: newBase(MessageTypeLogEntry), Entry: entry})
}

// OnLogCleared implements journal.Observer
func (c *Client) OnLogCleared(entry entities.LogEntry) {
	c.sendJSON(&LogEntryMessage{BaseMessage: newBase(MessageTypeLogCleared), Entry: entry})
}

// OnChatMessage implements journal.Observer
func (c *Client) OnChatMessage(msg entities.ChatMessage) {
	c.sendJSON(&ChatTurnMessage{BaseMessage: newBase(MessageTypeChatMessage), Message: msg})
}

// OnVoiceStatus implements usecase.SessionListener
func (c *Client) OnVoiceStatus(status entities.VoiceStatus) {
	c.sendJSON(&VoiceStatusMessage{BaseMessage: newBase(MessageTypeVoiceStatus), Status: status})
}

// OnInterimTranscript implements usecase.SessionListener
func (c *Client) OnInterimTranscript(text string) {
	c.sendJSON(&InterimTranscriptMessage{BaseMessage: newBase(MessageTypeInterimTranscript), Text: text})
}

// OnSettings implements usecase.SessionListener
func (c *Client) OnSettings(settings entities.Settings) {
	c.sendJSON(&SettingsChangedMessage{BaseMessage: newBase(MessageTypeSettingsChanged), Settings: settings})
}

// OnEntityState implements usecase.SessionListener
func (c *Client) OnEntityState(entity *entities.SmartHomeEntity) {
	c.sendJSON(&EntityStateMessage{BaseMessage: newBase(MessageTypeEntityState), Entity: entity})
}
