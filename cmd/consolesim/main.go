// Command consolesim drives a VISTA brain the way a browser console would.
// It answers frame captures with a placeholder image and reports every
// narrated line as finished right away.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	gorilla "github.com/gorilla/websocket"
	cli "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/internal/api"
	"github.com/satriahrh/vista/internal/websocket"
)

// placeholderFrame stands in for a camera JPEG
var placeholderFrame = base64.StdEncoding.EncodeToString([]byte("consolesim frame"))

type console struct {
	conn   *gorilla.Conn
	mu     sync.Mutex
	logger *zap.Logger
	// recognizer is the instance of the last recognizer start
	recognizer atomic.Uint64
}

func main() {
	server := cli.StringP("server", "s", "http://localhost:8080", "Brain base URL")
	accessKey := cli.StringP("key", "k", "", "Console access key")
	wake := cli.StringP("wake", "w", "hey jarvis", "Wake phrase spoken before each command")
	says := cli.StringArrayP("say", "c", []string{"turn on the desk lamp"}, "Command to speak, repeatable")
	pause := cli.DurationP("pause", "p", 1500*time.Millisecond, "Pause between utterances")
	linger := cli.Duration("linger", 5*time.Second, "How long to keep listening after the last command")
	cli.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *accessKey == "" {
		logger.Fatal("--key is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth, err := authenticate(ctx, *server, *accessKey)
	if err != nil {
		logger.Fatal("Authentication failed", zap.Error(err))
	}
	logger.Info("Authenticated", zap.String("console_id", auth.ConsoleID), zap.Time("expires_at", auth.ExpiresAt))

	wsURL, err := websocketURL(*server)
	if err != nil {
		logger.Fatal("Invalid server URL", zap.Error(err))
	}
	conn, _, err := gorilla.DefaultDialer.DialContext(ctx, wsURL, http.Header{
		"Authorization": []string{"Bearer " + auth.Token},
	})
	if err != nil {
		logger.Fatal("WebSocket dial failed", zap.Error(err))
	}
	defer conn.Close()

	c := &console{conn: conn, logger: logger}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(c.readLoop)
	g.Go(func() error {
		err := c.script(gctx, *wake, *says, *pause, *linger)
		conn.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
		return err
	})
	if err := g.Wait(); err != nil && !gorilla.IsCloseError(err, gorilla.CloseNormalClosure) {
		logger.Warn("Console stopped", zap.Error(err))
	}
}

func authenticate(ctx context.Context, server, accessKey string) (api.ConsoleAuthResponse, error) {
	body, _ := json.Marshal(api.ConsoleAuthRequest{AccessKey: accessKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(server, "/")+"/api/v1/console/auth", bytes.NewReader(body))
	if err != nil {
		return api.ConsoleAuthResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return api.ConsoleAuthResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&e)
		return api.ConsoleAuthResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, e.Message)
	}
	var out api.ConsoleAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return api.ConsoleAuthResponse{}, fmt.Errorf("decode auth response: %w", err)
	}
	return out, nil
}

func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// script announces devices, activates the console, then speaks each
// command behind the wake phrase
func (c *console) script(ctx context.Context, wake string, says []string, pause, linger time.Duration) error {
	steps := []interface{}{
		websocket.DevicesMessage{
			BaseMessage: base(websocket.MessageTypeDevices),
			Devices: []entities.MediaDevice{
				{DeviceID: "sim-cam", Kind: entities.DeviceKindVideoInput, Label: "Simulated camera"},
				{DeviceID: "sim-mic", Kind: entities.DeviceKindAudioInput, Label: "Simulated microphone"},
			},
		},
	}
	settings := entities.DefaultSettings()
	settings.SystemActive = true
	settings.VoiceActivation = true
	settings.WakeWordMode = true
	steps = append(steps, websocket.SettingsMessage{BaseMessage: base(websocket.MessageTypeSettings), Settings: settings})

	for _, step := range steps {
		if err := c.send(step); err != nil {
			return err
		}
	}

	for _, say := range says {
		for _, text := range []string{wake, say} {
			if !sleep(ctx, pause) {
				return ctx.Err()
			}
			c.logger.Info("Speaking", zap.String("text", text))
			err := c.send(websocket.TranscriptMessage{
				BaseMessage: base(websocket.MessageTypeTranscript),
				Instance:    c.recognizer.Load(),
				Text:        text,
				Final:       true,
			})
			if err != nil {
				return err
			}
		}
	}

	sleep(ctx, linger)
	return nil
}

func (c *console) readLoop() error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.handle(data); err != nil {
			return err
		}
	}
}

func (c *console) handle(data []byte) error {
	var head websocket.BaseMessage
	if err := json.Unmarshal(data, &head); err != nil {
		// binary narration audio
		return nil
	}

	switch head.Type {
	case websocket.MessageTypeSpeak:
		var msg websocket.SpeakMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		c.logger.Info("VISTA says", zap.String("text", msg.Text))
		return c.send(websocket.SpeechEndMessage{BaseMessage: base(websocket.MessageTypeSpeechEnd), Utterance: msg.Utterance})

	case websocket.MessageTypeRecognizer:
		var msg websocket.RecognizerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		if msg.Action == "start" {
			c.recognizer.Store(msg.Instance)
		}

	case websocket.MessageTypeCaptureFrame:
		var msg websocket.CaptureFrameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		return c.send(websocket.FrameMessage{BaseMessage: base(websocket.MessageTypeFrame), RequestID: msg.RequestID, Data: placeholderFrame})

	case websocket.MessageTypeLogEntry:
		var msg websocket.LogEntryMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		c.logger.Info("Log", zap.String("type", string(msg.Entry.Type)), zap.String("message", msg.Entry.Message))

	case websocket.MessageTypeError:
		var msg websocket.ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		c.logger.Warn("Brain rejected a message", zap.String("code", msg.Code), zap.String("message", msg.Message))

	default:
		c.logger.Debug("Received", zap.String("type", string(head.Type)))
	}
	return nil
}

func (c *console) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func base(t websocket.MessageType) websocket.BaseMessage {
	return websocket.BaseMessage{Type: t, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
