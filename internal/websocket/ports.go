package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/usecase"
)

// ErrClientClosed is returned by remote ports once the console disconnected
var ErrClientClosed = errors.New("console disconnected")

// remoteRecognizer drives the browser speech recognizer. Every start opens
// a new instance; the console echoes its id so events from a stopped
// instance are dropped.
type remoteRecognizer struct {
	client *Client

	mu       sync.Mutex
	instance uint64
	active   bool
}

var _ repositories.SpeechRecognizer = (*remoteRecognizer)(nil)

func (r *remoteRecognizer) Start() error {
	r.mu.Lock()
	r.instance++
	instance := r.instance
	r.active = true
	r.mu.Unlock()

	err := r.client.sendJSON(&RecognizerMessage{BaseMessage: newBase(MessageTypeRecognizer), Action: "start", Instance: instance})
	if err != nil {
		r.mu.Lock()
		if r.instance == instance {
			r.active = false
		}
		r.mu.Unlock()
	}
	return err
}

func (r *remoteRecognizer) Stop() {
	r.mu.Lock()
	instance := r.instance
	r.active = false
	r.mu.Unlock()

	r.client.sendJSON(&RecognizerMessage{BaseMessage: newBase(MessageTypeRecognizer), Action: "stop", Instance: instance})
}

// current reports whether instance is the running recognizer
func (r *remoteRecognizer) current(instance uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active && r.instance == instance
}

// ended marks instance stopped if it is the running recognizer
func (r *remoteRecognizer) ended(instance uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.instance != instance {
		return false
	}
	r.active = false
	return true
}

// remoteSynthesizer drives the browser speech synthesizer. The console
// reports the end of each utterance with speech_end.
type remoteSynthesizer struct {
	client *Client

	mu        sync.Mutex
	utterance uint64
	done      func()
}

var _ repositories.SpeechSynthesizer = (*remoteSynthesizer)(nil)

func (s *remoteSynthesizer) Speak(ctx context.Context, text string, done func()) error {
	s.mu.Lock()
	previous := s.done
	s.utterance++
	utterance := s.utterance
	s.done = done
	s.mu.Unlock()

	if previous != nil {
		previous()
	}

	err := s.client.sendJSON(&SpeakMessage{BaseMessage: newBase(MessageTypeSpeak), Utterance: utterance, Text: text})
	if err != nil {
		s.take(utterance)
		return err
	}
	return nil
}

func (s *remoteSynthesizer) Cancel() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	s.client.sendJSON(&BaseMessage{Type: MessageTypeSpeakCancel})
	done()
}

// ended handles speech_end from the console
func (s *remoteSynthesizer) ended(utterance uint64) {
	if done := s.take(utterance); done != nil {
		done()
	}
}

func (s *remoteSynthesizer) take(utterance uint64) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.utterance != utterance {
		return nil
	}
	done := s.done
	s.done = nil
	return done
}

// frameReply is the console answer to a capture_frame request
type frameReply struct {
	data []byte
	err  error
}

// remoteFrames captures frames from the console camera
type remoteFrames struct {
	client *Client

	mu      sync.Mutex
	pending map[string]chan frameReply
}

var _ repositories.FrameSource = (*remoteFrames)(nil)

func newRemoteFrames(client *Client) *remoteFrames {
	return &remoteFrames{client: client, pending: make(map[string]chan frameReply)}
}

func (f *remoteFrames) CaptureFrame(ctx context.Context) ([]byte, error) {
	requestID := uuid.New().String()
	reply := make(chan frameReply, 1)

	f.mu.Lock()
	f.pending[requestID] = reply
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.pending, requestID)
		f.mu.Unlock()
	}()

	if err := f.client.sendJSON(&CaptureFrameMessage{BaseMessage: newBase(MessageTypeCaptureFrame), RequestID: requestID}); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.client.done:
		return nil, ErrClientClosed
	}
}

// resolve handles a frame message; unknown or late replies are dropped
func (f *remoteFrames) resolve(msg *FrameMessage) bool {
	f.mu.Lock()
	reply, ok := f.pending[msg.RequestID]
	f.mu.Unlock()
	if !ok {
		return false
	}

	var r frameReply
	if msg.Error != "" {
		r.err = fmt.Errorf("console capture failed: %s", msg.Error)
	} else {
		r.data, r.err = usecase.DecodeImageData(msg.Data)
	}
	select {
	case reply <- r:
	default:
		// a duplicate reply already filled the slot
	}
	return true
}

// remoteStreams opens media streams on the console. Opening does not wait
// for the browser; permission and device failures arrive as stream_error.
type remoteStreams struct {
	client *Client
}

var _ repositories.StreamOpener = remoteStreams{}

func (o remoteStreams) Open(ctx context.Context, kind entities.DeviceKind, deviceID string) (repositories.MediaStream, error) {
	stream := &remoteStream{client: o.client, id: uuid.New().String()}
	err := o.client.sendJSON(&StreamMessage{
		BaseMessage: newBase(MessageTypeOpenStream),
		StreamID:    stream.id,
		Kind:        kind,
		DeviceID:    deviceID,
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

type remoteStream struct {
	client *Client
	id     string
	once   sync.Once
}

func (s *remoteStream) ID() string { return s.id }

func (s *remoteStream) Stop() {
	s.once.Do(func() {
		s.client.sendJSON(&StreamMessage{BaseMessage: newBase(MessageTypeCloseStream), StreamID: s.id})
	})
}

// audioSink forwards server-side narration audio as binary frames
type audioSink struct {
	client      *Client
	contentType string

	mu      sync.Mutex
	started uint64
}

func (a *audioSink) WriteAudio(utterance uint64, chunk []byte) error {
	a.mu.Lock()
	first := a.started != utterance
	a.started = utterance
	a.mu.Unlock()

	if first {
		err := a.client.sendJSON(&SpeakAudioMessage{
			BaseMessage: newBase(MessageTypeSpeakAudio),
			Utterance:   utterance,
			ContentType: a.contentType,
		})
		if err != nil {
			return err
		}
	}
	return a.client.send(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
}

func (a *audioSink) EndAudio(utterance uint64) {
	a.client.sendJSON(&SpeakAudioMessage{BaseMessage: newBase(MessageTypeSpeakAudioEnd), Utterance: utterance})
}
