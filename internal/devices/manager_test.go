package devices

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
	"github.com/satriahrh/vista/internal/journal"
)

type fakeStream struct {
	id      string
	stopped bool
	opener  *fakeOpener
}

func (s *fakeStream) ID() string { return s.id }
func (s *fakeStream) Stop() {
	s.stopped = true
	s.opener.events = append(s.opener.events, "stop "+s.id)
}

type fakeOpener struct {
	events []string
	opened int
	fail   bool
}

func (o *fakeOpener) Open(ctx context.Context, kind entities.DeviceKind, deviceID string) (repositories.MediaStream, error) {
	if o.fail {
		return nil, errors.New("NotAllowedError")
	}
	o.opened++
	id := fmt.Sprintf("%s-%d", deviceID, o.opened)
	o.events = append(o.events, "open "+id)
	return &fakeStream{id: id, opener: o}, nil
}

var (
	cam1 = entities.MediaDevice{DeviceID: "cam1", Kind: entities.DeviceKindVideoInput, Label: "Front"}
	cam2 = entities.MediaDevice{DeviceID: "cam2", Kind: entities.DeviceKindVideoInput, Label: "Rear"}
	mic1 = entities.MediaDevice{DeviceID: "mic1", Kind: entities.DeviceKindAudioInput, Label: "Built-in"}
)

func newTestManager(t *testing.T) (*Manager, *fakeOpener, *journal.Journal) {
	opener := &fakeOpener{}
	j := journal.New(clock.NewMock())
	return NewManager(opener, j, zaptest.NewLogger(t)), opener, j
}

func TestManager_UpdateDevicesSelectsFirst(t *testing.T) {
	m, _, j := newTestManager(t)

	m.UpdateDevices([]entities.MediaDevice{cam1, cam2, mic1})
	if id, _ := m.Selected(entities.DeviceKindVideoInput); id != "cam1" {
		t.Errorf("expected cam1 selected, got %q", id)
	}
	if !m.Ready() {
		t.Error("expected manager to be ready")
	}
	if len(j.Entries()) != 0 {
		t.Errorf("initial selection should not log, got %+v", j.Entries())
	}

	if _, err := m.Select(entities.DeviceKindVideoInput, "cam2"); err != nil {
		t.Fatalf("select: %v", err)
	}

	// cam2 unplugged
	m.UpdateDevices([]entities.MediaDevice{cam1, mic1})
	if id, _ := m.Selected(entities.DeviceKindVideoInput); id != "cam1" {
		t.Errorf("expected fallback to cam1, got %q", id)
	}
	entries := j.Entries()
	if len(entries) != 1 || entries[0].Type != entities.LogTypeSystem {
		t.Fatalf("expected one system entry, got %+v", entries)
	}
}

func TestManager_MissingKindLoggedOnce(t *testing.T) {
	m, _, j := newTestManager(t)

	m.UpdateDevices([]entities.MediaDevice{cam1})
	m.UpdateDevices([]entities.MediaDevice{cam1})

	entries := j.Entries()
	if len(entries) != 1 || entries[0].Type != entities.LogTypeError || entries[0].Message != "No microphone found." {
		t.Fatalf("expected a single missing-microphone error, got %+v", entries)
	}
	if m.Ready() {
		t.Error("manager must not be ready without a microphone")
	}
}

func TestManager_SelectUnknown(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.UpdateDevices([]entities.MediaDevice{cam1, mic1})

	_, err := m.Select(entities.DeviceKindAudioInput, "cam1")
	if !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("expected ErrUnknownDevice, got %v", err)
	}

	changed, err := m.Select(entities.DeviceKindVideoInput, "cam1")
	if err != nil || changed {
		t.Errorf("reselecting the same device should be a no-op, got %v %v", changed, err)
	}
}

func TestManager_AcquireStopsPreviousFirst(t *testing.T) {
	m, opener, _ := newTestManager(t)
	m.UpdateDevices([]entities.MediaDevice{cam1, cam2, mic1})

	if _, err := m.Acquire(context.Background(), entities.DeviceKindVideoInput); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.Select(entities.DeviceKindVideoInput, "cam2")
	if _, err := m.Acquire(context.Background(), entities.DeviceKindVideoInput); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := m.Acquire(context.Background(), entities.DeviceKindAudioInput); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.ReleaseAll()

	want := []string{"open cam1-1", "stop cam1-1", "open cam2-2", "open mic1-3", "stop cam2-2", "stop mic1-3"}
	if fmt.Sprint(opener.events) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", opener.events, want)
	}
	if _, ok := m.Stream(entities.DeviceKindVideoInput); ok {
		t.Error("expected no stream after ReleaseAll")
	}
}

func TestManager_AcquireWithoutSelection(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Acquire(context.Background(), entities.DeviceKindAudioInput)
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
}

func TestManager_StreamError(t *testing.T) {
	m, opener, j := newTestManager(t)
	m.UpdateDevices([]entities.MediaDevice{cam1, mic1})
	m.Acquire(context.Background(), entities.DeviceKindVideoInput)

	m.ReportStreamError(entities.DeviceKindVideoInput, "Permission denied")
	m.ReportStreamError(entities.DeviceKindVideoInput, "Permission denied")

	entries := j.Entries()
	if len(entries) != 1 || entries[0].Message != "Error accessing camera: Permission denied" {
		t.Fatalf("expected one error entry, got %+v", entries)
	}
	if !m.Disabled(entities.DeviceKindVideoInput) {
		t.Error("expected camera disabled")
	}
	if _, ok := m.Stream(entities.DeviceKindVideoInput); ok {
		t.Error("expected stream stopped")
	}

	if _, err := m.Acquire(context.Background(), entities.DeviceKindVideoInput); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if m.Disabled(entities.DeviceKindVideoInput) {
		t.Error("reacquiring should re-enable the camera")
	}

	opener.fail = true
	if _, err := m.Acquire(context.Background(), entities.DeviceKindVideoInput); err == nil {
		t.Error("expected open failure")
	}
	if !m.Disabled(entities.DeviceKindVideoInput) {
		t.Error("failed acquire leaves the device disabled")
	}
}

func TestManager_AcquireFailureLoggedOnce(t *testing.T) {
	m, opener, j := newTestManager(t)
	m.UpdateDevices([]entities.MediaDevice{cam1, mic1})
	opener.fail = true

	m.Acquire(context.Background(), entities.DeviceKindAudioInput)
	m.Acquire(context.Background(), entities.DeviceKindAudioInput)
	m.ReportStreamError(entities.DeviceKindAudioInput, "NotAllowedError")

	entries := j.Entries()
	if len(entries) != 1 || entries[0].Message != "Error accessing microphone: NotAllowedError" {
		t.Fatalf("expected one error entry, got %+v", entries)
	}
}
