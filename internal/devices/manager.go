// Package devices tracks the console's cameras and microphones and owns the
// streams acquired from them.
package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/vista/domain/entities"
	"github.com/satriahrh/vista/domain/repositories"
)

// PermissionMessage is logged when the console cannot enumerate devices
const PermissionMessage = "Could not access media devices. Please grant camera and microphone permissions."

var (
	// ErrUnknownDevice is returned when selecting a device that is not present
	ErrUnknownDevice = errors.New("unknown media device")
	// ErrNoDevice is returned when acquiring a kind with nothing selected
	ErrNoDevice = errors.New("no media device selected")
)

// Logger records user-visible events
type Logger interface {
	Log(logType entities.LogType, message string) entities.LogEntry
}

var kinds = []entities.DeviceKind{entities.DeviceKindVideoInput, entities.DeviceKindAudioInput}

func kindName(kind entities.DeviceKind) string {
	if kind == entities.DeviceKindVideoInput {
		return "camera"
	}
	return "microphone"
}

// Manager holds the device list, the selection per kind and at most one
// acquired stream per kind
type Manager struct {
	opener repositories.StreamOpener
	events Logger
	logger *zap.Logger

	mu       sync.Mutex
	devices  []entities.MediaDevice
	selected map[entities.DeviceKind]string
	streams  map[entities.DeviceKind]repositories.MediaStream
	missing  map[entities.DeviceKind]bool
	disabled map[entities.DeviceKind]bool
}

// NewManager creates a device manager
func NewManager(opener repositories.StreamOpener, events Logger, logger *zap.Logger) *Manager {
	return &Manager{
		opener:   opener,
		events:   events,
		logger:   logger,
		selected: make(map[entities.DeviceKind]string),
		streams:  make(map[entities.DeviceKind]repositories.MediaStream),
		missing:  make(map[entities.DeviceKind]bool),
		disabled: make(map[entities.DeviceKind]bool),
	}
}

// UpdateDevices handles a device enumeration or device-change event. A
// selection that disappeared falls back to the first device of its kind.
func (m *Manager) UpdateDevices(list []entities.MediaDevice) {
	type logLine struct {
		logType entities.LogType
		message string
	}
	var lines []logLine

	m.mu.Lock()
	m.devices = append([]entities.MediaDevice(nil), list...)

	for _, kind := range kinds {
		current := m.selected[kind]
		if current != "" && m.find(kind, current) != nil {
			continue
		}

		first := m.first(kind)
		if first == nil {
			delete(m.selected, kind)
			if !m.missing[kind] {
				m.missing[kind] = true
				lines = append(lines, logLine{entities.LogTypeError, fmt.Sprintf("No %s found.", kindName(kind))})
			}
			continue
		}

		m.missing[kind] = false
		m.selected[kind] = first.DeviceID
		if current != "" {
			lines = append(lines, logLine{entities.LogTypeSystem,
				fmt.Sprintf("Selected %s disconnected. Switched to %s.", kindName(kind), labelOf(*first))})
		}
	}
	m.mu.Unlock()

	for _, line := range lines {
		m.events.Log(line.logType, line.message)
	}
}

// ReportEnumerationError records that devices could not be listed
func (m *Manager) ReportEnumerationError(reason string) {
	m.logger.Warn("Device enumeration failed", zap.String("reason", reason))
	m.events.Log(entities.LogTypeError, PermissionMessage)
}

// Devices returns the known devices
func (m *Manager) Devices() []entities.MediaDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.MediaDevice(nil), m.devices...)
}

// Select changes the selected device of a kind. It reports whether the
// selection changed.
func (m *Manager) Select(kind entities.DeviceKind, deviceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(kind, deviceID) == nil {
		return false, fmt.Errorf("%w: %s %q", ErrUnknownDevice, kind, deviceID)
	}
	if m.selected[kind] == deviceID {
		return false, nil
	}
	m.selected[kind] = deviceID
	return true, nil
}

// Selected returns the selected device id of a kind
func (m *Manager) Selected(kind entities.DeviceKind) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.selected[kind]
	return id, ok
}

// Ready reports whether both a camera and a microphone are selected
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected[entities.DeviceKindVideoInput] != "" && m.selected[entities.DeviceKindAudioInput] != ""
}

// Acquire opens a stream on the selected device of kind. The previous
// stream of that kind is stopped before the new one is opened.
func (m *Manager) Acquire(ctx context.Context, kind entities.DeviceKind) (repositories.MediaStream, error) {
	m.mu.Lock()
	deviceID := m.selected[kind]
	if deviceID == "" {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, kind)
	}

	if previous, ok := m.streams[kind]; ok {
		previous.Stop()
		delete(m.streams, kind)
	}

	stream, err := m.opener.Open(ctx, kind, deviceID)
	if err != nil {
		report := !m.disabled[kind]
		m.disabled[kind] = true
		m.mu.Unlock()

		m.logger.Error("Failed to open media stream",
			zap.String("kind", string(kind)),
			zap.String("device_id", deviceID),
			zap.Error(err))
		if report {
			m.events.Log(entities.LogTypeError, fmt.Sprintf("Error accessing %s: %v", kindName(kind), err))
		}
		return nil, fmt.Errorf("open %s stream: %w", kind, err)
	}

	m.streams[kind] = stream
	m.disabled[kind] = false
	m.mu.Unlock()
	return stream, nil
}

// Release stops the stream of kind, if any
func (m *Manager) Release(kind entities.DeviceKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stream, ok := m.streams[kind]; ok {
		stream.Stop()
		delete(m.streams, kind)
	}
}

// ReleaseAll stops every acquired stream
func (m *Manager) ReleaseAll() {
	for _, kind := range kinds {
		m.Release(kind)
	}
}

// Stream returns the acquired stream of kind
func (m *Manager) Stream(kind entities.DeviceKind) (repositories.MediaStream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stream, ok := m.streams[kind]
	return stream, ok
}

// ReportStreamError handles a permission or device error on an acquired
// stream. The device stays disabled until it is acquired again, and the
// error is logged once per failure.
func (m *Manager) ReportStreamError(kind entities.DeviceKind, message string) {
	m.mu.Lock()
	if m.disabled[kind] {
		m.mu.Unlock()
		return
	}
	m.disabled[kind] = true
	if stream, ok := m.streams[kind]; ok {
		stream.Stop()
		delete(m.streams, kind)
	}
	m.mu.Unlock()

	m.events.Log(entities.LogTypeError, fmt.Sprintf("Error accessing %s: %s", kindName(kind), message))
}

// Disabled reports whether kind is disabled after an error
func (m *Manager) Disabled(kind entities.DeviceKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disabled[kind]
}

func (m *Manager) find(kind entities.DeviceKind, id string) *entities.MediaDevice {
	for i := range m.devices {
		if m.devices[i].Kind == kind && m.devices[i].DeviceID == id {
			return &m.devices[i]
		}
	}
	return nil
}

func (m *Manager) first(kind entities.DeviceKind) *entities.MediaDevice {
	for i := range m.devices {
		if m.devices[i].Kind == kind {
			return &m.devices[i]
		}
	}
	return nil
}

func labelOf(d entities.MediaDevice) string {
	if d.Label != "" {
		return d.Label
	}
	return d.DeviceID
}
