package repositories

import (
	"context"

	"github.com/satriahrh/vista/domain/entities"
)

// FrameSource captures still frames from the active camera
type FrameSource interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// MediaStream is an acquired camera or microphone stream
type MediaStream interface {
	ID() string
	// Stop stops all tracks of the stream
	Stop()
}

// StreamOpener acquires media streams for a device
type StreamOpener interface {
	Open(ctx context.Context, kind entities.DeviceKind, deviceID string) (MediaStream, error)
}
