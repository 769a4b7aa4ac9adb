package supervisor

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ErrBusy is returned when a task of the same kind is already in flight
var ErrBusy = errors.New("task already in flight")

// ErrShutdown is returned once the manager has been shut down
var ErrShutdown = errors.New("supervisor shut down")

// Task is one unit of supervised work
type Task func(ctx context.Context) error

// Manager runs at most one task per kind. Work arriving while a slot is
// busy is dropped, never queued.
type Manager struct {
	logger    *zap.Logger
	clock     clock.Clock
	parent    context.Context
	cancelAll context.CancelFunc

	mu       sync.Mutex
	slots    map[TaskKind]*running
	shutdown bool
	wg       sync.WaitGroup

	eventChan chan TaskEvent
}

type running struct {
	cancel  context.CancelFunc
	started TaskEvent
}

// NewManager creates a new task supervisor
func NewManager(clk clock.Clock, logger *zap.Logger) *Manager {
	parent, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:    logger,
		clock:     clk,
		parent:    parent,
		cancelAll: cancel,
		slots:     make(map[TaskKind]*running),
		eventChan: make(chan TaskEvent, 100),
	}
}

// acquire claims the slot for kind
func (m *Manager) acquire(ctx context.Context, kind TaskKind) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil, ErrShutdown
	}
	if _, busy := m.slots[kind]; busy {
		return nil, ErrBusy
	}

	taskCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.parent, cancel)
	m.slots[kind] = &running{
		cancel: func() {
			stop()
			cancel()
		},
		started: TaskEvent{Kind: kind, Type: EventTaskStarted, Timestamp: m.clock.Now()},
	}
	m.wg.Add(1)
	return taskCtx, nil
}

func (m *Manager) release(kind TaskKind) {
	m.mu.Lock()
	if r, ok := m.slots[kind]; ok {
		r.cancel()
		delete(m.slots, kind)
	}
	m.mu.Unlock()
	m.wg.Done()
}

// Go starts task asynchronously. It returns false when the slot is busy
// or the manager is shut down.
func (m *Manager) Go(ctx context.Context, kind TaskKind, task Task) bool {
	taskCtx, err := m.acquire(ctx, kind)
	if err != nil {
		m.skipped(kind, err)
		return false
	}

	go m.run(taskCtx, kind, task)
	return true
}

// Do runs task inline, returning ErrBusy without running it when the slot
// is taken
func (m *Manager) Do(ctx context.Context, kind TaskKind, task Task) error {
	taskCtx, err := m.acquire(ctx, kind)
	if err != nil {
		m.skipped(kind, err)
		return err
	}

	return m.run(taskCtx, kind, task)
}

func (m *Manager) run(ctx context.Context, kind TaskKind, task Task) (err error) {
	defer m.release(kind)

	m.emitEvent(TaskEvent{Kind: kind, Type: EventTaskStarted, Timestamp: m.clock.Now()})

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Task panicked", zap.String("kind", string(kind)), zap.Any("panic", r))
			err = errors.New("task panicked")
			m.emitEvent(TaskEvent{Kind: kind, Type: EventTaskFailed, Timestamp: m.clock.Now(), Error: err.Error()})
		}
	}()

	if err = task(ctx); err != nil {
		m.logger.Debug("Task failed", zap.String("kind", string(kind)), zap.Error(err))
		m.emitEvent(TaskEvent{Kind: kind, Type: EventTaskFailed, Timestamp: m.clock.Now(), Error: err.Error()})
		return err
	}

	m.emitEvent(TaskEvent{Kind: kind, Type: EventTaskCompleted, Timestamp: m.clock.Now()})
	return nil
}

func (m *Manager) skipped(kind TaskKind, err error) {
	m.logger.Debug("Task skipped", zap.String("kind", string(kind)), zap.Error(err))
	m.emitEvent(TaskEvent{Kind: kind, Type: EventTaskSkipped, Timestamp: m.clock.Now(), Error: err.Error()})
}

// Busy reports whether a task of kind is in flight
func (m *Manager) Busy(kind TaskKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.slots[kind]
	return busy
}

// Cancel cancels the in-flight task of kind, if any. The slot frees once
// the task returns.
func (m *Manager) Cancel(kind TaskKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.slots[kind]; ok {
		r.cancel()
	}
}

// Status returns a snapshot of every known slot
func (m *Manager) Status() []SlotStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]SlotStatus, 0, 4)
	for _, kind := range []TaskKind{TaskVision, TaskInterruption, TaskChat, TaskSummary} {
		status := SlotStatus{Kind: kind, State: TaskStateIdle}
		if r, ok := m.slots[kind]; ok {
			startedAt := r.started.Timestamp
			status.State = TaskStateRunning
			status.StartedAt = &startedAt
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Shutdown cancels all tasks and waits for them to return or ctx to end
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()

	m.cancelAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) emitEvent(event TaskEvent) {
	select {
	case m.eventChan <- event:
	default:
		m.logger.Debug("Event channel full, dropping event", zap.String("type", event.Type))
	}
}

// EventChannel returns the event channel for listening to task events
func (m *Manager) EventChannel() <-chan TaskEvent {
	return m.eventChan
}
