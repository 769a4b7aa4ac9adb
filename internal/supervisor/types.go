package supervisor

import "time"

// TaskKind names a single-slot class of background work
type TaskKind string

const (
	TaskVision       TaskKind = "vision"
	TaskInterruption TaskKind = "interruption"
	TaskChat         TaskKind = "chat"
	TaskSummary      TaskKind = "summary"
)

// TaskState represents the lifecycle state of a task slot
type TaskState string

const (
	TaskStateIdle    TaskState = "idle"
	TaskStateRunning TaskState = "running"
)

// TaskEvent represents an event in a task's lifecycle
type TaskEvent struct {
	Kind      TaskKind  `json:"kind"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Event types
const (
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
	EventTaskSkipped   = "task_skipped"
)

// SlotStatus is a snapshot of one task slot
type SlotStatus struct {
	Kind      TaskKind   `json:"kind"`
	State     TaskState  `json:"state"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}
