// Package journal holds the append-only event log and chat transcript of
// one console session.
package journal

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/satriahrh/vista/domain/entities"
)

// ClearedMessage is the single entry left after a clear
const ClearedMessage = "Log cleared."

// Observer is notified after every mutation, outside the journal lock
type Observer interface {
	OnLogEntry(entry entities.LogEntry)
	OnLogCleared(entry entities.LogEntry)
	OnChatMessage(msg entities.ChatMessage)
}

// Journal is safe for concurrent use
type Journal struct {
	clock clock.Clock

	mu        sync.RWMutex
	entries   []entities.LogEntry
	chat      []entities.ChatMessage
	nextLog   int64
	nextChat  int64
	observers map[int]Observer
	nextObs   int
}

// New creates an empty journal
func New(clk clock.Clock) *Journal {
	return &Journal{
		clock:     clk,
		observers: make(map[int]Observer),
	}
}

// Subscribe registers an observer and returns its cancel func
func (j *Journal) Subscribe(o Observer) func() {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextObs
	j.nextObs++
	j.observers[id] = o

	return func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		delete(j.observers, id)
	}
}

func (j *Journal) snapshotObservers() []Observer {
	observers := make([]Observer, 0, len(j.observers))
	for _, o := range j.observers {
		observers = append(observers, o)
	}
	return observers
}

// Log appends an entry
func (j *Journal) Log(logType entities.LogType, message string) entities.LogEntry {
	return j.LogMode(logType, "", message)
}

// LogMode appends an entry tagged with the analysis mode that produced it
func (j *Journal) LogMode(logType entities.LogType, mode entities.AnalysisMode, message string) entities.LogEntry {
	j.mu.Lock()
	entry := j.newEntry(logType, mode, message)
	j.entries = append(j.entries, entry)
	observers := j.snapshotObservers()
	j.mu.Unlock()

	for _, o := range observers {
		o.OnLogEntry(entry)
	}
	return entry
}

func (j *Journal) newEntry(logType entities.LogType, mode entities.AnalysisMode, message string) entities.LogEntry {
	j.nextLog++
	return entities.LogEntry{
		ID:        j.nextLog,
		Timestamp: j.clock.Now(),
		Type:      logType,
		Message:   message,
		Mode:      mode,
	}
}

// Clear drops every entry and leaves exactly one System entry behind
func (j *Journal) Clear() entities.LogEntry {
	j.mu.Lock()
	entry := j.newEntry(entities.LogTypeSystem, "", ClearedMessage)
	j.entries = []entities.LogEntry{entry}
	observers := j.snapshotObservers()
	j.mu.Unlock()

	for _, o := range observers {
		o.OnLogCleared(entry)
	}
	return entry
}

// Entries returns a copy of the log
func (j *Journal) Entries() []entities.LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]entities.LogEntry(nil), j.entries...)
}

// Recent returns entries at or after since whose type is one of types.
// No types means every type.
func (j *Journal) Recent(since time.Time, types ...entities.LogType) []entities.LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var recent []entities.LogEntry
	for _, entry := range j.entries {
		if entry.Timestamp.Before(since) {
			continue
		}
		if len(types) > 0 && !containsType(types, entry.Type) {
			continue
		}
		recent = append(recent, entry)
	}
	return recent
}

// LatestOf returns the newest entry of logType
func (j *Journal) LatestOf(logType entities.LogType) (entities.LogEntry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].Type == logType {
			return j.entries[i], true
		}
	}
	return entities.LogEntry{}, false
}

func containsType(types []entities.LogType, t entities.LogType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// AppendChat appends a chat turn, stamping its id and timestamp
func (j *Journal) AppendChat(msg entities.ChatMessage) entities.ChatMessage {
	j.mu.Lock()
	j.nextChat++
	msg.ID = j.nextChat
	msg.Timestamp = j.clock.Now()
	j.chat = append(j.chat, msg)
	observers := j.snapshotObservers()
	j.mu.Unlock()

	for _, o := range observers {
		o.OnChatMessage(msg)
	}
	return msg
}

// Chat returns a copy of the transcript
func (j *Journal) Chat() []entities.ChatMessage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]entities.ChatMessage(nil), j.chat...)
}
