// Package audit records sandbox lifecycle events as JSON Lines, one file
// per sandbox under {stateDir}/events. The log is history for humans and
// the events command; nothing reads it to answer lifecycle queries.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventCreate EventType = "create"
	EventStart  EventType = "start"
	EventStop   EventType = "stop"
	EventRemove EventType = "remove"
	EventBuild  EventType = "build"
	EventError  EventType = "error"
)

// imageLog holds events that are not tied to one sandbox. The leading
// underscore cannot start a valid alias.
const imageLog = "_images"

// Event represents a single audit log entry.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Sandbox   string            `json:"sandbox,omitempty"`
	Details   string            `json:"details,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Logger writes and reads audit events.
type Logger struct {
	stateDir string
	mu       sync.Mutex
}

// NewLogger creates a new audit logger rooted at stateDir.
func NewLogger(stateDir string) *Logger {
	return &Logger{stateDir: stateDir}
}

// Dir returns the directory holding the event files.
func (l *Logger) Dir() string {
	return filepath.Join(l.stateDir, "events")
}

func (l *Logger) eventPath(sandbox string) string {
	if sandbox == "" {
		sandbox = imageLog
	}
	return filepath.Join(l.Dir(), sandbox+".events.jsonl")
}

// Log appends an event, filling in the ID and timestamp when unset.
func (l *Logger) Log(event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.eventPath(event.Sandbox)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, sandbox, details string) error {
	return l.Log(Event{Type: eventType, Sandbox: sandbox, Details: details})
}

// Events reads all events for a sandbox in the order they were written.
// An empty sandbox name reads the image build log.
func (l *Logger) Events(sandbox string) ([]Event, error) {
	f, err := os.Open(l.eventPath(sandbox))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}
	return events, nil
}
