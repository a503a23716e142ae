package audit

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLogger_LogAndEvents(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	now := time.Now().Truncate(time.Millisecond)
	events := []Event{
		{Timestamp: now, Type: EventCreate, Sandbox: "demo", Details: "image=base:latest", Fields: map[string]string{"port": "40001"}},
		{Timestamp: now.Add(time.Second), Type: EventStop, Sandbox: "demo"},
		{Timestamp: now.Add(2 * time.Second), Type: EventStart, Sandbox: "demo"},
		{Timestamp: now.Add(3 * time.Second), Type: EventRemove, Sandbox: "demo", Details: "force=true"},
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	result, err := logger.Events("demo")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(result) != len(events) {
		t.Fatalf("got %d events, want %d", len(result), len(events))
	}

	for i, e := range result {
		if e.Type != events[i].Type {
			t.Errorf("event %d: type = %q, want %q", i, e.Type, events[i].Type)
		}
		if e.Details != events[i].Details {
			t.Errorf("event %d: details = %q, want %q", i, e.Details, events[i].Details)
		}
		if _, err := uuid.Parse(e.ID); err != nil {
			t.Errorf("event %d: id %q is not a uuid", i, e.ID)
		}
		if !e.Timestamp.Equal(events[i].Timestamp) {
			t.Errorf("event %d: timestamp = %v, want %v", i, e.Timestamp, events[i].Timestamp)
		}
	}
	if result[0].Fields["port"] != "40001" {
		t.Errorf("fields = %v", result[0].Fields)
	}
	if result[0].ID == result[1].ID {
		t.Error("event ids should be unique")
	}
}

func TestLogger_EventsEmpty(t *testing.T) {
	logger := NewLogger(t.TempDir())

	result, err := logger.Events("nonexistent")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("got %d events, want 0", len(result))
	}
}

func TestLogger_LogEvent(t *testing.T) {
	logger := NewLogger(t.TempDir())

	before := time.Now().UTC().Add(-time.Second)
	if err := logger.LogEvent(EventError, "demo", "engine start failed"); err != nil {
		t.Fatal(err)
	}

	result, err := logger.Events("demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || result[0].Type != EventError {
		t.Fatalf("events = %+v", result)
	}
	if result[0].Timestamp.Before(before) {
		t.Errorf("timestamp not filled in: %v", result[0].Timestamp)
	}
}

func TestLogger_BuildEventsSeparate(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	if err := logger.LogEvent(EventBuild, "", "tag=devbox:latest"); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "events", "_images.events.jsonl")); err != nil {
		t.Errorf("image log not written: %v", err)
	}
	result, _ := logger.Events("")
	if len(result) != 1 || result[0].Details != "tag=devbox:latest" {
		t.Errorf("events = %+v", result)
	}
}

func TestLogger_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(dir)

	if err := logger.LogEvent(EventCreate, "demo", ""); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(filepath.Join(logger.Dir(), "demo.events.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json\n\n")
	f.Close()
	if err := logger.LogEvent(EventStop, "demo", ""); err != nil {
		t.Fatal(err)
	}

	result, err := logger.Events("demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 2 {
		t.Errorf("got %d events, want 2", len(result))
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	logger := NewLogger(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := logger.LogEvent(EventStart, "demo", ""); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	result, err := logger.Events("demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 25 {
		t.Errorf("got %d events, want 25", len(result))
	}
}

func TestLogger_FileMode(t *testing.T) {
	logger := NewLogger(t.TempDir())
	if err := logger.LogEvent(EventCreate, "demo", ""); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(logger.Dir(), "demo.events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}
