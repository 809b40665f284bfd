package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("Failed to decode line %d: %v", len(events)+1, err)
		}
		events = append(events, e)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(filepath.Join(tmpDir, "logs"), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}

	filename := filepath.Base(logger.Path())
	if !strings.HasPrefix(filename, "events-") || !strings.HasSuffix(filename, ".jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLogger_PipelineEvents(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogIngest("bach_fugue_1_0_0", "/corpus/a.json", 2, nil)
	logger.LogDictionary("v1", "chromatic", 20, 0.97)
	logger.LogCostMap("rhythmic", "/maps/global/rhythmic_cost_map.bin", "global", 20)
	logger.LogAlignStart("run-1", "inprocess", 4, 6, 8, 100)
	logger.LogInvocationFailure("run-1", "a", "b", "diatonic", errors.New("exit 3"))
	logger.LogBatch("run-1", 6, 15*time.Millisecond, nil)
	logger.LogAlignFinish("run-1", 6, 1, time.Second, nil)
	logger.LogEvaluate(12, 10, "/out/evaluation.md")
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 8 {
		t.Fatalf("Expected 8 events, got %d", len(events))
	}

	want := []EventType{
		EventIngest, EventDictionary, EventCostMap, EventAlign,
		EventInvocationFailure, EventBatch, EventAlign, EventEvaluate,
	}
	for i, e := range events {
		if e.Event != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], e.Event)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("event %d: timestamp not set", i)
		}
	}

	failure := events[4]
	if failure.Level != LevelWarning || failure.LineID != "a" || failure.PeerID != "b" || failure.Track != "diatonic" {
		t.Errorf("unexpected invocation failure event: %+v", failure)
	}
	if events[1].Extra["coverage"] != "0.9700" {
		t.Errorf("expected coverage 0.9700, got %s", events[1].Extra["coverage"])
	}
	if events[3].Extra["phase"] != "start" || events[3].Count != 6 {
		t.Errorf("unexpected align start event: %+v", events[3])
	}
	if events[6].Duration != 1000 || events[6].Extra["failed_invocations"] != "1" {
		t.Errorf("unexpected align finish event: %+v", events[6])
	}
}

func TestEventLogger_ErrorLevels(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	logger.LogIngest("", "/corpus/bad.json", 0, errors.New("invalid token"))
	logger.LogBatch("run-1", 100, 0, errors.New("disk I/O error"))
	logger.LogError(EventAlign, "/db/fuga.db", errors.New("locked"))
	logger.Close()

	for _, e := range readEvents(t, logger.Path()) {
		if e.Level != LevelError || e.Error == "" {
			t.Errorf("expected error level with message, got %+v", e)
		}
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				if err := logger.LogInvocationFailure("run", "a", "b", "chromatic", errors.New("boom")); err != nil {
					t.Errorf("Concurrent log failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	logger.Close()

	if got := len(readEvents(t, logger.Path())); got != numGoroutines*eventsPerGoroutine {
		t.Errorf("Expected %d events, got %d", numGoroutines*eventsPerGoroutine, got)
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.LogIngest("x", "/x.json", 0, nil); err != nil {
		t.Errorf("NullLogger should not error, got: %v", err)
	}
	if err := logger.LogBatch("run", 1, 0, nil); err != nil {
		t.Errorf("NullLogger should not error, got: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger Close should not error, got: %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("NullLogger path should be empty, got %q", logger.Path())
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		minLevel EventLevel
		expected int
	}{
		{"debug keeps everything", LevelDebug, 4},
		{"info drops debug", LevelInfo, 3},
		{"warning keeps warnings and errors", LevelWarning, 2},
		{"error keeps errors", LevelError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewEventLogger(t.TempDir(), tt.minLevel)
			if err != nil {
				t.Fatalf("NewEventLogger failed: %v", err)
			}

			// one event per level, debug to error
			logger.LogBatch("run", 100, 0, nil)
			logger.LogDictionary("v1", "chromatic", 20, 1)
			logger.LogInvocationFailure("run", "a", "b", "rhythmic", errors.New("x"))
			logger.LogError(EventError, "/db", errors.New("fatal"))
			logger.Close()

			if got := len(readEvents(t, logger.Path())); got != tt.expected {
				t.Errorf("Expected %d events, got %d", tt.expected, got)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != LevelDebug {
		t.Error("expected debug")
	}
	if ParseLevel("chatty") != LevelInfo {
		t.Error("expected unknown levels to default to info")
	}
}
