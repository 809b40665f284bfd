package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventIngest            EventType = "ingest"
	EventDictionary        EventType = "dictionary"
	EventCostMap           EventType = "costmap"
	EventAlign             EventType = "align"
	EventInvocationFailure EventType = "invocation_failure"
	EventBatch             EventType = "batch"
	EventEvaluate          EventType = "evaluate"
	EventError             EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	l := EventLevel(s)
	if _, ok := levelPriority[l]; ok {
		return l
	}
	return LevelInfo
}

// Event is one line of the JSONL event log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	RunID     string            `json:"run_id,omitempty"`
	LineID    string            `json:"line_id,omitempty"`
	PeerID    string            `json:"peer_id,omitempty"`
	Track     string            `json:"track,omitempty"`
	Path      string            `json:"path,omitempty"`
	Count     int64             `json:"count,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil logger drops everything,
// so callers never need to check whether logging is enabled.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates events-<timestamp>.jsonl in outputDir. Events
// below minLevel are dropped.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("events-%s.jsonl", time.Now().Format("20060102-150405"))
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// LogIngest logs one corpus file turned into a melodic line
func (l *EventLogger) LogIngest(lineID, path string, gaps int, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	} else if gaps > 0 {
		level = LevelInfo
	}
	return l.Log(&Event{
		Level:  level,
		Event:  EventIngest,
		LineID: lineID,
		Path:   path,
		Count:  int64(gaps),
		Error:  errMsg,
	})
}

// LogDictionary logs a built track dictionary
func (l *EventLogger) LogDictionary(version, track string, size int, coverage float64) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventDictionary,
		Track: track,
		Count: int64(size),
		Extra: map[string]string{
			"version":  version,
			"coverage": strconv.FormatFloat(coverage, 'f', 4, 64),
		},
	})
}

// LogCostMap logs a written cost matrix
func (l *EventLogger) LogCostMap(track, path, mode string, symbols int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventCostMap,
		Track: track,
		Path:  path,
		Count: int64(symbols),
		Extra: map[string]string{"mode": mode},
	})
}

// LogAlignStart logs the start of an alignment run
func (l *EventLogger) LogAlignStart(runID, engine string, lines int, pairs int64, workers, batchSize int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventAlign,
		RunID: runID,
		Count: pairs,
		Extra: map[string]string{
			"phase":      "start",
			"engine":     engine,
			"lines":      strconv.Itoa(lines),
			"workers":    strconv.Itoa(workers),
			"batch_size": strconv.Itoa(batchSize),
		},
	})
}

// LogAlignFinish logs the end of an alignment run
func (l *EventLogger) LogAlignFinish(runID string, processed, failed int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventAlign,
		RunID:    runID,
		Count:    processed,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"phase":              "finish",
			"failed_invocations": strconv.FormatInt(failed, 10),
		},
	})
}

// LogInvocationFailure logs one failed track alignment
func (l *EventLogger) LogInvocationFailure(runID, lineID, peerID, track string, err error) error {
	return l.Log(&Event{
		Level:  LevelWarning,
		Event:  EventInvocationFailure,
		RunID:  runID,
		LineID: lineID,
		PeerID: peerID,
		Track:  track,
		Error:  err.Error(),
	})
}

// LogBatch logs one flushed result batch
func (l *EventLogger) LogBatch(runID string, size int, duration time.Duration, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventBatch,
		RunID:    runID,
		Count:    int64(size),
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogEvaluate logs a finished evaluation
func (l *EventLogger) LogEvaluate(attempts int, threshold float64, reportPath string) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventEvaluate,
		Path:  reportPath,
		Count: int64(attempts),
		Extra: map[string]string{
			"threshold": strconv.FormatFloat(threshold, 'g', -1, 64),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
