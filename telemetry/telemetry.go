// Package telemetry records per-agent activity classification and per-phase
// outcomes. Recorders are purely observational: a failing or panicking sink
// must never affect orchestration control flow, which Safe guarantees.
package telemetry

import (
	"sync"
	"time"

	"github.com/taskweave/taskweave/logging"
)

// Event kinds emitted by the orchestration core.
const (
	KindPhaseStarted   = "phase_started"
	KindPhaseSucceeded = "phase_succeeded"
	KindPhaseFailed    = "phase_failed"
	KindRunCompleted   = "run_completed"
	KindRunFailed      = "run_failed"
	KindRoundCompleted = "round_completed"
	KindAgentTurn      = "agent_turn"
	KindToolCall       = "tool_call"
)

// Recorder is the fire-and-forget telemetry sink contract.
type Recorder interface {
	RecordEvent(processID, phase, kind string, payload map[string]any)
}

// NoOpRecorder discards all events.
type NoOpRecorder struct{}

// RecordEvent implements Recorder.
func (NoOpRecorder) RecordEvent(string, string, string, map[string]any) {}

// Event is one recorded telemetry entry.
type Event struct {
	ProcessID string
	Phase     string
	Kind      string
	Payload   map[string]any
	Timestamp time.Time
}

// InMemoryRecorder accumulates events for inspection. Safe for concurrent use.
type InMemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemoryRecorder creates an empty in-memory recorder.
func NewInMemoryRecorder() *InMemoryRecorder { return &InMemoryRecorder{} }

// RecordEvent implements Recorder.
func (r *InMemoryRecorder) RecordEvent(processID, phase, kind string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		ProcessID: processID,
		Phase:     phase,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// Events returns a defensive copy of all recorded events.
func (r *InMemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the ordered kinds of all recorded events, optionally filtered
// by process ID (empty matches all).
func (r *InMemoryRecorder) Kinds(processID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if processID == "" || ev.ProcessID == processID {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// safeRecorder shields orchestration from misbehaving sinks.
type safeRecorder struct {
	inner  Recorder
	logger logging.Logger
}

// Safe wraps a Recorder so that panics in the sink are recovered and logged
// instead of propagating into the pipeline. A nil inner recorder yields a
// no-op recorder.
func Safe(inner Recorder, logger logging.Logger) Recorder {
	if inner == nil {
		inner = NoOpRecorder{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &safeRecorder{inner: inner, logger: logger}
}

// RecordEvent implements Recorder.
func (s *safeRecorder) RecordEvent(processID, phase, kind string, payload map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn("telemetry sink panicked", "kind", kind, "panic", rec)
		}
	}()
	s.inner.RecordEvent(processID, phase, kind, payload)
}
