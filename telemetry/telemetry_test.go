package telemetry

import (
	"testing"
)

func TestInMemoryRecorder(t *testing.T) {
	r := NewInMemoryRecorder()
	r.RecordEvent("p1", "analysis", KindPhaseStarted, nil)
	r.RecordEvent("p1", "analysis", KindPhaseSucceeded, map[string]any{"rounds": 2})
	r.RecordEvent("p2", "design", KindPhaseStarted, nil)

	events := r.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != KindPhaseStarted || events[0].ProcessID != "p1" {
		t.Errorf("first event mismatch: %+v", events[0])
	}
	if events[1].Payload["rounds"] != 2 {
		t.Errorf("payload not carried: %+v", events[1])
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	kinds := r.Kinds("p1")
	if len(kinds) != 2 || kinds[0] != KindPhaseStarted || kinds[1] != KindPhaseSucceeded {
		t.Errorf("Kinds(p1) = %v", kinds)
	}
	if got := r.Kinds(""); len(got) != 3 {
		t.Errorf("Kinds(\"\") should match all, got %v", got)
	}
}

type panickingRecorder struct{}

func (panickingRecorder) RecordEvent(string, string, string, map[string]any) {
	panic("sink exploded")
}

func TestSafe_RecoversSinkPanic(t *testing.T) {
	r := Safe(panickingRecorder{}, nil)
	// Must not panic.
	r.RecordEvent("p1", "analysis", KindPhaseStarted, nil)
}

func TestSafe_NilInner(t *testing.T) {
	r := Safe(nil, nil)
	r.RecordEvent("p1", "", KindRunCompleted, nil)
}
