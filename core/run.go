package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/taskweave/taskweave/failure"
)

// RunStatus is the overall status of a ProcessRun.
type RunStatus string

const (
	// RunPending marks a run created but not yet started.
	RunPending RunStatus = "pending"
	// RunRunning marks a run with an active phase.
	RunRunning RunStatus = "running"
	// RunCompleted marks a run whose final phase succeeded.
	RunCompleted RunStatus = "completed"
	// RunFailed marks a run terminated by a phase failure.
	RunFailed RunStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool { return s == RunCompleted || s == RunFailed }

// PhaseStatus is the lifecycle status of a single phase.
type PhaseStatus string

const (
	// PhaseNotStarted marks a phase awaiting its turn.
	PhaseNotStarted PhaseStatus = "not_started"
	// PhaseRunning marks the single active phase of a run.
	PhaseRunning PhaseStatus = "running"
	// PhaseSucceeded marks a phase that produced a result payload.
	PhaseSucceeded PhaseStatus = "succeeded"
	// PhaseFailed marks a phase terminated with a failure record.
	PhaseFailed PhaseStatus = "failed"
)

// PhaseState is the per-phase record of a ProcessRun. Transitions are
// monotonic (not_started -> running -> succeeded|failed); once terminal the
// record is immutable.
type PhaseState struct {
	Name      string          `json:"name"`
	Status    PhaseStatus     `json:"status"`
	Payload   []byte          `json:"payload,omitempty"`
	Failure   *failure.Record `json:"failure,omitempty"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// Terminal reports whether the phase reached an end state.
func (p *PhaseState) Terminal() bool {
	return p.Status == PhaseSucceeded || p.Status == PhaseFailed
}

// ProcessRun is one end-to-end pipeline execution. It tracks the fixed phase
// sequence, the single active phase and the overall status. Safe for
// concurrent access; the orchestrator is the only writer.
type ProcessRun struct {
	id      string
	input   string
	status  RunStatus
	phases  []*PhaseState
	current string
	created time.Time
	updated time.Time
	mu      sync.RWMutex
}

// NewProcessRun creates a pending run for the given ordered phase names.
func NewProcessRun(input string, phaseNames []string) *ProcessRun {
	now := time.Now().UTC()
	phases := make([]*PhaseState, 0, len(phaseNames))
	for _, name := range phaseNames {
		phases = append(phases, &PhaseState{Name: name, Status: PhaseNotStarted})
	}
	return &ProcessRun{
		id:      NewID(),
		input:   input,
		status:  RunPending,
		phases:  phases,
		created: now,
		updated: now,
	}
}

// ID returns the unique run identifier.
func (r *ProcessRun) ID() string { return r.id }

// Input returns the submission input of the run.
func (r *ProcessRun) Input() string { return r.input }

// Status returns the overall run status.
func (r *ProcessRun) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// CurrentPhase returns the name of the phase currently running, or the last
// phase that reached a terminal state.
func (r *ProcessRun) CurrentPhase() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// UpdatedAt returns the time of the last recorded activity. It advances on
// phase transitions and on transcript activity (Touch), so pollers can
// distinguish "still working" from "stalled".
func (r *ProcessRun) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}

// Touch records transcript activity without changing any status.
func (r *ProcessRun) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = time.Now().UTC()
}

// Phase returns a copy of the named phase state.
func (r *ProcessRun) Phase(name string) (PhaseState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.phases {
		if p.Name == name {
			return *p, true
		}
	}
	return PhaseState{}, false
}

// Phases returns copies of all phase states in pipeline order.
func (r *ProcessRun) Phases() []PhaseState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PhaseState, 0, len(r.phases))
	for _, p := range r.phases {
		out = append(out, *p)
	}
	return out
}

// FailureRecord returns the failure record of the failed phase, if any.
func (r *ProcessRun) FailureRecord() *failure.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.phases {
		if p.Status == PhaseFailed && p.Failure != nil {
			rec := *p.Failure
			return &rec
		}
	}
	return nil
}

func (r *ProcessRun) phase(name string) (*PhaseState, error) {
	for _, p := range r.phases {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown phase %q", name)
}

// BeginPhase transitions the named phase to running. It enforces the run's
// single-active-phase invariant and monotonic phase transitions.
func (r *ProcessRun) BeginPhase(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	if p.Status != PhaseNotStarted {
		return fmt.Errorf("phase %q already %s", name, p.Status)
	}
	for _, other := range r.phases {
		if other.Status == PhaseRunning {
			return fmt.Errorf("phase %q still running", other.Name)
		}
	}

	now := time.Now().UTC()
	p.Status = PhaseRunning
	p.StartedAt = &now
	r.current = name
	r.status = RunRunning
	r.updated = now
	return nil
}

// CompletePhase transitions the named running phase to succeeded, attaching
// the opaque result payload. If the phase is the last of the sequence the run
// becomes completed.
func (r *ProcessRun) CompletePhase(name string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	if p.Status != PhaseRunning {
		return fmt.Errorf("phase %q is %s, not running", name, p.Status)
	}

	now := time.Now().UTC()
	p.Status = PhaseSucceeded
	p.Payload = payload
	p.EndedAt = &now
	r.updated = now
	if r.phases[len(r.phases)-1] == p {
		r.status = RunCompleted
	}
	return nil
}

// FailPhase transitions the named running phase to failed and terminates the
// run. Failure is phase-fatal: no later phase starts.
func (r *ProcessRun) FailPhase(name string, rec failure.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.phase(name)
	if err != nil {
		return err
	}
	if p.Status != PhaseRunning {
		return fmt.Errorf("phase %q is %s, not running", name, p.Status)
	}

	now := time.Now().UTC()
	p.Status = PhaseFailed
	p.Failure = &rec
	p.EndedAt = &now
	r.status = RunFailed
	r.updated = now
	return nil
}

// Snapshot is the serializable form of a ProcessRun persisted after every
// phase transition.
type Snapshot struct {
	ID           string       `json:"id"`
	Input        string       `json:"input"`
	Status       RunStatus    `json:"status"`
	CurrentPhase string       `json:"current_phase,omitempty"`
	Phases       []PhaseState `json:"phases"`
	Created      time.Time    `json:"created"`
	Updated      time.Time    `json:"updated"`
}

// Snapshot produces a deep copy suitable for persistence.
func (r *ProcessRun) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	phases := make([]PhaseState, 0, len(r.phases))
	for _, p := range r.phases {
		phases = append(phases, *p)
	}
	return Snapshot{
		ID:           r.id,
		Input:        r.input,
		Status:       r.status,
		CurrentPhase: r.current,
		Phases:       phases,
		Created:      r.created,
		Updated:      r.updated,
	}
}
