// Package pipeline contains the top-level state machine coordinating a fixed
// linear sequence of phases. Each phase is wrapped by a StepExecutor that
// owns a tool scope and a conversation manager; the Orchestrator routes
// completion events between steps and guarantees every run reaches a
// terminal state.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/failure"
	"github.com/taskweave/taskweave/logging"
	"github.com/taskweave/taskweave/model"
	"github.com/taskweave/taskweave/store"
	"github.com/taskweave/taskweave/telemetry"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxRounds is the default conversation round ceiling per phase.
	MaxRounds int
	// CompactBudget is the max transcript entries given to selection and
	// termination calls.
	CompactBudget int
	// PairWindow is the tool call/result pair window kept by compaction.
	PairWindow int
	// CallTimeout bounds each blocking capability call.
	CallTimeout time.Duration
	// Store persists run snapshots after every phase transition.
	Store store.RunStore
	// Telemetry receives phase transition and conversation events.
	Telemetry telemetry.Recorder
	// Logger receives structured progress logs.
	Logger logging.Logger
}

// Orchestrator owns the fixed phase sequence and all active runs. Public
// methods are safe for concurrent use; many runs may execute concurrently,
// each with its own isolated scope, transcript and manager.
type Orchestrator struct {
	phases     []Phase
	selector   model.Invoker
	terminator model.Invoker

	maxRounds     int
	compactBudget int
	pairWindow    int
	callTimeout   time.Duration

	store     store.RunStore
	telemetry telemetry.Recorder
	logger    logging.Logger

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	run    *core.ProcessRun
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Orchestrator over the given ordered phases. The selector
// and terminator capabilities are shared across phases but invoked
// independently per decision.
func New(phases []Phase, selector, terminator model.Invoker, optFns ...func(o *Options)) (*Orchestrator, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("%w: no phases configured", failure.ErrMalformedConfig)
	}
	seen := make(map[string]bool, len(phases))
	for _, p := range phases {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: duplicate phase %q", failure.ErrMalformedConfig, p.Name)
		}
		seen[p.Name] = true
	}
	if selector == nil || terminator == nil {
		return nil, fmt.Errorf("%w: selector and terminator are required", failure.ErrMalformedConfig)
	}

	opts := Options{
		MaxRounds:     12,
		CompactBudget: 40,
		PairWindow:    3,
		CallTimeout:   60 * time.Second,
		Store:         store.NewInMemoryStore(),
		Telemetry:     telemetry.NoOpRecorder{},
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
	}

	return &Orchestrator{
		phases:        phases,
		selector:      selector,
		terminator:    terminator,
		maxRounds:     opts.MaxRounds,
		compactBudget: opts.CompactBudget,
		pairWindow:    opts.PairWindow,
		callTimeout:   opts.CallTimeout,
		store:         opts.Store,
		telemetry:     telemetry.Safe(opts.Telemetry, opts.Logger),
		logger:        opts.Logger,
		runs:          make(map[string]*activeRun),
	}, nil
}

// PhaseNames returns the configured phase order.
func (o *Orchestrator) PhaseNames() []string {
	names := make([]string, 0, len(o.phases))
	for _, p := range o.phases {
		names = append(names, p.Name)
	}
	return names
}

// Submit starts an asynchronous run for the given input and returns its
// process ID.
func (o *Orchestrator) Submit(ctx context.Context, input string) (string, error) {
	run := core.NewProcessRun(input, o.PhaseNames())

	runCtx, cancel := context.WithCancel(ctx)
	ar := &activeRun{run: run, cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.runs[run.ID()] = ar
	o.mu.Unlock()

	if err := o.persist(run); err != nil {
		o.logger.Warn("snapshot persist failed", "process_id", run.ID(), "error", err)
	}

	go func() {
		defer close(ar.done)
		defer cancel()
		o.execute(runCtx, run)
	}()

	return run.ID(), nil
}

// Status is the poll response for one run.
type Status struct {
	ProcessID  string          `json:"process_id"`
	Phase      string          `json:"phase"`
	Status     core.RunStatus  `json:"status"`
	LastUpdate time.Time       `json:"last_update"`
	Failure    *failure.Record `json:"failure,omitempty"`
}

// Poll reports the current phase, overall status and last activity time of a
// run. Status advances monotonically through the phase sequence.
func (o *Orchestrator) Poll(processID string) (Status, error) {
	o.mu.RLock()
	ar, ok := o.runs[processID]
	o.mu.RUnlock()
	if !ok {
		return Status{}, fmt.Errorf("process %s not found", processID)
	}
	return Status{
		ProcessID:  processID,
		Phase:      ar.run.CurrentPhase(),
		Status:     ar.run.Status(),
		LastUpdate: ar.run.UpdatedAt(),
		Failure:    ar.run.FailureRecord(),
	}, nil
}

// AwaitCompletion blocks until the run reaches a terminal state or the
// timeout elapses, returning the run record.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, processID string, timeout time.Duration) (*core.ProcessRun, error) {
	o.mu.RLock()
	ar, ok := o.runs[processID]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("process %s not found", processID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ar.done:
		return ar.run, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: run %s not terminal after %s", failure.ErrTimeout, processID, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel requests a scoped, ordered shutdown of an active run: the active
// round aborts, the phase's tool scope tears down, and only then does the
// run reach its terminal status.
func (o *Orchestrator) Cancel(processID string) error {
	o.mu.RLock()
	ar, ok := o.runs[processID]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("process %s not found", processID)
	}
	ar.cancel()
	return nil
}

// execute drives the run through the fixed phase sequence, routing each
// phase outcome into the next transition. Failure is phase-fatal: no later
// phase starts, and the run always terminates.
func (o *Orchestrator) execute(ctx context.Context, run *core.ProcessRun) {
	logger := o.logger
	for _, phase := range o.phases {
		if err := run.BeginPhase(phase.Name); err != nil {
			logger.Error("phase begin rejected", "process_id", run.ID(), "phase", phase.Name, "error", err)
			return
		}
		logger.Info("phase started", "process_id", run.ID(), "phase", phase.Name)
		o.record(run.ID(), phase.Name, telemetry.KindPhaseStarted, nil)
		o.snapshot(run)

		step := &StepExecutor{
			phase:         phase,
			selector:      o.selector,
			terminator:    o.terminator,
			logger:        logger,
			telemetry:     o.telemetry,
			maxRounds:     o.maxRounds,
			compactBudget: o.compactBudget,
			pairWindow:    o.pairWindow,
			callTimeout:   o.callTimeout,
		}
		outcome := step.Run(ctx, run)

		if !outcome.Succeeded() {
			if err := run.FailPhase(phase.Name, *outcome.Failure); err != nil {
				logger.Error("phase fail transition rejected", "process_id", run.ID(), "phase", phase.Name, "error", err)
			}
			logger.Info("phase failed", "process_id", run.ID(), "phase", phase.Name, "class", string(outcome.Failure.Class))
			o.record(run.ID(), phase.Name, telemetry.KindPhaseFailed, map[string]any{
				"class":   string(outcome.Failure.Class),
				"message": outcome.Failure.Message,
			})
			o.record(run.ID(), phase.Name, telemetry.KindRunFailed, nil)
			o.snapshot(run)
			return
		}

		if err := run.CompletePhase(phase.Name, outcome.Payload); err != nil {
			logger.Error("phase complete transition rejected", "process_id", run.ID(), "phase", phase.Name, "error", err)
			return
		}
		logger.Info("phase succeeded", "process_id", run.ID(), "phase", phase.Name)
		o.record(run.ID(), phase.Name, telemetry.KindPhaseSucceeded, nil)
		o.snapshot(run)
	}

	o.record(run.ID(), "", telemetry.KindRunCompleted, nil)
}

func (o *Orchestrator) record(processID, phase, kind string, payload map[string]any) {
	o.telemetry.RecordEvent(processID, phase, kind, payload)
}

func (o *Orchestrator) snapshot(run *core.ProcessRun) {
	if err := o.persist(run); err != nil {
		o.logger.Warn("snapshot persist failed", "process_id", run.ID(), "error", err)
	}
}

func (o *Orchestrator) persist(run *core.ProcessRun) error {
	return o.store.Save(run.Snapshot())
}
