// Package taskweave provides a high-level façade over the pipeline
// orchestrator and its service abstractions (run store, telemetry, logging)
// enabling rapid construction of multi-phase agent pipelines. Most
// applications interact with this package by:
//  1. Defining the ordered phases (agents, tools, objectives)
//  2. Creating a Pipeline via New() with selector/terminator capabilities
//  3. Submitting work (Submit) and polling or awaiting completion
//
// The façade delegates orchestration to pipeline.Orchestrator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable run store and a
// structured logger.
package taskweave

import (
	"context"
	"time"

	"github.com/taskweave/taskweave/config"
	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/logging"
	"github.com/taskweave/taskweave/model"
	"github.com/taskweave/taskweave/pipeline"
	"github.com/taskweave/taskweave/store"
	"github.com/taskweave/taskweave/telemetry"
)

// Options configures the Pipeline façade.
type Options struct {
	// MaxRounds is the default conversation round ceiling per phase.
	MaxRounds int
	// CompactBudget bounds the transcript entries passed to selection and
	// termination calls.
	CompactBudget int
	// PairWindow is the tool call/result pair window kept by compaction.
	PairWindow int
	// CallTimeout bounds each blocking capability call.
	CallTimeout time.Duration
	// Store persists run snapshots (defaults to in-memory).
	Store store.RunStore
	// Telemetry receives orchestration events (defaults to no-op).
	Telemetry telemetry.Recorder
	// Logger receives structured logs (defaults to no-op).
	Logger logging.Logger
}

// WithLogger overrides the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithTelemetry overrides the telemetry recorder.
func WithTelemetry(r telemetry.Recorder) func(o *Options) {
	return func(o *Options) { o.Telemetry = r }
}

// WithStore overrides the run store.
func WithStore(s store.RunStore) func(o *Options) {
	return func(o *Options) { o.Store = s }
}

// WithConfig applies pipeline tuning from a loaded host configuration.
func WithConfig(cfg *config.Config) func(o *Options) {
	return func(o *Options) {
		if cfg == nil {
			return
		}
		o.MaxRounds = cfg.Pipeline.MaxRounds
		o.CompactBudget = cfg.Pipeline.CompactBudget
		o.PairWindow = cfg.Pipeline.PairWindow
		o.CallTimeout = cfg.Pipeline.CallTimeout
	}
}

// Pipeline is the high-level façade aggregating the orchestrator and its
// services.
type Pipeline struct {
	orchestrator *pipeline.Orchestrator
}

// New creates a Pipeline over the given ordered phases. The selector and
// terminator are independent conversational-inference capabilities; passing
// the same Invoker for both is allowed.
func New(phases []pipeline.Phase, selector, terminator model.Invoker, optFns ...func(o *Options)) (*Pipeline, error) {
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

	orch, err := pipeline.New(phases, selector, terminator, func(o *pipeline.Options) {
		o.MaxRounds = opts.MaxRounds
		o.CompactBudget = opts.CompactBudget
		o.PairWindow = opts.PairWindow
		o.CallTimeout = opts.CallTimeout
		o.Store = opts.Store
		o.Telemetry = opts.Telemetry
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{orchestrator: orch}, nil
}

// Submit starts an asynchronous run and returns its process ID.
func (p *Pipeline) Submit(ctx context.Context, input string) (string, error) {
	return p.orchestrator.Submit(ctx, input)
}

// Poll reports the current phase, status and last activity time of a run.
func (p *Pipeline) Poll(processID string) (pipeline.Status, error) {
	return p.orchestrator.Poll(processID)
}

// AwaitCompletion blocks until the run reaches a terminal state or the
// timeout elapses.
func (p *Pipeline) AwaitCompletion(ctx context.Context, processID string, timeout time.Duration) (*core.ProcessRun, error) {
	return p.orchestrator.AwaitCompletion(ctx, processID, timeout)
}

// Cancel requests a scoped, ordered shutdown of an active run.
func (p *Pipeline) Cancel(processID string) error {
	return p.orchestrator.Cancel(processID)
}
