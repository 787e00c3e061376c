package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskweave/taskweave/conversation"
	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/failure"
	"github.com/taskweave/taskweave/logging"
	"github.com/taskweave/taskweave/model"
	"github.com/taskweave/taskweave/telemetry"
	"github.com/taskweave/taskweave/tool"
)

// Phase is the static configuration of one pipeline stage.
type Phase struct {
	// Name identifies the phase in run state and telemetry.
	Name string
	// Objective is the goal string driving the phase's conversation.
	Objective string
	// Agents are the conversation participants for this phase.
	Agents []core.AgentDescriptor
	// Providers are the external tools opened for the phase's scope.
	Providers []tool.Provider
	// MaxRounds overrides the orchestrator default round ceiling when > 0.
	MaxRounds int
	// Extract converts the final transcript into the phase's opaque result
	// payload. When nil, a summary of the last plain message is used.
	Extract func(core.Transcript) ([]byte, error)
}

// Validate reports configuration errors that make the phase unrunnable.
func (p Phase) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: phase missing name", failure.ErrMalformedConfig)
	}
	if len(p.Agents) == 0 {
		return fmt.Errorf("%w: phase %s has no agents", failure.ErrMalformedConfig, p.Name)
	}
	return nil
}

// Outcome is the terminal result of one StepExecutor invocation.
type Outcome struct {
	Payload []byte
	Failure *failure.Record
}

// Succeeded reports whether the phase produced a payload.
func (o Outcome) Succeeded() bool { return o.Failure == nil }

// StepExecutor wraps one phase: it opens a tool scope, builds a conversation
// manager bound to that scope, runs the conversation, and interprets the
// result into a phase outcome. The scope is closed on every exit path before
// control returns to the orchestrator.
type StepExecutor struct {
	phase      Phase
	selector   model.Invoker
	terminator model.Invoker
	logger     logging.Logger
	telemetry  telemetry.Recorder

	maxRounds     int
	compactBudget int
	pairWindow    int
	callTimeout   time.Duration
}

// Run executes the phase for the given run. It never panics outward and
// always returns a terminal outcome; escaping errors are classified.
func (s *StepExecutor) Run(ctx context.Context, run *core.ProcessRun) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("phase panicked", "phase", s.phase.Name, "panic", rec)
			failRec := failure.ClassifyWith(fmt.Errorf("phase %s panicked: %v", s.phase.Name, rec), s.phase.Name, "")
			outcome = Outcome{Failure: &failRec}
		}
	}()

	scope := tool.NewScope(s.phase.Providers, s.logger)
	defer scope.Close()

	if _, err := scope.Enter(ctx); err != nil {
		return s.failed(err)
	}

	maxRounds := s.maxRounds
	if s.phase.MaxRounds > 0 {
		maxRounds = s.phase.MaxRounds
	}

	mgr, err := conversation.NewManager(
		run.ID(), s.phase.Name,
		s.phase.Agents,
		s.selector, s.terminator,
		scope,
		func(o *conversation.Options) {
			o.MaxRounds = maxRounds
			o.CompactBudget = s.compactBudget
			o.PairWindow = s.pairWindow
			o.CallTimeout = s.callTimeout
			o.Logger = s.logger
			o.Telemetry = s.telemetry
			o.OnActivity = run.Touch
		},
	)
	if err != nil {
		return s.failed(err)
	}

	result, err := mgr.Run(ctx, s.phase.Objective, nil)
	if err != nil {
		return s.failed(err)
	}

	payload, err := s.extract(result)
	if err != nil {
		return s.failed(err)
	}
	return Outcome{Payload: payload}
}

func (s *StepExecutor) failed(err error) Outcome {
	rec := failure.ClassifyWith(err, s.phase.Name, "")
	s.logger.Warn("phase failed", "phase", s.phase.Name, "class", string(rec.Class), "error", err)
	return Outcome{Failure: &rec}
}

// extract converts the conversation result into the opaque phase payload.
// The transcript itself is discarded with the manager; only the payload
// survives into phase state.
func (s *StepExecutor) extract(result *conversation.Result) ([]byte, error) {
	if s.phase.Extract != nil {
		payload, err := s.phase.Extract(result.Transcript)
		if err != nil {
			return nil, fmt.Errorf("extract phase result: %w", err)
		}
		return payload, nil
	}
	summary := ""
	for i := len(result.Transcript) - 1; i >= 0; i-- {
		if result.Transcript[i].IsChat() {
			summary = result.Transcript[i].Text
			break
		}
	}
	return json.Marshal(map[string]any{
		"summary": summary,
		"reason":  result.Reason,
		"rounds":  result.Rounds,
	})
}
