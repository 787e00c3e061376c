// Package conversation runs one phase's multi-agent conversation: it selects
// the next speaker, routes tool invocations, and decides termination. Rounds
// are strictly sequential and bounded by a configured ceiling; both speaker
// selection and termination prediction are delegated to independent
// conversational-inference capabilities with constrained output.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/failure"
	"github.com/taskweave/taskweave/history"
	"github.com/taskweave/taskweave/logging"
	"github.com/taskweave/taskweave/model"
	"github.com/taskweave/taskweave/telemetry"
	"github.com/taskweave/taskweave/tool"
)

// Options configures a Manager instance.
type Options struct {
	// MaxRounds bounds the conversation; exhausting it is a classified
	// failure, never an infinite loop.
	MaxRounds int
	// MaxRecoveryAttempts bounds in-round re-asks of a failed structured
	// call (selector, terminator, tool) before escalating.
	MaxRecoveryAttempts int
	// CompactBudget is the max transcript entries passed to the selector
	// and termination predicate.
	CompactBudget int
	// PairWindow is the tool call/result pair window kept by compaction.
	PairWindow int
	// CallTimeout bounds each blocking capability call.
	CallTimeout time.Duration
	// Logger receives structured progress logs.
	Logger logging.Logger
	// Telemetry receives per-round and per-turn activity events.
	Telemetry telemetry.Recorder
	// OnActivity is invoked whenever the transcript grows, so callers can
	// surface liveness to pollers.
	OnActivity func()
}

// Manager orchestrates one phase's conversation. A Manager is bound to a
// single phase execution and must not be reused.
type Manager struct {
	processID string
	phase     string

	agents []core.AgentDescriptor
	byName map[string]core.AgentDescriptor

	selector   model.Invoker
	terminator model.Invoker
	tools      *tool.Scope
	compactor  *history.Compactor

	maxRounds   int
	maxRecovery int
	budget      int
	callTimeout time.Duration
	logger      logging.Logger
	telemetry   telemetry.Recorder
	onActivity  func()
}

// NewManager constructs a Manager for the given participants. The selector
// and terminator are independent capability invocations; sharing one Invoker
// between them is the caller's choice.
func NewManager(
	processID, phase string,
	agents []core.AgentDescriptor,
	selector, terminator model.Invoker,
	tools *tool.Scope,
	optFns ...func(o *Options),
) (*Manager, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("%w: no agents configured", failure.ErrMalformedConfig)
	}
	if selector == nil || terminator == nil {
		return nil, fmt.Errorf("%w: selector and terminator are required", failure.ErrMalformedConfig)
	}

	byName := make(map[string]core.AgentDescriptor, len(agents))
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[strings.ToLower(a.Name)]; dup {
			return nil, fmt.Errorf("%w: duplicate agent name %q", failure.ErrMalformedConfig, a.Name)
		}
		byName[strings.ToLower(a.Name)] = a
	}

	opts := Options{
		MaxRounds:           12,
		MaxRecoveryAttempts: 2,
		CompactBudget:       40,
		PairWindow:          history.DefaultPairWindow,
		CallTimeout:         60 * time.Second,
		Logger:              logging.NoOpLogger{},
		Telemetry:           telemetry.NoOpRecorder{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Manager{
		processID:   processID,
		phase:       phase,
		agents:      agents,
		byName:      byName,
		selector:    selector,
		terminator:  terminator,
		tools:       tools,
		compactor:   history.NewCompactor(history.WithPairWindow(opts.PairWindow)),
		maxRounds:   opts.MaxRounds,
		maxRecovery: opts.MaxRecoveryAttempts,
		budget:      opts.CompactBudget,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
		telemetry:   telemetry.Safe(opts.Telemetry, opts.Logger),
		onActivity:  opts.OnActivity,
	}, nil
}

// Result is the outcome of a completed conversation.
type Result struct {
	// Transcript is the full (uncompacted) conversation history.
	Transcript core.Transcript
	// Rounds is the number of rounds executed.
	Rounds int
	// Reason is the termination predicate's explanation.
	Reason string
}

// Run executes the turn-taking loop until the termination predicate is
// satisfied or the round ceiling is reached. The returned error, if any, is
// suitable for failure.Classify.
func (m *Manager) Run(ctx context.Context, objective string, seed core.Transcript) (*Result, error) {
	transcript := seed.Clone()
	if _, ok := transcript.LastDirective(); !ok {
		transcript = transcript.Append(core.NewDirectiveMessage("orchestrator", objective))
		m.activity()
	}

	for round := 1; round <= m.maxRounds; round++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := time.Now()

		speaker, err := m.selectSpeaker(ctx, objective, transcript)
		if err != nil {
			return nil, err
		}

		transcript, err = m.executeTurn(ctx, objective, speaker, transcript)
		if err != nil {
			return nil, err
		}

		// Termination is checked only after the round's messages are
		// appended, so a phase can never terminate on an empty transcript.
		done, reason, err := m.checkTermination(ctx, objective, transcript)
		if err != nil {
			return nil, err
		}

		m.logger.Debug("round completed", "phase", m.phase, "round", round, "speaker", speaker.Name, "duration", time.Since(start), "terminated", done)
		m.record(telemetry.KindRoundCompleted, map[string]any{
			"round":      round,
			"speaker":    speaker.Name,
			"terminated": done,
		})

		if done {
			return &Result{Transcript: transcript, Rounds: round, Reason: reason}, nil
		}
	}

	return nil, fmt.Errorf("%w: no termination after %d rounds", failure.ErrRoundLimit, m.maxRounds)
}

// executeTurn lets the selected agent produce a message and routes any tool
// invocation it carries, appending the result before the next round begins.
func (m *Manager) executeTurn(ctx context.Context, objective string, speaker core.AgentDescriptor, transcript core.Transcript) (core.Transcript, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	msg, err := speaker.Respond(callCtx, objective, m.compactor.Compact(transcript, m.budget))
	cancel()
	if err != nil {
		return transcript, wrapTimeout(fmt.Errorf("agent %s respond: %w", speaker.Name, err))
	}
	msg.Author = speaker.Name
	transcript = transcript.Append(msg)
	m.activity()

	activity := "message"
	if msg.IsToolCall() {
		activity = "tool_call"
	}
	m.record(telemetry.KindAgentTurn, map[string]any{"agent": speaker.Name, "activity": activity})

	if !msg.IsToolCall() {
		return transcript, nil
	}

	call := msg.FunctionCall
	result, err := m.invokeTool(ctx, call)
	transcript = transcript.Append(core.NewToolResultMessage(call.ID, call.Tool, result, err))
	m.activity()
	m.record(telemetry.KindToolCall, map[string]any{
		"agent":     speaker.Name,
		"tool":      call.Tool,
		"operation": call.Operation,
		"failed":    err != nil,
	})
	if err != nil {
		return transcript, err
	}
	return transcript, nil
}

// invokeTool routes a function call through the scope's handle, retrying a
// bounded number of times before escalating.
func (m *Manager) invokeTool(ctx context.Context, call *core.FunctionCall) (any, error) {
	if m.tools == nil {
		return nil, fmt.Errorf("%w: no tool scope for call to %s", failure.ErrMalformedConfig, call.Tool)
	}
	handle, err := m.tools.Handle(call.Tool)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRecovery; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		start := time.Now()
		result, err := handle.Call(callCtx, call.Operation, call.Arguments)
		cancel()
		if err == nil {
			m.logger.Debug("tool call succeeded", "tool", call.Tool, "operation", call.Operation, "duration", time.Since(start))
			return result, nil
		}
		lastErr = err
		m.logger.Warn("tool call failed", "tool", call.Tool, "operation", call.Operation, "attempt", attempt+1, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, wrapTimeout(fmt.Errorf("tool %s.%s: %w", call.Tool, call.Operation, lastErr))
}

func (m *Manager) activity() {
	if m.onActivity != nil {
		m.onActivity()
	}
}

func (m *Manager) record(kind string, payload map[string]any) {
	m.telemetry.RecordEvent(m.processID, m.phase, kind, payload)
}

// wrapTimeout marks context deadline errors as the transient timeout
// category so classification survives the error chain.
func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, failure.ErrTimeout) {
		return fmt.Errorf("%w: %v", failure.ErrTimeout, err)
	}
	return err
}
