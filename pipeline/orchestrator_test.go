package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/failure"
	"github.com/taskweave/taskweave/internal/testutil"
	"github.com/taskweave/taskweave/store"
	"github.com/taskweave/taskweave/telemetry"
	"github.com/taskweave/taskweave/tool"
)

func twoPhases() []Phase {
	return []Phase{
		{Name: "analysis", Objective: "analyze", Agents: []core.AgentDescriptor{speakOnce("writer", "analyzed")}},
		{Name: "design", Objective: "design", Agents: []core.AgentDescriptor{speakOnce("writer", "designed")}},
	}
}

func TestOrchestrator_RunCompletesPhasesInOrder(t *testing.T) {
	script := testutil.NewScriptedInvoker()
	for i := 0; i < 2; i++ {
		script.QueueSelection("writer", "")
		script.QueueTermination(true, "done")
	}
	recorder := telemetry.NewInMemoryRecorder()
	runStore := store.NewInMemoryStore()

	orch, err := New(twoPhases(), script, script, func(o *Options) {
		o.Telemetry = recorder
		o.Store = runStore
		o.CallTimeout = time.Second
	})
	require.NoError(t, err)

	processID, err := orch.Submit(context.Background(), "the input")
	require.NoError(t, err)

	run, err := orch.AwaitCompletion(context.Background(), processID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.RunCompleted, run.Status())

	phases := run.Phases()
	require.Len(t, phases, 2)
	assert.Equal(t, core.PhaseSucceeded, phases[0].Status)
	assert.Equal(t, core.PhaseSucceeded, phases[1].Status)
	assert.True(t, phases[0].EndedAt.Before(*phases[1].StartedAt) || phases[0].EndedAt.Equal(*phases[1].StartedAt),
		"a phase may not start before its predecessor ended")

	snap, err := runStore.Get(processID)
	require.NoError(t, err)
	assert.Equal(t, core.RunCompleted, snap.Status)

	kinds := recorder.Kinds(processID)
	assert.Contains(t, kinds, telemetry.KindPhaseStarted)
	assert.Contains(t, kinds, telemetry.KindPhaseSucceeded)
	assert.Contains(t, kinds, telemetry.KindRunCompleted)
}

func TestOrchestrator_FailureHaltsPipeline(t *testing.T) {
	// Selector returns an unknown name on every attempt of the first phase.
	script := testutil.NewScriptedInvoker().
		QueueSelection("ghost", "").
		QueueSelection("ghost", "").
		QueueSelection("ghost", "")
	recorder := telemetry.NewInMemoryRecorder()

	orch, err := New(twoPhases(), script, script, func(o *Options) {
		o.Telemetry = recorder
		o.CallTimeout = time.Second
	})
	require.NoError(t, err)

	processID, err := orch.Submit(context.Background(), "the input")
	require.NoError(t, err)

	run, err := orch.AwaitCompletion(context.Background(), processID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.RunFailed, run.Status())

	phases := run.Phases()
	assert.Equal(t, core.PhaseFailed, phases[0].Status)
	assert.Equal(t, core.PhaseNotStarted, phases[1].Status, "no phase may start after a failure")

	rec := run.FailureRecord()
	require.NotNil(t, rec)
	assert.Equal(t, "analysis", rec.Phase)

	kinds := recorder.Kinds(processID)
	assert.Contains(t, kinds, telemetry.KindPhaseFailed)
	assert.Contains(t, kinds, telemetry.KindRunFailed)
	assert.NotContains(t, kinds, telemetry.KindRunCompleted)
}

func TestOrchestrator_Poll(t *testing.T) {
	script := testutil.NewScriptedInvoker().
		QueueSelection("writer", "").
		QueueTermination(true, "done").
		QueueSelection("writer", "").
		QueueTermination(true, "done")

	orch, err := New(twoPhases(), script, script)
	require.NoError(t, err)

	processID, err := orch.Submit(context.Background(), "the input")
	require.NoError(t, err)

	_, err = orch.AwaitCompletion(context.Background(), processID, 5*time.Second)
	require.NoError(t, err)

	status, err := orch.Poll(processID)
	require.NoError(t, err)
	assert.Equal(t, processID, status.ProcessID)
	assert.Equal(t, core.RunCompleted, status.Status)
	assert.False(t, status.LastUpdate.IsZero())

	_, err = orch.Poll("nope")
	assert.Error(t, err)
}

func TestOrchestrator_CancelTearsDownBeforeTerminal(t *testing.T) {
	provider := &testutil.RecordingProvider{ToolName: "fs"}
	started := make(chan struct{})

	blocking := core.AgentDescriptor{
		Name: "writer",
		Respond: func(ctx context.Context, _ string, _ core.Transcript) (core.Message, error) {
			close(started)
			<-ctx.Done()
			return core.Message{}, ctx.Err()
		},
	}
	script := testutil.NewScriptedInvoker().QueueSelection("writer", "")

	phases := []Phase{{
		Name:      "analysis",
		Objective: "analyze",
		Agents:    []core.AgentDescriptor{blocking},
		Providers: []tool.Provider{provider},
	}}
	orch, err := New(phases, script, script, func(o *Options) {
		o.CallTimeout = time.Minute
	})
	require.NoError(t, err)

	processID, err := orch.Submit(context.Background(), "the input")
	require.NoError(t, err)

	<-started
	require.NoError(t, orch.Cancel(processID))

	run, err := orch.AwaitCompletion(context.Background(), processID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.RunFailed, run.Status())
	assert.Equal(t, provider.Opens(), provider.Closes(),
		"tool teardown must complete before the run is terminal")
	assert.Equal(t, 1, provider.Opens())
}

func TestOrchestrator_AwaitCompletionTimeout(t *testing.T) {
	blocking := core.AgentDescriptor{
		Name: "writer",
		Respond: func(ctx context.Context, _ string, _ core.Transcript) (core.Message, error) {
			<-ctx.Done()
			return core.Message{}, ctx.Err()
		},
	}
	script := testutil.NewScriptedInvoker().QueueSelection("writer", "")

	orch, err := New([]Phase{{Name: "a", Objective: "x", Agents: []core.AgentDescriptor{blocking}}},
		script, script, func(o *Options) { o.CallTimeout = time.Minute })
	require.NoError(t, err)

	processID, err := orch.Submit(context.Background(), "the input")
	require.NoError(t, err)

	_, err = orch.AwaitCompletion(context.Background(), processID, 20*time.Millisecond)
	assert.ErrorIs(t, err, failure.ErrTimeout)

	require.NoError(t, orch.Cancel(processID))
	_, err = orch.AwaitCompletion(context.Background(), processID, 5*time.Second)
	require.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	script := testutil.NewScriptedInvoker()
	agents := []core.AgentDescriptor{speakOnce("a", "x")}

	_, err := New(nil, script, script)
	assert.ErrorIs(t, err, failure.ErrMalformedConfig)

	_, err = New([]Phase{{Name: "a", Agents: agents}, {Name: "a", Agents: agents}}, script, script)
	assert.ErrorIs(t, err, failure.ErrMalformedConfig)

	_, err = New([]Phase{{Name: "a", Agents: agents}}, nil, script)
	assert.ErrorIs(t, err, failure.ErrMalformedConfig)

	_, err = New([]Phase{{Name: "a"}}, script, script)
	assert.ErrorIs(t, err, failure.ErrMalformedConfig)
}
