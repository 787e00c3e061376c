package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/failure"
	"github.com/taskweave/taskweave/internal/testutil"
	"github.com/taskweave/taskweave/model"
	"github.com/taskweave/taskweave/telemetry"
	"github.com/taskweave/taskweave/tool"
)

func chatAgent(name, text string) core.AgentDescriptor {
	return core.AgentDescriptor{
		Name:        name,
		Description: name + " test agent",
		Respond: func(context.Context, string, core.Transcript) (core.Message, error) {
			return core.NewChatMessage(name, text), nil
		},
	}
}

func TestManager_TerminatesWhenObjectiveMet(t *testing.T) {
	script := testutil.NewScriptedInvoker().
		QueueSelection("writer", "only candidate").
		QueueTermination(true, "objective satisfied")

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{chatAgent("writer", "done")}, script, script, nil)
	require.NoError(t, err)

	result, err := mgr.Run(context.Background(), "write a line", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rounds)
	assert.Equal(t, "objective satisfied", result.Reason)

	// Directive seeded plus one agent message.
	require.Len(t, result.Transcript, 2)
	assert.True(t, result.Transcript[0].IsDirective())
	assert.Equal(t, "writer", result.Transcript[1].Author)
}

func TestManager_RoundLimitIsClassifiedFailure(t *testing.T) {
	script := testutil.NewScriptedInvoker()
	for i := 0; i < 3; i++ {
		script.QueueSelection("writer", "again")
		script.QueueTermination(false, "keep going")
	}

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{chatAgent("writer", "still working")}, script, script, nil,
		func(o *Options) { o.MaxRounds = 3 })
	require.NoError(t, err)

	_, err = mgr.Run(context.Background(), "never finishes", nil)
	require.ErrorIs(t, err, failure.ErrRoundLimit)
	assert.Equal(t, failure.Unknown, failure.Classify(err).Class)
}

func TestManager_InvalidSelectionNeverDefaults(t *testing.T) {
	script := testutil.NewScriptedInvoker().
		QueueSelection("ghost", "bad").
		QueueSelection("ghost", "bad").
		QueueSelection("ghost", "bad")

	var spoke bool
	agent := core.AgentDescriptor{
		Name: "writer",
		Respond: func(context.Context, string, core.Transcript) (core.Message, error) {
			spoke = true
			return core.NewChatMessage("writer", "hi"), nil
		},
	}

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{agent}, script, script, nil)
	require.NoError(t, err)

	_, err = mgr.Run(context.Background(), "objective", nil)
	require.ErrorIs(t, err, failure.ErrInvalidSelection)
	assert.False(t, spoke, "no agent may speak on an invalid selection")
}

func TestManager_SelectionNameNormalized(t *testing.T) {
	script := testutil.NewScriptedInvoker().
		QueueSelection("  Writer \n", "case and whitespace differ").
		QueueTermination(true, "done")

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{chatAgent("writer", "done")}, script, script, nil)
	require.NoError(t, err)

	result, err := mgr.Run(context.Background(), "objective", nil)
	require.NoError(t, err)
	assert.Equal(t, "writer", result.Transcript[1].Author)
}

func TestManager_SelectionRecoversWithinRound(t *testing.T) {
	script := testutil.NewScriptedInvoker().
		QueueError(model.PurposeSelection, errors.New("upstream hiccup")).
		QueueSelection("writer", "second try").
		QueueTermination(true, "done")

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{chatAgent("writer", "done")}, script, script, nil)
	require.NoError(t, err)

	result, err := mgr.Run(context.Background(), "objective", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rounds, "recovery must not consume a round")
}

func TestManager_ToolCallRouted(t *testing.T) {
	provider := &testutil.RecordingProvider{ToolName: "fs"}
	scope := tool.NewScope([]tool.Provider{provider}, nil)
	_, err := scope.Enter(context.Background())
	require.NoError(t, err)
	defer scope.Close()

	agent := core.AgentDescriptor{
		Name: "analyst",
		Respond: func(_ context.Context, _ string, tr core.Transcript) (core.Message, error) {
			if _, ok := tr.LastBy("fs"); ok {
				return core.NewChatMessage("analyst", "read it"), nil
			}
			return core.NewToolCallMessage("analyst", "fs", "read", map[string]any{"path": "a.go"}), nil
		},
	}

	recorder := telemetry.NewInMemoryRecorder()
	script := testutil.NewScriptedInvoker().
		QueueSelection("analyst", "").
		QueueTermination(false, "tool result pending").
		QueueSelection("analyst", "").
		QueueTermination(true, "done")

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{agent}, script, script, scope,
		func(o *Options) { o.Telemetry = recorder })
	require.NoError(t, err)

	result, err := mgr.Run(context.Background(), "read the file", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rounds)
	assert.Equal(t, []string{"read"}, provider.Calls())

	var sawResult bool
	for _, m := range result.Transcript {
		if m.IsToolResult() {
			sawResult = true
			assert.Equal(t, "fs", m.FunctionResponse.Tool)
		}
	}
	assert.True(t, sawResult, "tool result must be appended to the transcript")
	assert.Contains(t, recorder.Kinds("p1"), telemetry.KindToolCall)
}

func TestManager_ToolCallToUnknownTool(t *testing.T) {
	scope := tool.NewScope(nil, nil)
	_, err := scope.Enter(context.Background())
	require.NoError(t, err)
	defer scope.Close()

	agent := core.AgentDescriptor{
		Name: "analyst",
		Respond: func(context.Context, string, core.Transcript) (core.Message, error) {
			return core.NewToolCallMessage("analyst", "missing", "op", nil), nil
		},
	}
	script := testutil.NewScriptedInvoker().QueueSelection("analyst", "")

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{agent}, script, script, scope)
	require.NoError(t, err)

	_, err = mgr.Run(context.Background(), "objective", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestManager_AgentErrorPropagates(t *testing.T) {
	agent := core.AgentDescriptor{
		Name: "flaky",
		Respond: func(context.Context, string, core.Transcript) (core.Message, error) {
			return core.Message{}, failure.ErrRejectedInput
		},
	}
	script := testutil.NewScriptedInvoker().QueueSelection("flaky", "")

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{agent}, script, script, nil)
	require.NoError(t, err)

	_, err = mgr.Run(context.Background(), "objective", nil)
	require.ErrorIs(t, err, failure.ErrRejectedInput)
}

func TestManager_SeedDirectiveNotDuplicated(t *testing.T) {
	script := testutil.NewScriptedInvoker().
		QueueSelection("writer", "").
		QueueTermination(true, "done")

	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{chatAgent("writer", "ok")}, script, script, nil)
	require.NoError(t, err)

	seed := core.Transcript{core.NewDirectiveMessage("orchestrator", "existing objective")}
	result, err := mgr.Run(context.Background(), "existing objective", seed)
	require.NoError(t, err)

	directives := 0
	for _, m := range result.Transcript {
		if m.IsDirective() {
			directives++
		}
	}
	assert.Equal(t, 1, directives)
}

func TestManager_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	script := testutil.NewScriptedInvoker()
	mgr, err := NewManager("p1", "analysis", []core.AgentDescriptor{chatAgent("writer", "ok")}, script, script, nil)
	require.NoError(t, err)

	_, err = mgr.Run(ctx, "objective", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewManager_Validation(t *testing.T) {
	script := testutil.NewScriptedInvoker()

	_, err := NewManager("p1", "analysis", nil, script, script, nil)
	assert.ErrorIs(t, err, failure.ErrMalformedConfig)

	_, err = NewManager("p1", "analysis", []core.AgentDescriptor{chatAgent("a", "x")}, nil, script, nil)
	assert.ErrorIs(t, err, failure.ErrMalformedConfig)

	dup := []core.AgentDescriptor{chatAgent("a", "x"), chatAgent("A", "y")}
	_, err = NewManager("p1", "analysis", dup, script, script, nil)
	assert.ErrorIs(t, err, failure.ErrMalformedConfig)
}
