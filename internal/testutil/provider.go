package testutil

import (
	"context"
	"sync"

	"github.com/taskweave/taskweave/tool"
)

// RecordingProvider is a tool.Provider that counts opens and closes and
// serves calls from a fixed operation table. Tests assert open/close parity
// and call routing through it.
type RecordingProvider struct {
	ToolName string
	// OpenErr, when set, makes Open fail.
	OpenErr error
	// CallFn, when set, serves every operation; otherwise calls echo their
	// arguments back.
	CallFn func(ctx context.Context, operation string, args map[string]any) (any, error)

	mu     sync.Mutex
	opens  int
	closes int
	calls  []string
}

// Name implements tool.Provider.
func (p *RecordingProvider) Name() string { return p.ToolName }

// Open implements tool.Provider.
func (p *RecordingProvider) Open(_ context.Context) (tool.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	p.opens++
	return &recordingHandle{provider: p, state: tool.StateConnected}, nil
}

// Opens returns how many handles were opened.
func (p *RecordingProvider) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// Closes returns how many handles were closed.
func (p *RecordingProvider) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Calls returns the operations routed through handles of this provider.
func (p *RecordingProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

type recordingHandle struct {
	provider *RecordingProvider
	state    tool.HandleState
}

func (h *recordingHandle) Name() string { return h.provider.ToolName }

func (h *recordingHandle) State() tool.HandleState { return h.state }

func (h *recordingHandle) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	if h.state == tool.StateClosed {
		return nil, tool.NewCallError(h.provider.ToolName, operation, "handle closed", "CLOSED")
	}
	h.provider.mu.Lock()
	h.provider.calls = append(h.provider.calls, operation)
	fn := h.provider.CallFn
	h.provider.mu.Unlock()
	if fn != nil {
		return fn(ctx, operation, args)
	}
	return args, nil
}

func (h *recordingHandle) Close() error {
	if h.state == tool.StateClosed {
		return nil
	}
	h.state = tool.StateClosed
	h.provider.mu.Lock()
	h.provider.closes++
	h.provider.mu.Unlock()
	return nil
}
