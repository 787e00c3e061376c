package tool

import (
	"context"
	"fmt"
)

// OperationFunc is one callable operation exposed by a FuncProvider.
type OperationFunc func(ctx context.Context, args map[string]any) (any, error)

// FuncProvider is a generic adapter that exposes a set of plain Go functions
// as a tool capability. It is the in-process counterpart to remote tool
// providers and is used heavily in examples and tests.
//
// A FuncProvider has no internal mutable state after construction and is safe
// for concurrent use; each Open returns an independent handle.
type FuncProvider struct {
	name string
	ops  map[string]OperationFunc
}

// NewFuncProvider constructs a provider exposing the given operations.
//
// Example:
//
//	files := NewFuncProvider("workspace", map[string]OperationFunc{
//	    "read": func(ctx context.Context, args map[string]any) (any, error) {
//	        return os.ReadFile(args["path"].(string))
//	    },
//	})
func NewFuncProvider(name string, ops map[string]OperationFunc) *FuncProvider {
	return &FuncProvider{name: name, ops: ops}
}

// Name implements Provider.
func (p *FuncProvider) Name() string { return p.name }

// Open implements Provider.
func (p *FuncProvider) Open(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &funcHandle{name: p.name, ops: p.ops, state: StateConnected}, nil
}

type funcHandle struct {
	name  string
	ops   map[string]OperationFunc
	state HandleState
}

// Name implements Handle.
func (h *funcHandle) Name() string { return h.name }

// State implements Handle.
func (h *funcHandle) State() HandleState { return h.state }

// Call implements Handle. Unknown operations and closed handles yield a
// *CallError for uniform downstream handling.
func (h *funcHandle) Call(ctx context.Context, operation string, args map[string]any) (any, error) {
	if h.state != StateConnected {
		return nil, NewCallError(h.name, operation, "handle is closed", "CLOSED")
	}
	op, ok := h.ops[operation]
	if !ok {
		return nil, NewCallError(h.name, operation, "unknown operation", "UNKNOWN_OPERATION")
	}
	result, err := op(ctx, args)
	if err != nil {
		if ce, ok := err.(*CallError); ok {
			return nil, ce
		}
		return nil, NewCallError(h.name, operation, fmt.Sprintf("execution failed: %v", err), "EXECUTION_ERROR")
	}
	return result, nil
}

// Close implements Handle.
func (h *funcHandle) Close() error {
	h.state = StateClosed
	return nil
}
