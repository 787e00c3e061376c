// Package tool defines the external capability boundary of the pipeline:
// providers that open connections to side-effecting tools, handles that route
// operations to them, and a scope that bounds handle lifetimes to a single
// phase execution.
package tool

import (
	"context"
	"fmt"
)

// HandleState is the connection state of a tool handle.
type HandleState string

const (
	// StateConnecting marks a handle that is being opened.
	StateConnecting HandleState = "connecting"
	// StateConnected marks a handle ready to route calls.
	StateConnected HandleState = "connected"
	// StateClosed marks a handle whose connection has been released.
	StateClosed HandleState = "closed"
)

// Provider opens connections to one external capability. Implementations are
// registered per phase; the pipeline treats all tool semantics as opaque
// side-effecting remote calls.
type Provider interface {
	// Name returns the unique tool name agents address calls to.
	Name() string

	// Open establishes a connection and returns a live handle. The caller
	// owns the handle and must Close it; the Scope does this automatically.
	Open(ctx context.Context) (Handle, error)
}

// Handle is a connected external-capability resource. A handle is owned
// exclusively by the scope that opened it and must never be shared across
// phases or process runs.
type Handle interface {
	// Name returns the tool name of the originating provider.
	Name() string

	// State reports the current connection state.
	State() HandleState

	// Call routes one operation to the tool and returns its result.
	Call(ctx context.Context, operation string, args map[string]any) (any, error)

	// Close releases the connection. Close is idempotent.
	Close() error
}

// CallError reports a failed tool operation with enough context for failure
// classification and logs.
type CallError struct {
	Tool      string `json:"tool"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
	Code      string `json:"code"`
}

func (e *CallError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s.%s: %s", e.Code, e.Tool, e.Operation, e.Message)
	}
	return fmt.Sprintf("tool error in %s.%s: %s", e.Tool, e.Operation, e.Message)
}

// NewCallError creates a CallError with the specified details.
func NewCallError(tool, operation, message, code string) *CallError {
	return &CallError{Tool: tool, Operation: operation, Message: message, Code: code}
}
