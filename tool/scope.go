package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskweave/taskweave/logging"
)

// ErrScopeClosed is returned when a handle is requested from a closed scope.
var ErrScopeClosed = errors.New("tool scope closed")

// Scope bounds the lifetime of tool handles to one phase execution. Enter
// opens every provider in registration order; Close releases every opened
// handle in reverse order on every exit path.
//
// A Scope must be entered and closed by the same goroutine that created it.
// Nested work spawned while the scope is open must be joined before Close
// begins teardown; handing a handle to another goroutine that outlives the
// scope is a protocol violation.
type Scope struct {
	providers []Provider
	handles   []Handle
	logger    logging.Logger
	entered   bool
	closed    bool
}

// NewScope creates a scope over the given providers. A nil logger is
// replaced by a no-op logger.
func NewScope(providers []Provider, logger logging.Logger) *Scope {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Scope{providers: providers, logger: logger}
}

// Enter opens all providers in order and returns the live handles. If any
// Open fails, every handle opened so far is closed in reverse order before
// the error is returned, so a failed entry never leaks a connection.
func (s *Scope) Enter(ctx context.Context) ([]Handle, error) {
	if s.entered {
		return nil, errors.New("tool scope already entered")
	}
	s.entered = true

	for _, p := range s.providers {
		h, err := p.Open(ctx)
		if err != nil {
			s.logger.Error("tool open failed", "tool", p.Name(), "error", err)
			s.teardown()
			return nil, fmt.Errorf("open tool %s: %w", p.Name(), err)
		}
		s.logger.Debug("tool opened", "tool", h.Name())
		s.handles = append(s.handles, h)
	}
	return s.Handles(), nil
}

// Handles returns the currently open handles in acquisition order.
func (s *Scope) Handles() []Handle {
	out := make([]Handle, len(s.handles))
	copy(out, s.handles)
	return out
}

// Handle returns the open handle for the named tool.
func (s *Scope) Handle(name string) (Handle, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	for _, h := range s.handles {
		if h.Name() == name {
			return h, nil
		}
	}
	return nil, fmt.Errorf("no tool %q in scope", name)
}

// Close releases all handles in reverse acquisition order. Each close is
// attempted regardless of earlier close failures; the first error is
// returned for visibility but teardown always completes. Close is idempotent.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	return s.teardown()
}

func (s *Scope) teardown() error {
	s.closed = true
	var first error
	for i := len(s.handles) - 1; i >= 0; i-- {
		h := s.handles[i]
		if err := h.Close(); err != nil {
			s.logger.Warn("tool close failed", "tool", h.Name(), "error", err)
			if first == nil {
				first = fmt.Errorf("close tool %s: %w", h.Name(), err)
			}
			continue
		}
		s.logger.Debug("tool closed", "tool", h.Name())
	}
	s.handles = nil
	return first
}
