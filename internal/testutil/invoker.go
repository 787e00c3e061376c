package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/taskweave/taskweave/model"
)

// ScriptedInvoker is a deterministic model.Invoker for tests. Responses are
// queued per purpose and consumed in FIFO order; an empty queue yields an
// error so scripts that fall out of sync fail loudly instead of looping.
type ScriptedInvoker struct {
	mu       sync.Mutex
	queues   map[string][]scriptEntry
	requests []model.Request
}

type scriptEntry struct {
	resp *model.Response
	err  error
}

// NewScriptedInvoker creates an empty scripted invoker.
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{queues: make(map[string][]scriptEntry)}
}

// QueueStructured queues a structured response for the given purpose.
func (s *ScriptedInvoker) QueueStructured(purpose string, v any) *ScriptedInvoker {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return s.queue(purpose, scriptEntry{resp: &model.Response{Structured: raw}})
}

// QueueSelection queues a speaker selection verdict.
func (s *ScriptedInvoker) QueueSelection(speaker, reason string) *ScriptedInvoker {
	return s.QueueStructured(model.PurposeSelection, map[string]any{"speaker": speaker, "reason": reason})
}

// QueueTermination queues a completion verdict.
func (s *ScriptedInvoker) QueueTermination(done bool, reason string) *ScriptedInvoker {
	return s.QueueStructured(model.PurposeTermination, map[string]any{"done": done, "reason": reason})
}

// QueueText queues a plain text response for the given purpose.
func (s *ScriptedInvoker) QueueText(purpose string, text string) *ScriptedInvoker {
	return s.queue(purpose, scriptEntry{resp: &model.Response{Text: text}})
}

// QueueError queues an error for the given purpose.
func (s *ScriptedInvoker) QueueError(purpose string, err error) *ScriptedInvoker {
	return s.queue(purpose, scriptEntry{err: err})
}

func (s *ScriptedInvoker) queue(purpose string, e scriptEntry) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[purpose] = append(s.queues[purpose], e)
	return s
}

// Invoke implements model.Invoker.
func (s *ScriptedInvoker) Invoke(_ context.Context, req model.Request) (*model.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	q := s.queues[req.Purpose]
	if len(q) == 0 {
		return nil, fmt.Errorf("scripted invoker: no response queued for purpose %q", req.Purpose)
	}
	entry := q[0]
	s.queues[req.Purpose] = q[1:]
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.resp, nil
}

// Info implements model.Invoker.
func (s *ScriptedInvoker) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "testutil"}
}

// Requests returns a copy of all requests seen so far.
func (s *ScriptedInvoker) Requests() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Request, len(s.requests))
	copy(out, s.requests)
	return out
}
