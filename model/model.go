package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskweave/taskweave/failure"
)

// Purpose hints why an invocation is made; adapters may use it for logging
// and request shaping but must not change semantics based on it.
const (
	PurposeSelection   = "selection"
	PurposeTermination = "termination"
	PurposeRespond     = "respond"
)

// Request captures one conversational-inference invocation.
type Request struct {
	// Purpose labels the invocation (selection, termination, respond).
	Purpose string `json:"purpose,omitempty"`
	// Instructions is the system-level steering text.
	Instructions string `json:"instructions,omitempty"`
	// Prompt is the rendered user prompt.
	Prompt string `json:"prompt"`
	// Schema, when non-nil, is a JSON Schema object the response must
	// conform to. Selection and termination decisions cannot function on
	// unstructured free text, so those callers always set it.
	Schema map[string]any `json:"schema,omitempty"`
	// SchemaName names the constrained output shape for providers that
	// require one.
	SchemaName string `json:"schema_name,omitempty"`
}

// Response is the result of one invocation.
type Response struct {
	// Text is the free-text portion of the completion, if any.
	Text string `json:"text,omitempty"`
	// Structured holds the schema-conforming JSON payload when the request
	// carried a Schema.
	Structured json.RawMessage `json:"structured,omitempty"`
}

// Decode unmarshals the structured payload (or, as a fallback, the text) into
// v. Failures are classified as malformed capability responses.
func (r *Response) Decode(v any) error {
	raw := r.Structured
	if len(raw) == 0 {
		raw = json.RawMessage(r.Text)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty response", failure.ErrMalformedResponse)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", failure.ErrMalformedResponse, err)
	}
	return nil
}

// Info contains metadata about an inference capability implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Invoker is the conversational-inference capability boundary. The pipeline
// uses independent Invoker instances for speaker selection, termination
// prediction and agent responses; implementations must support constrained
// structured output.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the capability implementation.
	Info() Info
}

// MockInvoker is a lightweight in-memory Invoker useful for tests & examples.
type MockInvoker struct {
	info      Info
	responses map[string]*Response
	fallback  *Response
}

// NewMockInvoker constructs a MockInvoker.
func NewMockInvoker(name string) *MockInvoker {
	return &MockInvoker{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]*Response),
	}
}

// AddStructured registers a canned structured response for prompts containing
// the given substring. The value is marshalled once at registration.
func (m *MockInvoker) AddStructured(promptContains string, v any) *MockInvoker {
	raw, _ := json.Marshal(v)
	m.responses[promptContains] = &Response{Structured: raw}
	return m
}

// AddText registers a canned free-text response.
func (m *MockInvoker) AddText(promptContains, text string) *MockInvoker {
	m.responses[promptContains] = &Response{Text: text}
	return m
}

// SetFallback sets the response returned when no registration matches.
func (m *MockInvoker) SetFallback(v any) *MockInvoker {
	raw, _ := json.Marshal(v)
	m.fallback = &Response{Structured: raw}
	return m
}

// Invoke implements Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for substr, resp := range m.responses {
		if substr != "" && strings.Contains(req.Prompt, substr) {
			return resp, nil
		}
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return &Response{Text: fmt.Sprintf("mock response to: %s", req.Prompt)}, nil
}

// Info implements Invoker.
func (m *MockInvoker) Info() Info { return m.info }
