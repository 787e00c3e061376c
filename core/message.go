package core

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the conversational role of a message.
type Role string

const (
	// RoleDirective marks system-level steering messages (phase objectives,
	// protocol instructions).
	RoleDirective Role = "directive"
	// RoleAgent marks messages produced by a participating agent.
	RoleAgent Role = "agent"
	// RoleTool marks tool invocation results.
	RoleTool Role = "tool"
)

// FunctionCall describes a tool invocation request embedded in a message.
type FunctionCall struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// FunctionResponse describes the outcome of a previously issued FunctionCall.
type FunctionResponse struct {
	ID     string `json:"id"`
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Message is one entry of a phase's conversation transcript. After appending
// it should be treated as immutable.
type Message struct {
	ID               string            `json:"id"`
	Role             Role              `json:"role"`
	Author           string            `json:"author"`
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// NewDirectiveMessage creates a system-level steering message.
func NewDirectiveMessage(author, text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleDirective,
		Author:    author,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewChatMessage creates a plain conversational message authored by an agent.
func NewChatMessage(author, text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleAgent,
		Author:    author,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolCallMessage creates an agent message that requests execution of a
// tool operation. The returned message carries a fresh call ID that the
// matching tool result must echo.
func NewToolCallMessage(author, tool, operation string, args map[string]any) Message {
	return Message{
		ID:     NewID(),
		Role:   RoleAgent,
		Author: author,
		FunctionCall: &FunctionCall{
			ID:        NewID(),
			Tool:      tool,
			Operation: operation,
			Arguments: args,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewToolResultMessage records the completion result (or error) of a tool
// invocation identified by callID.
func NewToolResultMessage(callID, tool string, result any, err error) Message {
	fr := &FunctionResponse{ID: callID, Tool: tool, Result: result}
	if err != nil {
		fr.Error = err.Error()
	}
	return Message{
		ID:               NewID(),
		Role:             RoleTool,
		Author:           tool,
		FunctionResponse: fr,
		Timestamp:        time.Now().UTC(),
	}
}

// IsDirective reports whether the message is a system-level directive.
func (m Message) IsDirective() bool { return m.Role == RoleDirective }

// IsToolCall reports whether the message requests a tool invocation.
func (m Message) IsToolCall() bool { return m.FunctionCall != nil }

// IsToolResult reports whether the message carries a tool invocation result.
func (m Message) IsToolResult() bool { return m.FunctionResponse != nil }

// IsChat reports whether the message is a plain conversational message.
func (m Message) IsChat() bool {
	return !m.IsDirective() && !m.IsToolCall() && !m.IsToolResult()
}

// Transcript is the ordered message history of one phase's conversation. It
// is owned exclusively by the conversation manager running that phase and is
// discarded when the phase ends.
type Transcript []Message

// Append returns the transcript extended with msgs.
func (t Transcript) Append(msgs ...Message) Transcript {
	return append(t, msgs...)
}

// LastDirective returns the most recent directive message and true, or a zero
// message and false if the transcript holds none.
func (t Transcript) LastDirective() (Message, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].IsDirective() {
			return t[i], true
		}
	}
	return Message{}, false
}

// LastBy returns the most recent message authored by name and true, or a zero
// message and false.
func (t Transcript) LastBy(name string) (Message, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Author == name {
			return t[i], true
		}
	}
	return Message{}, false
}

// Clone returns a defensive copy of the transcript.
func (t Transcript) Clone() Transcript {
	c := make(Transcript, len(t))
	copy(c, t)
	return c
}

// Render produces a plain text rendering suitable for embedding into selector
// and termination prompts. Tool calls and results are summarized one line
// each so structured payloads do not bloat the prompt.
func (t Transcript) Render() string {
	var b strings.Builder
	for _, m := range t {
		switch {
		case m.IsToolCall():
			fmt.Fprintf(&b, "[%s] %s -> tool %s.%s\n", m.Role, m.Author, m.FunctionCall.Tool, m.FunctionCall.Operation)
		case m.IsToolResult():
			if m.FunctionResponse.Error != "" {
				fmt.Fprintf(&b, "[%s] %s error: %s\n", m.Role, m.Author, m.FunctionResponse.Error)
			} else {
				fmt.Fprintf(&b, "[%s] %s result: %v\n", m.Role, m.Author, m.FunctionResponse.Result)
			}
		default:
			fmt.Fprintf(&b, "[%s] %s: %s\n", m.Role, m.Author, m.Text)
		}
	}
	return b.String()
}
