package testutil

import (
	"github.com/taskweave/taskweave/core"
)

// TranscriptBuilder provides a fluent helper for constructing transcripts in
// tests. Example:
//
//	tr := NewTranscriptBuilder().
//		Directive("convert the module").
//		Chat("analyst", "looks straightforward").
//		CallPair("analyst", "fs", "read", map[string]any{"path": "a.go"}, "contents").
//		Build()
//
// Chain only the parts you need; message IDs and timestamps are generated.
type TranscriptBuilder struct {
	messages core.Transcript
}

// NewTranscriptBuilder creates an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder { return &TranscriptBuilder{} }

// Directive appends a directive message (chainable).
func (b *TranscriptBuilder) Directive(text string) *TranscriptBuilder {
	b.messages = append(b.messages, core.NewDirectiveMessage("coordinator", text))
	return b
}

// Chat appends a plain agent chat message (chainable).
func (b *TranscriptBuilder) Chat(author, text string) *TranscriptBuilder {
	b.messages = append(b.messages, core.NewChatMessage(author, text))
	return b
}

// Call appends an unmatched tool call message and returns the builder along
// with the generated call ID so a matching result can be added later.
func (b *TranscriptBuilder) Call(author, toolName, operation string, args map[string]any) (*TranscriptBuilder, string) {
	msg := core.NewToolCallMessage(author, toolName, operation, args)
	b.messages = append(b.messages, msg)
	return b, msg.FunctionCall.ID
}

// Result appends a tool result message for the given call ID (chainable).
func (b *TranscriptBuilder) Result(callID, toolName string, result any, err error) *TranscriptBuilder {
	b.messages = append(b.messages, core.NewToolResultMessage(callID, toolName, result, err))
	return b
}

// CallPair appends a matched call/result pair in adjacent positions
// (chainable).
func (b *TranscriptBuilder) CallPair(author, toolName, operation string, args map[string]any, result any) *TranscriptBuilder {
	call := core.NewToolCallMessage(author, toolName, operation, args)
	b.messages = append(b.messages, call)
	b.messages = append(b.messages, core.NewToolResultMessage(call.FunctionCall.ID, toolName, result, nil))
	return b
}

// Build returns the accumulated transcript.
func (b *TranscriptBuilder) Build() core.Transcript { return b.messages }
