package model

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/taskweave/taskweave/failure"
)

func TestResponse_DecodeStructured(t *testing.T) {
	resp := &Response{Structured: json.RawMessage(`{"speaker":"writer","reason":"ok"}`)}
	var out struct {
		Speaker string `json:"speaker"`
		Reason  string `json:"reason"`
	}
	if err := resp.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Speaker != "writer" {
		t.Errorf("decoded %+v", out)
	}
}

func TestResponse_DecodeTextFallback(t *testing.T) {
	resp := &Response{Text: `{"done":true}`}
	var out struct {
		Done bool `json:"done"`
	}
	if err := resp.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.Done {
		t.Error("text fallback not decoded")
	}
}

func TestResponse_DecodeFailuresClassified(t *testing.T) {
	var out map[string]any

	empty := &Response{}
	if err := empty.Decode(&out); !errors.Is(err, failure.ErrMalformedResponse) {
		t.Errorf("empty response should classify as malformed, got %v", err)
	}

	garbage := &Response{Structured: json.RawMessage(`not json`)}
	if err := garbage.Decode(&out); !errors.Is(err, failure.ErrMalformedResponse) {
		t.Errorf("garbage response should classify as malformed, got %v", err)
	}
}

func TestMockInvoker_Matching(t *testing.T) {
	mock := NewMockInvoker("m").
		AddStructured("Choose which participant", map[string]any{"speaker": "writer"}).
		AddText("say hello", "hello there")

	resp, err := mock.Invoke(context.Background(), Request{Prompt: "Please: Choose which participant speaks."})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var sel struct {
		Speaker string `json:"speaker"`
	}
	if err := resp.Decode(&sel); err != nil || sel.Speaker != "writer" {
		t.Errorf("structured match failed: %+v err=%v", sel, err)
	}

	resp, err = mock.Invoke(context.Background(), Request{Prompt: "now say hello please"})
	if err != nil || resp.Text != "hello there" {
		t.Errorf("text match failed: %+v err=%v", resp, err)
	}
}

func TestMockInvoker_Fallback(t *testing.T) {
	mock := NewMockInvoker("m").SetFallback(map[string]any{"done": true})
	resp, err := mock.Invoke(context.Background(), Request{Prompt: "anything"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var v struct {
		Done bool `json:"done"`
	}
	if err := resp.Decode(&v); err != nil || !v.Done {
		t.Errorf("fallback not used: %+v err=%v", v, err)
	}
}

func TestMockInvoker_NoMatchEchoes(t *testing.T) {
	mock := NewMockInvoker("m")
	resp, err := mock.Invoke(context.Background(), Request{Prompt: "unmatched"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Text == "" {
		t.Error("without fallback a mock echo is expected")
	}
}

func TestMockInvoker_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockInvoker("m").Invoke(ctx, Request{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context error, got %v", err)
	}
}

func TestMockInvoker_Info(t *testing.T) {
	info := NewMockInvoker("m").Info()
	if info.Name != "m" || info.Provider != "mock" {
		t.Errorf("Info = %+v", info)
	}
}
