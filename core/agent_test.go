package core

import (
	"context"
	"errors"
	"testing"

	"github.com/taskweave/taskweave/failure"
)

func TestAgentDescriptor_Validate(t *testing.T) {
	respond := func(context.Context, string, Transcript) (Message, error) {
		return Message{}, nil
	}

	valid := AgentDescriptor{Name: "analyst", Respond: respond}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid descriptor rejected: %v", err)
	}

	if err := (AgentDescriptor{Respond: respond}).Validate(); !errors.Is(err, failure.ErrMalformedConfig) {
		t.Errorf("missing name should classify as malformed config, got %v", err)
	}
	if err := (AgentDescriptor{Name: "analyst"}).Validate(); !errors.Is(err, failure.ErrMalformedConfig) {
		t.Errorf("missing respond should classify as malformed config, got %v", err)
	}
}
