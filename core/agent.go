package core

import (
	"context"
	"fmt"

	"github.com/taskweave/taskweave/failure"
)

var (
	errEmptyAgentName = fmt.Errorf("%w: agent descriptor missing name", failure.ErrMalformedConfig)
	errNilRespond     = fmt.Errorf("%w: agent descriptor missing respond function", failure.ErrMalformedConfig)
)

// RespondFunc produces an agent's next message given the phase objective and
// the (compacted) transcript so far. The pipeline never interprets message
// content; implementations typically delegate to a model call.
type RespondFunc func(ctx context.Context, objective string, transcript Transcript) (Message, error)

// AgentDescriptor is the static configuration for one conversation
// participant. Descriptors are plain phase-scoped data: adding an agent to a
// phase is adding a descriptor value, not a new type. Read-only for the
// lifetime of a phase.
type AgentDescriptor struct {
	// Name is the unique identifier the speaker selector chooses between.
	Name string
	// Description is free text describing the agent's capability, rendered
	// into the selection prompt.
	Description string
	// Respond generates the agent's next message when selected.
	Respond RespondFunc
}

// Validate reports whether the descriptor is usable.
func (a AgentDescriptor) Validate() error {
	if a.Name == "" {
		return errEmptyAgentName
	}
	if a.Respond == nil {
		return errNilRespond
	}
	return nil
}
