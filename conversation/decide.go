package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/failure"
	"github.com/taskweave/taskweave/internal/util"
	"github.com/taskweave/taskweave/model"
)

const selectorTemplate = `You are coordinating a conversation between specialist agents working toward an objective.

Objective: {{.Objective}}

Participants:
{{range .Agents}}- {{.Name}}: {{.Description}}
{{end}}
Conversation so far:
{{.Transcript}}

Choose which participant should speak next. Answer with exactly one participant name.`

const terminationTemplate = `You are judging whether a conversation between specialist agents has satisfied its objective.

Objective: {{.Objective}}

Conversation so far:
{{.Transcript}}

Decide whether the objective is satisfied. Explain your decision in one sentence.`

type selection struct {
	Speaker string `json:"speaker"`
	Reason  string `json:"reason"`
}

type verdict struct {
	Done   bool   `json:"done"`
	Reason string `json:"reason"`
}

// selectSpeaker asks the selector capability for the next speaker. The
// returned name must match a configured candidate after whitespace and case
// normalization; an unmatched or unparseable selection is re-asked a bounded
// number of times, then escalated as a classified failure rather than
// silently defaulting to an arbitrary agent.
func (m *Manager) selectSpeaker(ctx context.Context, objective string, transcript core.Transcript) (core.AgentDescriptor, error) {
	names := make([]string, 0, len(m.agents))
	for _, a := range m.agents {
		names = append(names, a.Name)
	}

	prompt, err := util.RenderTemplate(selectorTemplate, map[string]any{
		"Objective":  objective,
		"Agents":     m.agents,
		"Transcript": m.compactor.Compact(transcript, m.budget).Render(),
	})
	if err != nil {
		return core.AgentDescriptor{}, err
	}

	req := model.Request{
		Purpose:    model.PurposeSelection,
		Prompt:     prompt,
		SchemaName: "select_speaker",
		Schema: util.ObjectSchema(map[string]any{
			"speaker": util.EnumProp("name of the participant to speak next", names),
			"reason":  util.StringProp("one sentence explaining the choice"),
		}),
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRecovery; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.AgentDescriptor{}, err
		}
		start := time.Now()
		sel, err := m.invokeSelection(ctx, req)
		if err != nil {
			lastErr = err
			m.logger.Warn("speaker selection failed", "phase", m.phase, "attempt", attempt+1, "error", err)
			continue
		}
		if agent, ok := m.byName[normalizeName(sel.Speaker)]; ok {
			m.logger.Debug("speaker selected", "phase", m.phase, "speaker", agent.Name, "reason", sel.Reason, "duration", time.Since(start))
			return agent, nil
		}
		lastErr = fmt.Errorf("%w: %q not in candidates %v", failure.ErrInvalidSelection, sel.Speaker, names)
		m.logger.Warn("speaker selection invalid", "phase", m.phase, "attempt", attempt+1, "selected", sel.Speaker)
	}
	return core.AgentDescriptor{}, wrapTimeout(lastErr)
}

func (m *Manager) invokeSelection(ctx context.Context, req model.Request) (*selection, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	resp, err := m.selector.Invoke(callCtx, req)
	if err != nil {
		return nil, wrapTimeout(fmt.Errorf("selector: %w", err))
	}
	var sel selection
	if err := resp.Decode(&sel); err != nil {
		return nil, fmt.Errorf("selector: %w", err)
	}
	if sel.Speaker == "" {
		return nil, fmt.Errorf("selector: %w: empty speaker", failure.ErrMalformedResponse)
	}
	return &sel, nil
}

// checkTermination asks the termination predicate whether the objective is
// satisfied, with the same bounded in-round recovery as selection.
func (m *Manager) checkTermination(ctx context.Context, objective string, transcript core.Transcript) (bool, string, error) {
	prompt, err := util.RenderTemplate(terminationTemplate, map[string]any{
		"Objective":  objective,
		"Transcript": m.compactor.Compact(transcript, m.budget).Render(),
	})
	if err != nil {
		return false, "", err
	}

	req := model.Request{
		Purpose:    model.PurposeTermination,
		Prompt:     prompt,
		SchemaName: "judge_completion",
		Schema: util.ObjectSchema(map[string]any{
			"done":   util.BoolProp("true if the objective is satisfied"),
			"reason": util.StringProp("one sentence explaining the decision"),
		}),
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRecovery; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		resp, err := m.terminator.Invoke(callCtx, req)
		cancel()
		if err != nil {
			lastErr = wrapTimeout(fmt.Errorf("termination predicate: %w", err))
			m.logger.Warn("termination check failed", "phase", m.phase, "attempt", attempt+1, "error", err)
			continue
		}
		var v verdict
		if err := resp.Decode(&v); err != nil {
			lastErr = fmt.Errorf("termination predicate: %w", err)
			m.logger.Warn("termination check malformed", "phase", m.phase, "attempt", attempt+1, "error", err)
			continue
		}
		return v.Done, v.Reason, nil
	}
	return false, "", lastErr
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
