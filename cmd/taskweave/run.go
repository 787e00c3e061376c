package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/taskweave/taskweave"
	"github.com/taskweave/taskweave/config"
	"github.com/taskweave/taskweave/core"
	"github.com/taskweave/taskweave/logging"
	"github.com/taskweave/taskweave/model"
	modelanthropic "github.com/taskweave/taskweave/model/anthropic"
	modelopenai "github.com/taskweave/taskweave/model/openai"
	"github.com/taskweave/taskweave/pipeline"
	"github.com/taskweave/taskweave/tool"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Run the built-in conversion pipeline for an objective",
	Long: `Run submits the objective to the built-in four-phase pipeline and waits
for completion, printing per-phase results as they finish.

Examples:
  # Run against the configured model provider
  taskweave run "convert pkg/legacy to the new storage API"

  # Offline dry run with the deterministic mock provider
  TASKWEAVE_MODEL_PROVIDER=mock taskweave run "dry run"`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "maximum time to wait for completion")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Output:    os.Stderr,
		Component: "cli",
	})

	capability, responder, err := buildInvokers(cfg)
	if err != nil {
		return err
	}

	pl, err := taskweave.New(demoPhases(responder), capability, capability,
		taskweave.WithConfig(cfg),
		taskweave.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processID, err := pl.Submit(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "submitted process %s\n", processID)

	run, err := pl.AwaitCompletion(ctx, processID, runTimeout)
	if err != nil {
		if cancelErr := pl.Cancel(processID); cancelErr == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "run cancelled")
		}
		return err
	}

	for _, ph := range run.Phases() {
		fmt.Fprintf(cmd.OutOrStdout(), "phase %-14s %s\n", ph.Name, ph.Status)
		if len(ph.Payload) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", ph.Payload)
		}
	}
	if rec := run.FailureRecord(); rec != nil {
		return fmt.Errorf("run failed in phase %s: %s (%s)", rec.Phase, rec.Message, rec.Class)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s completed\n", processID)
	return nil
}

// buildInvokers resolves the configured provider into the capability invoker
// used for selection and termination plus the responder invoker agents use
// for their own turns.
func buildInvokers(cfg *config.Config) (model.Invoker, model.Invoker, error) {
	switch cfg.Model.Provider {
	case "anthropic":
		inv := modelanthropic.New(func(o *modelanthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
		})
		return inv, inv, nil
	case "openai":
		inv := modelopenai.New(func(o *modelopenai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
		})
		return inv, inv, nil
	case "mock":
		// Deterministic offline demo: every phase runs one scripted round.
		mock := model.NewMockInvoker("demo").
			SetFallback(map[string]any{"done": true, "reason": "scripted demo verdict"}).
			AddStructured("Choose which participant", map[string]any{"speaker": "lead", "reason": "scripted"})
		return mock, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

// demoPhases builds the built-in four-phase conversion pipeline. When
// responder is nil the agents reply with canned text so the pipeline can run
// fully offline.
func demoPhases(responder model.Invoker) []pipeline.Phase {
	notes := notesProvider()

	lead := func(role string) core.AgentDescriptor {
		return core.AgentDescriptor{
			Name:        "lead",
			Description: role,
			Respond:     respondWith(responder, "lead", role),
		}
	}
	reviewer := func(role string) core.AgentDescriptor {
		return core.AgentDescriptor{
			Name:        "reviewer",
			Description: role,
			Respond:     respondWith(responder, "reviewer", role),
		}
	}

	return []pipeline.Phase{
		{
			Name:      "analysis",
			Objective: "Survey the input and identify the units of work and their dependencies.",
			Agents:    []core.AgentDescriptor{lead("analyst mapping the source material"), reviewer("checks the analysis for gaps")},
			Providers: []tool.Provider{notes},
		},
		{
			Name:      "design",
			Objective: "Decide the target structure and record the conversion plan.",
			Agents:    []core.AgentDescriptor{lead("architect proposing the target design"), reviewer("challenges risky design choices")},
			Providers: []tool.Provider{notes},
		},
		{
			Name:      "conversion",
			Objective: "Carry out the planned conversion unit by unit.",
			Agents:    []core.AgentDescriptor{lead("converter executing the plan"), reviewer("verifies each converted unit")},
			Providers: []tool.Provider{notes},
			MaxRounds: 20,
		},
		{
			Name:      "documentation",
			Objective: "Summarize what changed and document the result.",
			Agents:    []core.AgentDescriptor{lead("writer producing the summary"), reviewer("proofreads the documentation")},
			Providers: []tool.Provider{notes},
		},
	}
}

// respondWith builds the agent turn function. With a live responder the
// agent asks the model; without one it emits a deterministic canned reply.
func respondWith(responder model.Invoker, name, role string) core.RespondFunc {
	return func(ctx context.Context, objective string, transcript core.Transcript) (core.Message, error) {
		if responder == nil {
			return core.NewChatMessage(name, fmt.Sprintf("(%s) acknowledged: %s", role, objective)), nil
		}
		resp, err := responder.Invoke(ctx, model.Request{
			Purpose:      model.PurposeRespond,
			Instructions: fmt.Sprintf("You are %s, %s. Reply with your next contribution only.", name, role),
			Prompt:       fmt.Sprintf("Objective: %s\n\nConversation so far:\n%s", objective, transcript.Render()),
		})
		if err != nil {
			return core.Message{}, err
		}
		return core.NewChatMessage(name, strings.TrimSpace(resp.Text)), nil
	}
}

// notesProvider exposes a shared scratchpad tool for the demo pipeline.
func notesProvider() tool.Provider {
	var mu sync.Mutex
	var entries []string
	return tool.NewFuncProvider("notes", map[string]tool.OperationFunc{
		"record": func(_ context.Context, args map[string]any) (any, error) {
			text, _ := args["text"].(string)
			if text == "" {
				return nil, fmt.Errorf("missing text argument")
			}
			mu.Lock()
			entries = append(entries, text)
			n := len(entries)
			mu.Unlock()
			return map[string]any{"recorded": n}, nil
		},
		"list": func(_ context.Context, _ map[string]any) (any, error) {
			mu.Lock()
			out := make([]string, len(entries))
			copy(out, entries)
			mu.Unlock()
			return out, nil
		},
	})
}
