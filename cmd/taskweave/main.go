// Package main implements the taskweave CLI for running multi-phase agent
// pipelines from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath points at an optional YAML configuration file.
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskweave",
	Short: "Run multi-phase agent pipelines",
	Long: `taskweave drives a staged conversion pipeline in which teams of agents
work through ordered phases (analysis, design, conversion, documentation),
with model-backed speaker selection and completion judging per phase.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(phasesCmd)
}

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List the phases of the built-in pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range demoPhases(nil) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Name, p.Objective)
		}
		return nil
	},
}
