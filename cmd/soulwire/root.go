// Package main provides the CLI entry point for the soulwire agent
// runtime: a terminal-native conversational agent with pluggable LLM
// providers, a sandboxed tool/approval model, and front-ends spanning a
// shell, a single-shot print mode, a WebSocket RPC server, and chat
// platforms.
//
// # Basic usage
//
//	soulwire run --agent ./agent.yaml
//	soulwire run --print --agent ./agent.yaml "summarize this repo"
//	soulwire sessions list
//	soulwire replay <session-id>
//
// # Environment variables
//
//   - SOULWIRE_CONFIG: path to the YAML daemon config (default: soulwire.yaml)
//   - SOULWIRE_HOST_NAMESPACE: prefixes the work-dir hash for a shared
//     network share directory
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY: provider credentials
//     when not set in config
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "soulwire",
		Short: "soulwire - a terminal-native conversational agent runtime",
		Long: `soulwire drives a single agent conversation through a pluggable LLM
provider, a sandboxed tool/approval model, and any of several front-ends:
an interactive shell, a single-shot print mode, a WebSocket RPC server,
or a chat platform (Discord, Slack, Telegram).`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "soulwire.yaml", "Path to YAML configuration file")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildSessionsCmd(),
		buildReplayCmd(),
	)
	return rootCmd
}
