package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulwire/soulwire/internal/frontend"
	"github.com/soulwire/soulwire/internal/wire"
)

func buildReplayCmd() *cobra.Command {
	var showTimestamps bool
	cmd := &cobra.Command{
		Use:   "replay <recording-file>",
		Short: "Replay a recorded Wire log to stdout",
		Long: `replay reads a wire.jsonl recording written alongside a session's
context file and prints every message it carries in order, in the same
rendering a shell front-end would have shown live.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return wire.ReplayRecorded(args[0], func(timestamp int64, msg wire.WireMessage) error {
				text, ok := frontend.Render(msg)
				if su, isStatus := msg.(wire.StatusUpdate); isStatus {
					if line := frontend.StatusLine(su); line != "" {
						text, ok = line, true
					}
				}
				if !ok {
					return nil
				}
				if showTimestamps {
					ts := time.Unix(timestamp, 0).Format("15:04:05")
					fmt.Fprintf(out, "[%s] %s", ts, text)
				} else {
					fmt.Fprint(out, text)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showTimestamps, "timestamps", false, "Prefix each rendered line with its recorded timestamp")
	return cmd
}
