package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/soulwire/soulwire/internal/session"
)

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}
	cmd.AddCommand(buildSessionsListCmd(), buildSessionsShowCmd())
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	var (
		workDir  string
		indexDSN string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions recorded for a work directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openSessionsIndex(indexDSN)
			if err != nil {
				return err
			}
			defer idx.Close()

			summaries, err := idx.List(cmd.Context(), workDir)
			if err != nil {
				return fmt.Errorf("sessions list: %w", err)
			}
			printSessionTable(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "work-dir", ".", "Work directory to list sessions for")
	cmd.Flags().StringVar(&indexDSN, "index", "", "Sessions index DSN; sqlite:<path> or postgres:<dsn> (default: sqlite index under the share directory)")
	return cmd
}

func buildSessionsShowCmd() *cobra.Command {
	var indexDSN string
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session's summary and context file path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openSessionsIndex(indexDSN)
			if err != nil {
				return err
			}
			defer idx.Close()

			s, err := idx.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("sessions show: %w", err)
			}
			printSessionTable(cmd.OutOrStdout(), []session.Summary{s})
			return nil
		},
	}
	cmd.Flags().StringVar(&indexDSN, "index", "", "Sessions index DSN; sqlite:<path> or postgres:<dsn> (default: sqlite index under the share directory)")
	return cmd
}

// openSessionsIndex resolves --index into a concrete session.Index. An
// empty dsn falls back to a SQLite index file alongside the share
// directory soulwire already uses for context files.
func openSessionsIndex(dsn string) (session.Index, error) {
	if dsn == "" {
		shareDir, err := session.ShareDir()
		if err != nil {
			return nil, err
		}
		return session.OpenSQLiteIndex(shareDir + "/sessions.db")
	}
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return session.OpenSQLiteIndex(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "postgres:"):
		return session.OpenPostgresIndexFromDSN(strings.TrimPrefix(dsn, "postgres:"), session.DefaultPostgresConfig())
	default:
		return nil, fmt.Errorf("sessions: --index must start with sqlite: or postgres: (got %q)", dsn)
	}
}

func printSessionTable(out io.Writer, summaries []session.Summary) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tWORK DIR\tUPDATED\tCONTEXT FILE")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Title, s.WorkDir, s.UpdatedAt.Format("2006-01-02 15:04:05"), s.ContextFile)
	}
	tw.Flush()
}
