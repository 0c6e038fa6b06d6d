package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/armbench/internal/logging"
	"github.com/nvandessel/armbench/internal/mcp"
	"github.com/nvandessel/armbench/internal/store"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve armbench tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  armbench_run         run a simulation and return its summary
  armbench_strategies  list the selection strategies
  armbench_runs        list stored runs (only with --db or --persist)

Logs go to stderr. Each tool call is appended to audit.jsonl in --audit-dir.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			persist, _ := cmd.Flags().GetBool("persist")
			auditDir, _ := cmd.Flags().GetString("audit-dir")
			noAudit, _ := cmd.Flags().GetBool("no-audit")
			level, _ := cmd.Flags().GetString("log-level")

			if !logging.ValidLevel(level) {
				return fmt.Errorf("invalid log level %q (valid: info, debug, trace)", level)
			}

			if persist && dbPath == "" {
				p, err := store.DefaultDBPath()
				if err != nil {
					return err
				}
				dbPath = p
			}
			if auditDir == "" && !noAudit {
				dir, err := store.DataDir()
				if err != nil {
					return err
				}
				auditDir = dir
			}
			if noAudit {
				auditDir = ""
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "armbench",
				Version:  version,
				DBPath:   dbPath,
				AuditDir: auditDir,
				Logger:   logging.NewLogger(level, cmd.ErrOrStderr()),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return server.Run(ctx)
		},
	}

	cmd.Flags().String("db", "", "Save every run to this SQLite database and enable armbench_runs")
	cmd.Flags().Bool("persist", false, "Save every run to ~/.armbench/runs.db (ignored with --db)")
	cmd.Flags().String("audit-dir", "", "Directory for audit.jsonl (default ~/.armbench)")
	cmd.Flags().Bool("no-audit", false, "Disable the tool call audit log")
	cmd.Flags().String("log-level", "info", "Log level: info, debug, trace")

	return cmd
}
