package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/report"
	"github.com/nvandessel/armbench/internal/simulation"
	"github.com/nvandessel/armbench/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs saved in a SQLite database",
		Long: `Inspect runs written with --format sqlite.

Without --db the per-user database ~/.armbench/runs.db is used, the one
'armbench mcp-server --persist' writes to.

Examples:
  armbench runs list
  armbench runs list --db runs.db
  armbench runs show 6f1c... --db runs.db
  armbench runs delete 6f1c... --db runs.db`,
	}

	cmd.PersistentFlags().String("db", "", "Run database written by 'armbench run --format sqlite' (default ~/.armbench/runs.db)")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)

	return cmd
}

func openRunDB(cmd *cobra.Command) (*store.SQLiteStore, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	return st, nil
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			st, err := openRunDB(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Runs(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				if runs == nil {
					runs = []store.RunRow{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs stored.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSTRATEGY\tARMS\tROUNDS\tREGRET\tSTARTED")
			for _, r := range runs {
				rounds := fmt.Sprintf("%d", r.Played)
				if r.FinishedAt == nil {
					rounds = "incomplete"
				} else if r.Played != r.Rounds {
					rounds = fmt.Sprintf("%d/%d", r.Played, r.Rounds)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					r.RunID, r.StrategyLabel, r.ArmCount, rounds,
					report.FormatRegret(r.Regret), r.StartedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the final arm table of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			withRounds, _ := cmd.Flags().GetBool("rounds")
			runID := args[0]

			st, err := openRunDB(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := findRun(cmd, st, runID)
			if err != nil {
				return err
			}
			arms, err := st.Arms(cmd.Context(), runID)
			if err != nil {
				return err
			}

			var records []simulation.Record
			if withRounds {
				if records, err = st.Rounds(cmd.Context(), runID); err != nil {
					return err
				}
			}

			if jsonOut {
				result := map[string]interface{}{
					"run":  run,
					"arms": arms,
				}
				if withRounds {
					result["rounds"] = records
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
			}

			sum := simulation.Summary{
				RunInfo: simulation.RunInfo{
					RunID:         run.RunID,
					Strategy:      run.Strategy,
					StrategyLabel: run.StrategyLabel,
					Rounds:        run.Rounds,
					Seed:          run.Seed,
					StartedAt:     run.StartedAt,
				},
				Arms:   make([]bandit.Arm, len(arms)),
				Regret: run.Regret,
				Played: run.Played,
			}
			for i, a := range arms {
				sum.Arms[i] = bandit.Arm{Plays: a.Plays, Wins: a.Wins, ProbReal: a.ProbReal, ProbEst: a.ProbEst}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (seed %d)\n", run.RunID, run.Seed)
			if run.FinishedAt == nil {
				fmt.Fprintln(out, "Run did not finish; arm counters are the initial state.")
			}
			if err := report.WriteSummary(out, sum); err != nil {
				return err
			}
			if withRounds && len(records) > 0 {
				fmt.Fprintln(out)
				csv := report.NewCSVSink(out)
				if err := csv.Start(cmd.Context(), sum.RunInfo); err != nil {
					return err
				}
				for _, rec := range records {
					if err := csv.Emit(cmd.Context(), rec); err != nil {
						return err
					}
				}
				return csv.Finish(cmd.Context(), sum)
			}
			return nil
		},
	}

	cmd.Flags().Bool("rounds", false, "Also print every stored round as CSV")

	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			st, err := openRunDB(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "deleted",
					"run_id": args[0],
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func findRun(cmd *cobra.Command, st *store.SQLiteStore, runID string) (store.RunRow, error) {
	runs, err := st.Runs(cmd.Context())
	if err != nil {
		return store.RunRow{}, err
	}
	for _, r := range runs {
		if r.RunID == runID {
			return r, nil
		}
	}
	return store.RunRow{}, fmt.Errorf("run %s: %w", runID, store.ErrRunNotFound)
}
