package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/nvandessel/armbench/internal/strategy"
	"github.com/spf13/cobra"
)

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available selection strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			catalog := strategy.Catalog()
			aliases := strategy.Aliases()

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"strategies": catalog,
					"aliases":    aliases,
					"count":      len(catalog),
				})
			}

			// Invert the alias table so each strategy lists its short names.
			short := make(map[string][]string)
			for alias, name := range aliases {
				short[name] = append(short[name], alias)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tALIASES\tPARAMS\tDESCRIPTION")
			for _, info := range catalog {
				names := short[info.Name]
				sort.Strings(names)
				desc := info.Description
				if info.Baseline {
					desc += " (baseline)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					info.Name, orDash(strings.Join(names, ",")), orDash(strings.Join(info.Params, ",")), desc)
			}
			return tw.Flush()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
