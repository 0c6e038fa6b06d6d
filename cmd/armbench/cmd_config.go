package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect armbench configuration",
		Long: `View and check armbench configuration.

Configuration is read from ~/.armbench/config.yaml (or --config), then
ARMBENCH_* environment variables are applied on top.

Examples:
  armbench config show                      # Effective configuration as YAML
  armbench config show --config bench.yaml  # ...starting from another file
  armbench config validate bench.yaml       # Check a file can start a run`,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default ~/.armbench/config.yaml if present)")

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
	)

	return cmd
}

func loadConfigFlag(cmd *cobra.Command) (*config.ArmbenchConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfigFlag(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that a configuration can start a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			var cfg *config.ArmbenchConfig
			var err error
			if len(args) == 1 {
				cfg, err = config.LoadFrom(args[0])
			} else {
				cfg, err = loadConfigFlag(cmd)
			}
			if err == nil {
				err = cfg.Validate()
			}

			if jsonOut {
				result := map[string]interface{}{"valid": err == nil}
				var cfgErr *bandit.ConfigError
				if errors.As(err, &cfgErr) {
					result["field"] = cfgErr.Field
					result["reason"] = cfgErr.Reason
				} else if err != nil {
					result["error"] = err.Error()
				}
				if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(result); encErr != nil {
					return encErr
				}
				return err
			}

			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}
