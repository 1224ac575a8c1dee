package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/campaignd/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
	configListCmd.Flags().BoolVar(&revealSecrets, "reveal", false, "show secret values unmasked")
}

var revealSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage campaignd configuration",
	Long: `Inspect and edit the campaignd config file. Keys use dot notation:

  runtime.base_url       agent runtime endpoint
  runtime.api_key        bearer token for the runtime (masked in output)
  poll.interval_seconds  seconds between result polls
  poll.degraded_after    consecutive failed cycles before the degraded flag
  tabs.mode              dashboard tab gating, "strict" or "guided"
  http.listen            daemon API listen address

A running daemon picks up changes on restart (campaignd restart).`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		values, err := config.ListValues(cfg, !revealSecrets)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, values[k])
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkConfigValue(args[0], args[1]); err != nil {
			return err
		}
		if err := config.SetValue(cfgPath, args[0], args[1]); err != nil {
			return err
		}
		display := args[1]
		if config.IsSecretKey(args[0]) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], display)
		fmt.Fprintln(os.Stdout, "Restart the daemon to apply: campaignd restart")
		return nil
	},
}

// checkConfigValue rejects values the daemon would refuse or silently
// misread at startup.
func checkConfigValue(key, value string) error {
	switch key {
	case "tabs.mode":
		if value != "strict" && value != "guided" {
			return fmt.Errorf("tabs.mode must be \"strict\" or \"guided\", got %q", value)
		}
	case "poll.interval_seconds", "poll.degraded_after", "runtime.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
	case "runtime.base_url":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("runtime.base_url must start with http:// or https://, got %q", value)
		}
	}
	return nil
}
