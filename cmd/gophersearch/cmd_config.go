package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/gophersearch/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configListCmd.Flags().Bool("show-secrets", false, "print credentials unmasked")
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd, configValidateCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration file",
}

var configListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List configuration values, optionally under a key prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		show, _ := cmd.Flags().GetBool("show-secrets")
		values, err := config.ListValues(loadConfig(), !show)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		var prefix string
		if len(args) == 1 {
			prefix = strings.TrimSuffix(args[0], ".") + "."
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			if prefix == "" || strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return fmt.Errorf("no config keys under %q", args[0])
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "%s = %v\n", k, values[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
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
	Long:  "Set a configuration value. The resulting file must still pass validation; a running server picks the change up on SIGHUP.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]
		if err := config.SetValue(cfgPath, key, raw); err != nil {
			return err
		}
		if _, err := config.Load(cfgPath); err != nil {
			return fmt.Errorf("%s was written but the config no longer loads: %w", key, err)
		}
		if config.IsSecretKey(key) {
			raw = config.MaskSecrets(map[string]any{key: raw})[key].(string)
		}
		fmt.Fprintf(os.Stdout, "%s = %s\n", key, raw)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, cfgPath)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file without starting anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cfg.LLM.APIKey == "" {
			fmt.Fprintln(os.Stderr, "warning: llm.api_key is empty")
		}
		fmt.Fprintf(os.Stdout, "%s: ok (search=%s, storage=%s)\n", cfgPath, cfg.Search.Provider, cfg.Storage.Driver)
		return nil
	},
}
