package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/config"
	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/suggest"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage po configuration",
	GroupID: "system",
	Long: `Settings live in ~/.config/po/config.json (or $PO_CONFIG_DIR).
Each key can be overridden by its environment variable.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value (empty value clears it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkKey(args[0]); err != nil {
			return fail(err)
		}
		if err := config.Set(args[0], args[1]); err != nil {
			return fail(err)
		}
		if env := config.EnvName(args[0]); env != "" {
			if _, src, _ := config.Get(args[0]); src == config.SourceEnv {
				output.Warning("%s is set and overrides this value", env)
			}
		}
		if strings.TrimSpace(args[1]) == "" {
			output.Success("Cleared %s", args[0])
		} else {
			output.Success("Set %s = %s", args[0], displayValue(args[0], args[1]))
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value and where it came from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkKey(args[0]); err != nil {
			return fail(err)
		}
		val, src, err := config.Get(args[0])
		if err != nil {
			return fail(err)
		}
		if jsonFlag {
			return output.JSON(map[string]string{"key": args[0], "value": val, "source": string(src)})
		}
		if val == "" {
			fmt.Printf("%s: (default)\n", args[0])
			return nil
		}
		fmt.Printf("%s: %s (%s)\n", args[0], displayValue(args[0], val), src)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"show"},
	Short:   "List all config keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		type entry struct {
			Key    string `json:"key"`
			Value  string `json:"value"`
			Source string `json:"source"`
			Env    string `json:"env"`
		}
		var entries []entry
		for _, k := range config.Keys() {
			val, src, _ := config.Get(k)
			entries = append(entries, entry{Key: k, Value: displayValue(k, val), Source: string(src), Env: config.EnvName(k)})
		}
		if jsonFlag {
			return output.JSON(entries)
		}
		for _, e := range entries {
			val := e.Value
			if val == "" {
				val = "(default)"
			}
			fmt.Printf("  %-24s %-40s %s\n", e.Key, val, e.Env)
		}
		return nil
	},
}

// checkKey rejects unknown keys, naming the closest known ones.
func checkKey(name string) error {
	keys := config.Keys()
	if slices.Contains(keys, name) {
		return nil
	}
	reason := "unknown config key"
	if hint := suggest.Hint(suggest.Closest(name, keys)); hint != "" {
		reason += "; " + hint
	}
	return &governance.ValidationError{Field: name, Reason: reason}
}

// displayValue masks secrets.
func displayValue(key, val string) string {
	if val != "" && strings.HasSuffix(key, "secret") {
		return "********"
	}
	return val
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
}
