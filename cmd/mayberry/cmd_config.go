package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/mayberry/internal/config"
	"github.com/user/mayberry/internal/scheduler"
)

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"api.base_url":   "MAYBERRY_API_URL",
	"telegram.token": "MAYBERRY_TELEGRAM_TOKEN",
	"data_dir":       "MAYBERRY_DATA_DIR",
}

// checkers validate and normalize values written with `config set`. The
// returned string is what SetValue stores.
var checkers = map[string]func(string) (string, error){
	"api.base_url": func(v string) (string, error) {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", fmt.Errorf("api.base_url must be an http(s) URL, got %q", v)
		}
		return strings.TrimRight(v, "/"), nil
	},
	"log_level": func(v string) (string, error) {
		v = strings.ToLower(v)
		if !slices.Contains([]string{"debug", "info", "warn", "error"}, v) {
			return "", fmt.Errorf("log_level must be debug, info, warn or error, got %q", v)
		}
		return v, nil
	},
	"privacy.watch_schedule": func(v string) (string, error) {
		return v, scheduler.Validate(v)
	},
	"escalation.targets": func(v string) (string, error) {
		targets := splitList(v)
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			if err := json.Unmarshal([]byte(v), &targets); err != nil {
				return "", fmt.Errorf("escalation.targets: %w", err)
			}
		}
		b, err := json.Marshal(targets)
		return string(b), err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change configuration",
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"list"},
	Short:   "Show the effective configuration and where each value comes from",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := config.ListValues(loadConfig(), true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
		for _, k := range slices.Sorted(maps.Keys(values)) {
			fmt.Fprintf(w, "%s\t%v\t%s\n", k, values[k], valueSource(k))
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one stored configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		val, err := config.GetValue(cfgPath, key)
		if err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			val = config.MaskSecrets(map[string]any{key: val})[key]
		}
		fmt.Println(val)
		if env, ok := envKeys[key]; ok && os.Getenv(env) != "" {
			faint.Fprintf(os.Stderr, "%s is set and overrides this value\n", env)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a configuration value",
	Long: "Store a configuration value. escalation.targets takes a comma separated\n" +
		"list, for example: mayberry config set escalation.targets log,telegram:123456",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if check, ok := checkers[key]; ok {
			v, err := check(value)
			if err != nil {
				return err
			}
			value = v
		}
		if _, err := config.GetValue(cfgPath, key); err != nil {
			return err
		}
		if err := config.SetValue(cfgPath, key, value); err != nil {
			return err
		}

		shown := any(value)
		if config.IsSecretKey(key) {
			shown = config.MaskSecrets(map[string]any{key: value})[key]
		}
		green.Printf("%s = %v\n", key, shown)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cfgPath)
	},
}

func valueSource(key string) string {
	if env, ok := envKeys[key]; ok && os.Getenv(env) != "" {
		return "env " + env
	}
	return "file"
}
