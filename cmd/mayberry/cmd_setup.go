package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/mayberry/internal/config"
	"github.com/user/mayberry/internal/scheduler"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		bold.Println("MAYBERRY Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.API.BaseURL = strings.TrimRight(prompt(scanner, "Service base URL", cfg.API.BaseURL), "/")

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		targets := prompt(scanner, "Emergency targets, comma separated", strings.Join(cfg.Escalation.Targets, ","))
		cfg.Escalation.Targets = splitList(targets)

		schedule := prompt(scanner, "Privacy watch schedule", cfg.Privacy.WatchSchedule)
		if err := scheduler.Validate(schedule); err != nil {
			yellow.Printf("Keeping %q: %v\n", cfg.Privacy.WatchSchedule, err)
		} else {
			cfg.Privacy.WatchSchedule = schedule
		}

		cfg.LogLevel = prompt(scanner, "Log level (debug, info, warn, error)", cfg.LogLevel)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
