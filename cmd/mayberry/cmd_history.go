package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/mayberry/internal/state"
	"github.com/user/mayberry/internal/types"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	historyShowCmd.Flags().Int("limit", 0, "show only the last N messages")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved conversation transcripts",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		transcripts := state.NewTranscriptStore(cfg.DataDir)

		list, err := transcripts.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMESSAGES\tUPDATED")
		for _, c := range list {
			fmt.Fprintf(w, "%s\t%d\t%s\n",
				c.ConversationID,
				c.MessageCount,
				c.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		transcripts := state.NewTranscriptStore(cfg.DataDir)
		limit, _ := cmd.Flags().GetInt("limit")
		if strings.ContainsAny(args[0], `/\`) || strings.HasPrefix(args[0], ".") {
			return fmt.Errorf("invalid conversation ID: %s", args[0])
		}

		msgs, err := transcripts.Tail(cmd.Context(), types.ConversationID(args[0]), limit)
		if err != nil {
			return fmt.Errorf("read conversation: %w", err)
		}
		if len(msgs) == 0 {
			return fmt.Errorf("conversation not found: %s", args[0])
		}
		for _, m := range msgs {
			faint.Println(m.CreatedAt.Local().Format("15:04:05"))
			printMessage(os.Stdout, *m)
		}
		return nil
	},
}
