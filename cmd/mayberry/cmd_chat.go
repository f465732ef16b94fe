package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/mayberry/internal/conversation"
	"github.com/user/mayberry/internal/emergency"
	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Bool("no-record", false, "do not save the transcript")
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant",
	Long: "Chat with the assistant. With a message argument, sends it and exits;\n" +
		"otherwise starts an interactive session. Type /reset to start over and /quit to leave.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := a.authenticated(ctx); err != nil {
			return err
		}

		noRecord, _ := cmd.Flags().GetBool("no-record")
		conv := a.newConversation(os.Stdout, !noRecord)
		defer a.escalator.Wait()
		defer conv.Close()

		if len(args) > 0 {
			return conv.Send(ctx, strings.Join(args, " "))
		}
		return a.repl(ctx, conv, os.Stdin, os.Stdout)
	},
}

func (a *app) newConversation(out io.Writer, record bool) *conversation.Controller {
	opts := []conversation.Option{
		conversation.WithLogger(slog.Default()),
		conversation.WithEscalation(func(ctx context.Context, action emergency.Action) {
			printEmergency(out, action)
			a.escalator.Escalate(ctx, action)
		}),
	}
	if record {
		opts = append(opts, conversation.WithRecorder(a.transcripts))
	}
	conv := conversation.New(a.client, opts...)
	conv.Subscribe(func(u conversation.Update) {
		if u.Message != nil && u.Message.Role == types.RoleAssistant {
			printMessage(out, *u.Message)
		}
	})
	return conv
}

func (a *app) repl(ctx context.Context, conv *conversation.Controller, in io.Reader, out io.Writer) error {
	for _, m := range conv.Messages() {
		printMessage(out, m)
	}
	faint.Fprintf(out, "session %s\n", conv.SessionID())

	scanner := bufio.NewScanner(in)
	for {
		cyan.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			conv.Reset()
			continue
		}

		err := conv.Send(ctx, line)
		switch {
		case err == nil:
		case errors.Is(err, gateway.ErrAuthorizationExpired):
			return err
		case errors.Is(err, conversation.ErrBusy), errors.Is(err, conversation.ErrEmptyInput):
			continue
		default:
			yellow.Fprintln(out, errorMessage(err, "Message failed. Please try again."))
		}
	}
}
