package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/user/mayberry/internal/emergency"
	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/session"
	"github.com/user/mayberry/internal/types"
	"github.com/user/mayberry/pkg/medapi"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
)

func riskColor(level medapi.RiskLevel) *color.Color {
	switch level {
	case medapi.RiskCritical:
		return color.New(color.FgRed, color.Bold)
	case medapi.RiskHigh:
		return red
	case medapi.RiskMedium:
		return yellow
	default:
		return green
	}
}

// printMessage renders one history entry.
func printMessage(w io.Writer, m types.Message) {
	switch {
	case m.Role == types.RoleUser:
		cyan.Fprint(w, "you> ")
		fmt.Fprintln(w, m.Content)
		return
	case m.IsError:
		red.Fprint(w, "mayberry> ")
		fmt.Fprintln(w, m.Content)
		return
	}

	bold.Fprint(w, "mayberry> ")
	fmt.Fprintln(w, m.Content)

	var tags []string
	if m.RiskLevel != "" {
		tags = append(tags, riskColor(m.RiskLevel).Sprintf("risk=%s", m.RiskLevel))
	}
	if m.ConfidenceScore != nil {
		tags = append(tags, fmt.Sprintf("confidence=%d%%", int(*m.ConfidenceScore*100+0.5)))
	}
	if len(tags) > 0 {
		fmt.Fprintf(w, "  [%s]\n", strings.Join(tags, " "))
	}
	for _, r := range m.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	if len(m.Sources) > 0 {
		faint.Fprintf(w, "  sources: %s\n", strings.Join(m.Sources, "; "))
	}
}

// printEmergency renders an escalation prominently.
func printEmergency(w io.Writer, a emergency.Action) {
	banner := color.New(color.FgWhite, color.BgRed, color.Bold)
	fmt.Fprintln(w)
	banner.Fprint(w, " EMERGENCY ")
	if a.Message != "" {
		red.Fprintf(w, " %s", a.Message)
	}
	fmt.Fprintln(w)
	if len(a.ImmediateActions) > 0 {
		bold.Fprintln(w, "Immediate actions:")
		for _, s := range a.ImmediateActions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(a.EmergencyContacts) > 0 {
		bold.Fprintln(w, "Emergency contacts:")
		for _, s := range a.EmergencyContacts {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	fmt.Fprintln(w)
}

func printSession(w io.Writer, s session.Session) {
	if s.Status != session.Authenticated || s.User == nil {
		yellow.Fprintln(w, "Not logged in.")
		return
	}
	green.Fprint(w, "Logged in as ")
	fmt.Fprintf(w, "%s", s.User.Email)
	if s.User.FullName != "" {
		fmt.Fprintf(w, " (%s)", s.User.FullName)
	}
	fmt.Fprintln(w)
}

// printJSON indents a raw service result.
func printJSON(w io.Writer, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// printError reports a command failure with a hint when retrying may help.
func printError(err error) {
	red.Fprintf(os.Stderr, "Error: %v\n", err)
	switch {
	case errors.Is(err, gateway.ErrAuthorizationExpired):
		yellow.Fprintln(os.Stderr, "Your session has ended. Run 'mayberry login' to sign in again.")
	case gateway.Retryable(err):
		yellow.Fprintln(os.Stderr, "The service could not be reached. Please try again.")
	}
}

// errorMessage returns what the user should see for a failed service call.
func errorMessage(err error, fallback string) string {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gateway.Detail(err, fallback)
	}
	return err.Error()
}
