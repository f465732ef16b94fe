package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/scheduler"
	"github.com/user/mayberry/internal/types"
	"github.com/user/mayberry/pkg/medapi"
)

const (
	receiptExport   = "data-export"
	receiptDeletion = "data-deletion"
)

func init() {
	rootCmd.AddCommand(privacyCmd)
	privacyCmd.AddCommand(
		privacyStatusCmd,
		privacyMetricsCmd,
		privacyComplianceCmd,
		privacyDashboardCmd,
		privacyExportCmd,
		privacyDeleteCmd,
		privacyReceiptsCmd,
		privacyWatchCmd,
	)
	privacyDeleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	privacyReceiptsCmd.Flags().String("show", "", "print the receipt with this ID")
	privacyWatchCmd.Flags().String("schedule", "", "override privacy.watch_schedule")
}

var privacyCmd = &cobra.Command{
	Use:   "privacy",
	Short: "Privacy status, compliance and your data",
}

var privacyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the privacy status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := authedApp(cmd.Context())
		if err != nil {
			return err
		}
		status, err := a.client.PrivacyStatus(cmd.Context())
		if err != nil {
			return err
		}
		printPrivacy(os.Stdout, status)
		return nil
	},
}

var privacyMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show privacy metrics",
	Args:  cobra.NoArgs,
	RunE: rawPrivacy(func(ctx context.Context, a *app) (json.RawMessage, error) {
		return a.client.PrivacyMetrics(ctx)
	}),
}

var privacyComplianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Show HIPAA and GDPR compliance",
	Args:  cobra.NoArgs,
	RunE: rawPrivacy(func(ctx context.Context, a *app) (json.RawMessage, error) {
		return a.client.PrivacyCompliance(ctx)
	}),
}

var privacyDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show status, metrics and compliance together",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := authedApp(cmd.Context())
		if err != nil {
			return err
		}

		var (
			status     *medapi.PrivacyStatus
			metrics    json.RawMessage
			compliance json.RawMessage
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() (err error) {
			status, err = a.client.PrivacyStatus(ctx)
			return err
		})
		g.Go(func() (err error) {
			metrics, err = a.client.PrivacyMetrics(ctx)
			return err
		})
		g.Go(func() (err error) {
			compliance, err = a.client.PrivacyCompliance(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		bold.Println("Status")
		printPrivacy(os.Stdout, status)
		fmt.Println()
		bold.Println("Metrics")
		if err := printJSON(os.Stdout, metrics); err != nil {
			return err
		}
		fmt.Println()
		bold.Println("Compliance")
		return printJSON(os.Stdout, compliance)
	},
}

var privacyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Request an export of your data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := authedApp(cmd.Context())
		if err != nil {
			return err
		}
		res, err := a.client.ExportData(cmd.Context())
		if err != nil {
			return err
		}
		return a.saveReceipt(cmd.Context(), receiptExport, res)
	},
}

var privacyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your data from the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := authedApp(cmd.Context())
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes && !confirm(os.Stdin, os.Stdout, "Delete all of your data? This cannot be undone.") {
			fmt.Println("Aborted.")
			return nil
		}
		res, err := a.client.DeleteData(cmd.Context())
		if err != nil {
			return err
		}
		return a.saveReceipt(cmd.Context(), receiptDeletion, res)
	},
}

var privacyReceiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "List saved export and deletion receipts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if id, _ := cmd.Flags().GetString("show"); id != "" {
			data, err := a.exports.Get(cmd.Context(), types.ExportID(id))
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, data)
		}

		list, err := a.exports.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list receipts: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No receipts found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tCREATED")
		for _, m := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Kind, m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var privacyWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the privacy status and report changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := authedApp(cmd.Context())
		if err != nil {
			return err
		}
		schedule := a.cfg.Privacy.WatchSchedule
		if s, _ := cmd.Flags().GetString("schedule"); s != "" {
			schedule = s
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w := &privacyWatcher{client: a.client, out: os.Stdout, stop: stop}
		w.poll(ctx)

		sched := scheduler.New()
		if err := sched.Add("privacy-watch", schedule, w.poll); err != nil {
			return err
		}
		sched.Start()
		faint.Printf("Watching privacy status (%s). Press Ctrl+C to stop.\n", schedule)

		<-ctx.Done()
		sched.Stop()
		return w.err
	},
}

// privacyWatcher keeps the merged privacy status across polls and prints
// it whenever a poll changes it.
type privacyWatcher struct {
	client *gateway.Client
	out    io.Writer
	stop   context.CancelFunc

	status *medapi.PrivacyStatus
	last   string
	err    error
}

func (w *privacyWatcher) poll(ctx context.Context) {
	update, err := w.client.PrivacyStatus(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrAuthorizationExpired) {
			w.err = err
			w.stop()
			return
		}
		slog.Warn("privacy poll failed", "error", err)
		return
	}

	w.status = w.status.Merge(update)
	key := fingerprint(w.status)
	if key == w.last {
		return
	}
	w.last = key
	printPrivacy(w.out, w.status)
	fmt.Fprintln(w.out)
}

// fingerprint identifies a status ignoring its timestamp.
func fingerprint(s *medapi.PrivacyStatus) string {
	cp := s.Merge(nil)
	cp.LastUpdated = nil
	b, _ := json.Marshal(cp)
	return string(b)
}

func authedApp(ctx context.Context) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if err := a.authenticated(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func rawPrivacy(fetch func(context.Context, *app) (json.RawMessage, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := authedApp(cmd.Context())
		if err != nil {
			return err
		}
		res, err := fetch(cmd.Context(), a)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	}
}

func (a *app) saveReceipt(ctx context.Context, kind string, res json.RawMessage) error {
	if err := printJSON(os.Stdout, res); err != nil {
		return err
	}
	id, err := a.exports.Put(ctx, kind, res)
	if err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	green.Printf("Receipt saved as %s\n", id)
	return nil
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func printPrivacy(w io.Writer, s *medapi.PrivacyStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	flag := func(label string, v *bool) {
		switch {
		case v == nil:
			fmt.Fprintf(tw, "%s\t%s\n", label, faint.Sprint("unknown"))
		case *v:
			fmt.Fprintf(tw, "%s\t%s\n", label, green.Sprint("yes"))
		default:
			fmt.Fprintf(tw, "%s\t%s\n", label, red.Sprint("no"))
		}
	}
	flag("HIPAA compliant", s.HIPAACompliant)
	flag("GDPR compliant", s.GDPRCompliant)
	flag("Local processing", s.LocalProcessingEnabled)
	flag("Data encryption", s.DataEncryptionEnabled)
	flag("Zero knowledge", s.ZeroKnowledgeArchitecture)
	flag("Anonymous mode", s.AnonymousModeEnabled)
	if s.LocalProcessingPercentage != nil {
		fmt.Fprintf(tw, "Processed locally\t%.0f%%\n", *s.LocalProcessingPercentage)
	}
	if s.DataEncryptedCount != nil {
		fmt.Fprintf(tw, "Encrypted records\t%d\n", *s.DataEncryptedCount)
	}
	if s.AnonymousSessions != nil {
		fmt.Fprintf(tw, "Anonymous sessions\t%d\n", *s.AnonymousSessions)
	}
	if s.SecurityScore != nil {
		fmt.Fprintf(tw, "Security score\t%.1f\n", *s.SecurityScore)
	}
	if s.LastUpdated != nil {
		fmt.Fprintf(tw, "Last updated\t%s\n", *s.LastUpdated)
	}
	tw.Flush()
}
