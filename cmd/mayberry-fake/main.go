// Command mayberry-fake serves a local stand-in for the MAYBERRY service so
// the CLI can be exercised without the real backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/mayberry/internal/fakeapi"
)

var (
	listen  string
	latency time.Duration
	ttl     time.Duration
	secret  string
	users   []string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:          "mayberry-fake",
	Short:        "Serve a local fake of the MAYBERRY service",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&listen, "listen", "127.0.0.1:8000", "address to listen on")
	f.DurationVar(&latency, "latency", 0, "delay added to every response")
	f.DurationVar(&ttl, "token-ttl", 30*time.Minute, "lifetime of issued tokens")
	f.StringVar(&secret, "secret", "", "token signing key (random per run when empty)")
	f.StringSliceVar(&users, "user", []string{"demo@mayberry.local:demo123:Demo Patient"}, "seed account as email:password[:full name]")
	f.BoolVar(&debug, "debug", false, "log every request")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := []fakeapi.Option{
		fakeapi.WithLogger(logger),
		fakeapi.WithLatency(latency),
		fakeapi.WithTokenTTL(ttl),
	}
	if secret != "" {
		opts = append(opts, fakeapi.WithSecret([]byte(secret)))
	} else {
		opts = append(opts, fakeapi.WithSecret([]byte(fmt.Sprintf("run-%d", time.Now().UnixNano()))))
	}
	fake := fakeapi.New(opts...)

	for _, u := range users {
		parts := strings.SplitN(u, ":", 3)
		if len(parts) < 2 {
			return fmt.Errorf("invalid --user %q: want email:password[:full name]", u)
		}
		name := ""
		if len(parts) == 3 {
			name = parts[2]
		}
		fake.AddUser(parts[0], parts[1], name)
		slog.Info("seeded account", "email", parts[0])
	}

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           fake,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("fake service started", "listen", listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
