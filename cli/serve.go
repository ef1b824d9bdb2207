package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/billbatista/budgetwise/api"
	"github.com/billbatista/budgetwise/logging"
	"github.com/billbatista/budgetwise/recurring"
)

const (
	shutdownTimeout        = 15 * time.Second
	sessionCleanupSchedule = "@hourly"
)

type ServeOptions struct {
	*RootOptions
	Listen       string
	SecureCookie bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the recurring transaction scheduler",
		Long: `Start the HTTP API together with the scheduler that sweeps due recurring
transactions on the configured cron schedule and once shortly after start.

Example:
  budgetwise serve --config ./budgetwise.yaml
  budgetwise serve --listen :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "override the configured listen address")
	cmd.Flags().BoolVar(&opts.SecureCookie, "secure-cookie", false, "mark session cookies Secure")

	return cmd
}

type sessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func runServe(parent context.Context, opts *ServeOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	scheduler, err := recurring.NewScheduler(a.processor, a.clock, cfg.SweepSchedule, cfg.StartupDelay, cfg.Location())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sweep schedule", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	housekeeping := cron.New(cron.WithLogger(logging.Cron(slog.Default())))
	if purger, ok := a.deps.Sessions.(sessionPurger); ok {
		housekeeping.AddFunc(sessionCleanupSchedule, func() {
			n, err := purger.DeleteExpired(ctx)
			if err != nil {
				slog.Error("failed to purge expired sessions", "error", err)
				return
			}
			slog.Debug("purged expired sessions", "deleted", n)
		})
	}
	housekeeping.Start()
	defer housekeeping.Stop()

	deps := a.deps
	deps.SecureCookies = opts.SecureCookie
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "http server", err)
		}
	case <-ctx.Done():
		slog.Info("received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "http shutdown", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
