package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/api"
	"github.com/tymekw/kotori-notify/internal/app"
	"github.com/tymekw/kotori-notify/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <recipient>",
		Short: "Runs batches on a schedule with an HTTP status endpoint",
		Long: `Starts a long-lived process that executes batch runs on the
configured cron schedule and serves health, metrics and status-history
endpoints over HTTP. Overlapping runs are skipped, never run in parallel.`,
		Args: requireRecipient,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := app.New(cmd.Context(), cfg, args[0])
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.Close()

			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app.App) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.Logger.Named("serve")
	cronLog := zapCronLogger{logger: logger.Named("cron").Sugar()}

	// SkipIfStillRunning keeps the single-run-at-a-time guarantee the
	// store relies on: the schedule may fire while a slow run is in
	// flight, and that trigger is dropped rather than overlapped.
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	_, err := scheduler.AddFunc(a.Cfg.Schedule.Cron, func() {
		if err := a.Runner.RunOnce(ctx); err != nil {
			logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", a.Cfg.Schedule.Cron, err)
	}
	scheduler.Start()
	logger.Info("scheduler started", zap.String("cron", a.Cfg.Schedule.Cron))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Cfg.Server.Port),
		Handler:           api.NewServer(a.Store, a.Registry, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		<-scheduler.Stop().Done()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// zapCronLogger adapts zap to the cron logging interface.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Infow(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
