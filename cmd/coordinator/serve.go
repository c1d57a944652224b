package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/application/background"
	"github.com/bryanwahyu/caniclickit/internal/application/messaging"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/infra/browser"
	"github.com/bryanwahyu/caniclickit/internal/infra/httpserver"
	"github.com/bryanwahyu/caniclickit/internal/middleware"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator daemon",
		Long: `Run the coordinator as a local HTTP daemon. Content scripts post
messages to /v1/messages or hold a /v1/port websocket; the browser bridge
reports tab events to /v1/tabs/{tab}/events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides server.port)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	metrics := middleware.NewMetrics()
	board := browser.NewBoard()
	board.Subscribe(func(tab platform.TabID, st platform.BadgeState) {
		logger.Debug("badge changed", zap.Int("tab", int(tab)), zap.String("text", st.Text))
	})
	tabs := browser.NewRegistry()
	tracker := a.tracker()

	svc, err := a.scanService(ctx, tracker, board, metrics)
	if err != nil {
		return err
	}
	router := messaging.NewRouter(svc, tracker, logger.Named("messages"))
	router.Observer = metrics

	alarms := browser.NewScheduler(ctx, nil, logger.Named("alarms"))
	defer alarms.Close()
	coord := &background.Coordinator{
		Scans:  svc,
		Quota:  tracker,
		Badge:  board,
		Tabs:   tabs,
		Alarms: alarms,
		Sync:   a.sync,
		Local:  a.local,
		Logger: logger.Named("background"),
		Defaults: background.Defaults{
			APIBaseURL: cfg.Scan.APIBaseURL,
			APIKey:     cfg.Scan.APIKey,
			DailyLimit: cfg.Quota.DailyLimit,
		},
	}
	if err := coord.Install(ctx); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	coord.Start(ctx)

	deps := httpserver.Deps{
		Messages:       router,
		Tabs:           tabs,
		Lifecycle:      coord,
		Badges:         board,
		Logger:         logger.Named("http"),
		Metrics:        metrics,
		Checkers:       map[string]middleware.HealthChecker{"sync": a.sync, "local": a.local},
		Ready:          a.local,
		AuthToken:      cfg.Auth.Token,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpserver.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		// scans can take the full client timeout plus retries
		WriteTimeout: cfg.Scan.Timeout*time.Duration(cfg.Scan.Retries+1) + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	svc.Wait()
	return nil
}
