package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/codereader/internal/config"
	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/server"
	"github.com/MeKo-Tech/codereader/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for scanning",
	Long: `Start an HTTP server that scans uploaded images and drives live scans
over WebSocket.

The server provides the following endpoints:
  POST   /scan                 - Scan an uploaded image (multipart field "image")
  GET    /ws/scan              - Live scan session, frames sent as binary messages
  GET    /history              - List the scan history
  DELETE /history              - Clear the scan history
  GET    /history/{id}         - Show one history entry
  DELETE /history/{id}         - Remove one history entry
  GET    /history/{id}/image   - Annotated image of an entry
  GET    /health               - Health check endpoint
  GET    /metrics              - Prometheus metrics

Examples:
  codereader serve
  codereader serve --port 8080
  codereader serve --host 0.0.0.0 --port 3000 --no-history`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Server.Port < 1 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
		}
		noHistory, _ := cmd.Flags().GetBool("no-history")

		logger := slog.Default()
		sessionOpts, err := cfg.ToSessionOptions(logger)
		if err != nil {
			return err
		}

		var store *history.Store
		if !noHistory {
			if store, err = history.Open(cfg.ToHistoryOptions(logger)); err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			janitor, err := history.NewJanitor(store, cfg.History.PurgeSchedule, logger)
			if err != nil {
				return err
			}
			janitor.Start()
			defer janitor.Stop()
		}

		scanServer := server.NewServer(server.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			CORSOrigin:     cfg.Server.CORSOrigin,
			MaxUploadMB:    cfg.Server.MaxUploadMB,
			ScanTimeout:    cfg.Scan.Timeout(),
			Session:        sessionOpts,
			History:        store,
			ScansPerMinute: cfg.Server.ScansPerMinute,
			ScansPerHour:   cfg.Server.ScansPerHour,
			MetricsEnabled: cfg.Server.MetricsEnabled,
			Version:        version.Version,
			Logger:         logger,
		})
		defer func() { _ = scanServer.Close() }()

		mux := http.NewServeMux()
		scanServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			slog.Info("Starting scan server", "host", cfg.Server.Host, "port", cfg.Server.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		// Live scans hold hijacked connections that Shutdown does not wait for.
		if err := scanServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := config.DefaultConfig()
	serveCmd.Flags().StringP("host", "H", defaults.Server.Host, "server host")
	serveCmd.Flags().IntP("port", "p", defaults.Server.Port, "server port")
	serveCmd.Flags().String("cors-origin", defaults.Server.CORSOrigin, "CORS allowed origins")
	serveCmd.Flags().Int64("max-upload-size", defaults.Server.MaxUploadMB, "maximum upload size in MB")
	serveCmd.Flags().Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("metrics", defaults.Server.MetricsEnabled, "expose Prometheus metrics on /metrics")
	serveCmd.Flags().Int("scans-per-minute", 0, "maximum scans per minute per client (0 = unlimited)")
	serveCmd.Flags().Int("scans-per-hour", 0, "maximum scans per hour per client (0 = unlimited)")
	serveCmd.Flags().String("purge-schedule", defaults.History.PurgeSchedule, "cron schedule for purging orphaned history images")
	serveCmd.Flags().Bool("no-history", false, "do not record scans in the history")

	bindFlag("server.host", serveCmd.Flags().Lookup("host"))
	bindFlag("server.port", serveCmd.Flags().Lookup("port"))
	bindFlag("server.cors_origin", serveCmd.Flags().Lookup("cors-origin"))
	bindFlag("server.max_upload_mb", serveCmd.Flags().Lookup("max-upload-size"))
	bindFlag("server.shutdown_timeout", serveCmd.Flags().Lookup("shutdown-timeout"))
	bindFlag("server.metrics_enabled", serveCmd.Flags().Lookup("metrics"))
	bindFlag("server.scans_per_minute", serveCmd.Flags().Lookup("scans-per-minute"))
	bindFlag("server.scans_per_hour", serveCmd.Flags().Lookup("scans-per-hour"))
	bindFlag("history.purge_schedule", serveCmd.Flags().Lookup("purge-schedule"))
}
