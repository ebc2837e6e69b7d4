package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/config"
	hashdrophttp "github.com/sagarc03/hashdrop/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the hashdrop HTTP server.

In direct mode objects are streamed by the server. In cdn mode GET /objects
answers with a redirect to <external-base-url>/<digest> and the CDN pulls
the bytes from GET /raw/<digest>.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5708, "HTTP server port")
	serveCmd.Flags().String("mode", "direct", "serve mode (direct, cdn)")
	serveCmd.Flags().String("external-base-url", "", "CDN base URL used for redirects in cdn mode")
	serveCmd.Flags().Int64("max-upload-size", hashdrop.DefaultMaxUploadSize, "maximum upload size in bytes")
	serveCmd.Flags().Int("cache-size", 1024, "number of known objects kept in memory, 0 disables")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer closeStore()

	env := &hashdrop.Environment{
		Store:           store,
		Mode:            cfg.ServeMode(),
		ExternalBaseURL: cfg.Server.ExternalBaseURL,
	}
	if err := env.Validate(); err != nil {
		return err
	}
	if env.Mode == hashdrop.ModeCDN && env.ExternalBaseURL == "" {
		slog.Warn("cdn mode without external base url, content requests will fail")
	}

	gateway := hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: cfg.MaxUploadSize()})

	handlerConfig := hashdrophttp.HandlerConfig{
		Provider: hashdrophttp.StaticProvider{Env: env},
		CORS:     cfg.CORS,
	}
	if cfg.Metrics.Enabled {
		handlerConfig.MetricsPath = cfg.Metrics.Path
	}

	handler := hashdrophttp.NewHandler(&handlerConfig, gateway)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"mode", env.Mode,
			"store", cfg.Store.Type,
			"max_upload_size", gateway.MaxUploadSize(),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
