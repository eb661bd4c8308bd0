package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"captiond/internal/captioner"
	"captiond/internal/config"
	"captiond/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func runServeCmd(cmd *cobra.Command, fv *flagValues) error {
	cfg, err := resolveConfig(cmd, fv, nil)
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, log)
}

// serve loads the model, then runs the HTTP server until ctx is canceled.
// The listener is not opened before the model is ready.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	captioner.SetLogger(log)
	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetMaxUploadBytes(cfg.MaxUploadBytes)
	httpapi.SetInferTimeoutSeconds(cfg.InferTimeoutSeconds)
	if cfg.RequestLog != "" {
		httpapi.SetDefaultLogLevel(cfg.RequestLog)
	}
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)
	httpapi.SetBaseContext(ctx)

	ccfg, err := captionerConfig(cfg)
	if err != nil {
		return err
	}
	capt, err := captioner.Open(ctx, ccfg)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer capt.Close()

	if cfg.ServiceToken == config.DefaultServiceToken {
		log.Warn().Msg("SERVICE_TOKEN not set, using the development token")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(capt, cfg.ServiceToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("model", capt.ModelID()).Msg("captiond listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	err = g.Wait()
	log.Info().Msg("captiond stopped")
	return err
}
