package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fcc-optimizer/internal/api"
	"fcc-optimizer/internal/app"
	"fcc-optimizer/internal/cfg"
	"fcc-optimizer/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default: $CONFIG_FILE)")
	flag.Parse()

	c, err := cfg.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Initialize components
	m := metrics.New()
	mw := metrics.NewWrapper(m)

	a, err := app.New(c, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	opts := api.Options{
		MaxUploadBytes:    c.MaxUploadBytes,
		MaxConcurrentRuns: c.MaxConcurrentRuns,
		ModelNames:        []string{a.Models.Primary.Name(), a.Models.Secondary.Name()},
		Metrics:           mw,
		MetricsHandler:    promhttp.Handler(),
	}
	if a.Store != nil {
		opts.History = a.Store
	}

	server := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           api.New(a.Runner, opts).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2*c.ModelTimeout + time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.ListenAddr).Msg("prediction server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err := <-errc:
		log.Error().Err(err).Msg("server failed")
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server")
	}
}
