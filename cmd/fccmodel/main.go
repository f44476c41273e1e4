// Command fccmodel serves a single regressor over HTTP so that the predictor
// can reach it with an "http" model kind.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fcc-optimizer/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		name    = flag.String("name", "rf", "Model name reported in logs and metrics")
		path    = flag.String("model", "", "Model artifact (.json linear model or .pkl)")
		kind    = flag.String("kind", "", "Model kind: linear or exec (default: from extension)")
		addr    = flag.String("addr", ":9090", "Listen address")
		timeout = flag.Duration("timeout", 30*time.Second, "Per-batch inference timeout")
		debug   = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *path == "" {
		log.Fatal().Msg("-model is required")
	}
	if ml.Kind(*kind) == ml.KindHTTP {
		log.Fatal().Msg("fccmodel cannot proxy another http model")
	}

	model, err := ml.Load(ml.ModelSpec{
		Name:    *name,
		Kind:    ml.Kind(*kind),
		Path:    *path,
		Timeout: *timeout,
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model")
	}

	mux := http.NewServeMux()
	mux.Handle("/predict", ml.NewModelServer(model))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      *timeout + 10*time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Str("model", *name).Msg("model server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("model server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown model server")
	}
}
