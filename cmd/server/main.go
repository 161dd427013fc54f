package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/bootstrap"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/config"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/httpapi"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/logger"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init("billing-api", cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	location, _ := cfg.Location()

	server, closers, err := newServer(cfg, location)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("startup failed")
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("driver", cfg.StoreDriver).Msg("billing backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// newServer opens the store and sequence and wires the HTTP server. The
// returned closers release backends after shutdown.
func newServer(cfg config.Config, location *time.Location) (*http.Server, []func() error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := bootstrap.OpenRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{repo.Close}
	log.Info().Str("repository", repo.Driver()).Msg("store ready")

	seq, closeSeq := bootstrap.OpenSequence(ctx, cfg)
	closers = append(closers, closeSeq)
	log.Info().Str("sequence", seq.Name()).Msg("bill number sequence ready")

	svc := service.New(repo, seq, cfg.StockPolicy, location)
	api := httpapi.New(svc, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
		RequestTimeout: cfg.RequestTimeout(),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server, closers, nil
}
