package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"posterminal/internal/config"
	"posterminal/internal/infra"
	"posterminal/internal/router"
	"posterminal/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	db, err := infra.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open database")
	}

	// Redis is optional: without it price checks are uncached and failed
	// prints are only reported.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, cache and print spool disabled")
			rdb = nil
		}
	}

	host, err := infra.Hostname(cfg.TerminalHost)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve host name")
	}

	printer := infra.NewGuardedPrinter(
		infra.NewPDFPrinter(cfg.ReceiptStoragePath),
		infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
			Name:             "printer",
			FailureThreshold: cfg.PrinterFailureThreshold,
			OpenTimeout:      time.Duration(cfg.PrinterResetSeconds) * time.Second,
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if rdb != nil {
		// Documents dead-lettered by a previous run get another round.
		if n, err := worker.RequeueDeadPrints(ctx, rdb); err != nil {
			log.Warn().Err(err).Msg("could not requeue dead prints")
		} else if n > 0 {
			log.Info().Int("documents", n).Msg("dead prints requeued")
		}
		worker.StartWorkerPool(ctx, rdb, printer, cfg.PrintWorkers)
	}

	r := router.New(cfg, db, rdb, printer, host)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("host", host).Msgf("terminal engine listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}

// setupLogger: development gets the console writer, production plain JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
