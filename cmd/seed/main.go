// cmd/seed creates the demo terminal for this host.
// Usage: go run ./cmd/seed [-non-fiscal]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"posterminal/internal/config"
	"posterminal/internal/infra"
	"posterminal/internal/model"
	"posterminal/internal/seed"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	nonFiscal := flag.Bool("non-fiscal", true, "allow non-fiscal sales on the demo terminal")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	host, err := infra.Hostname(cfg.TerminalHost)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve host name")
	}

	var n int64
	if err := db.Model(&model.Terminal{}).Where("host = ?", host).Count(&n).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to query terminals")
	}
	if n > 0 {
		log.Info().Str("host", host).Msg("host already has a terminal, nothing to do")
		return
	}

	f, err := seed.Demo(context.Background(), db, seed.Options{Host: host, AllowNonFiscal: *nonFiscal})
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Str("host", host).Str("terminal", f.Terminal.Name).Int("products", len(f.Products)).Msg("demo terminal created")
	fmt.Printf("operator: %s / %s\n", seed.OperatorUsername, seed.OperatorPassword)
	fmt.Printf("supervisor: %s / %s\n", seed.SupervisorUsername, seed.SupervisorPassword)
}
