package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vkulagin/stockscan/config"
	"github.com/vkulagin/stockscan/internal/marketdata"
	"github.com/vkulagin/stockscan/internal/model"
	"github.com/vkulagin/stockscan/internal/series"
	"github.com/vkulagin/stockscan/internal/strategy"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	// 1) Config and logger
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if len(cfg.Symbols) == 0 {
		log.Fatal().Msg("SYMBOLS must name the symbol to analyze")
	}
	symbol := cfg.Symbols[0]

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2) Fetch and classify the history
	client := marketdata.NewClient(marketdata.ClientOptions{
		BaseURL:        cfg.DataBaseURL,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
	})

	points, err := client.History(ctx, symbol, cfg.LookbackDays)
	if err != nil {
		log.Fatal().Err(err).Str("symbol", symbol).Msg("Failed to fetch history")
	}

	classified, err := series.Classify(points)
	if err != nil {
		log.Fatal().Err(err).Str("symbol", symbol).Msg("Invalid price series")
	}

	// 3) Run the staged strategy
	params := strategy.Params{StageRuns: cfg.StageRuns}
	records, state, err := strategy.Run(params, classified)
	if err != nil {
		log.Fatal().Err(err).Msg("Strategy run failed")
	}

	buyCount, sellCount := 0, 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCLOSE\tDIR\tSIGNAL\tPOSITION\tSTAGE")
	for _, rec := range records {
		if rec.Signal == model.SignalNone {
			continue
		}
		if rec.Signal == model.SignalBuy {
			buyCount++
		} else {
			sellCount++
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\t%d\n",
			rec.Date.Format("2006-01-02"), rec.Close, rec.Direction, rec.Signal, rec.Position, rec.Stage)
	}
	w.Flush()

	fmt.Printf("\n%s: %d buys, %d sells over %d sessions, final position %s (stage %d)\n",
		symbol, buyCount, sellCount, len(records), state.Position, state.Stage)

	// 4) Forward forecast from the terminal state
	forecast := strategy.Predict(params, state, classified[len(classified)-1])
	fmt.Printf("Forecast: %s (%s)\n", forecast.Action, forecast.Reason)
	if forecast.NextSignal != model.SignalNone {
		fmt.Printf("Next signal %s in %d matching sessions, risk %s\n",
			forecast.NextSignal, forecast.Countdown, forecast.Risk)
	}
}
