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
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vkulagin/stockscan/config"
	"github.com/vkulagin/stockscan/internal/database"
	"github.com/vkulagin/stockscan/internal/detect"
	"github.com/vkulagin/stockscan/internal/marketdata"
	"github.com/vkulagin/stockscan/internal/model"
	"github.com/vkulagin/stockscan/internal/notify"
	"github.com/vkulagin/stockscan/internal/scan"
	"github.com/vkulagin/stockscan/internal/screener"
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

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Ctrl-C stops submission of new symbols; in-flight work drains.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2) Market data client, optionally behind the Redis history cache
	client := marketdata.NewClient(marketdata.ClientOptions{
		BaseURL:        cfg.DataBaseURL,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
	})

	var history marketdata.HistoryProvider = client
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		history = marketdata.NewHistoryCache(rdb, time.Duration(cfg.CacheTTLMinutes)*time.Minute, client)
		log.Info().Str("addr", cfg.RedisAddr).Msg("History cache enabled")
	}

	// 3) Symbol universe: explicit list, or today's dragon-tiger candidates
	universe := make([]model.SymbolInfo, 0, len(cfg.Symbols))
	for _, code := range cfg.Symbols {
		universe = append(universe, model.SymbolInfo{Code: code})
	}
	if len(universe) == 0 {
		universe, err = client.ListSymbols(ctx, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list scan universe")
		}
	}
	log.Info().Int("symbols", len(universe)).Str("mode", cfg.ScanMode).Msg("Starting scan")

	scr := screener.New(screener.Options{
		History:      history,
		Disclosures:  client,
		Setup:        detect.BigRiseSetup(cfg.DetectorParams()),
		Strategy:     strategy.Params{StageRuns: cfg.StageRuns},
		SeatList:     cfg.SeatAllowlist,
		LookbackDays: cfg.LookbackDays,
		MinRows:      cfg.MinHistoryRows,
	})

	opts := scan.Options{
		Concurrency:      cfg.Concurrency,
		PerSymbolTimeout: time.Duration(cfg.PerSymbolTimeout) * time.Second,
		OnProgress: func(p scan.Progress) {
			fmt.Fprintf(os.Stderr, "\rScanning %d/%d (%.1fs)", p.Completed, p.Total, p.Elapsed.Seconds())
			if p.Completed == p.Total {
				fmt.Fprintln(os.Stderr)
			}
		},
	}

	// 4) Run the scan in the selected mode
	started := time.Now()
	switch cfg.ScanMode {
	case "strategy":
		result, err := scan.Run(ctx, opts, universe, scr.EvaluateStrategy)
		if err != nil {
			log.Fatal().Err(err).Msg("Scan could not run")
		}
		screener.RankStrategies(result.Rows)
		printStrategyTable(result.Rows)
		printSummary(result.Matched, result.Submitted, result.Failed, result.Elapsed, result.Canceled)

	default:
		result, err := scan.Run(ctx, opts, universe, scr.EvaluateSetup)
		if err != nil {
			log.Fatal().Err(err).Msg("Scan could not run")
		}
		screener.RankMatches(result.Rows)
		printMatchTable(result.Rows)
		printSummary(result.Matched, result.Submitted, result.Failed, result.Elapsed, result.Canceled)

		// 5) Optional sinks
		if cfg.DBHost != "" {
			archiveRun(cfg, started, result)
		}
		if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
			notifyRun(cfg, result)
		}
	}
}

func printMatchTable(rows []model.MatchRow) {
	if len(rows) == 0 {
		fmt.Println("No symbols matched the setup today.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tCLOSE\tCHG%\tTURNOVER%\tUP-RUN\tLONGEST\tDATE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%+.2f\t%.2f\t%d\t%d\t%s\n",
			r.Symbol, r.Name, r.Close, r.PctChange, r.TurnoverRate,
			r.UpRun, r.LongestUpRun, r.SignalDate.Format("2006-01-02"))
	}
	w.Flush()
}

func printStrategyTable(rows []model.StrategyRow) {
	if len(rows) == 0 {
		fmt.Println("No symbols could be evaluated.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tCLOSE\tSTAGE\tPOSITION\tBUYS\tSELLS\tNEXT\tIN\tRISK")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\t%d\t%d\t%s\t%d\t%s\n",
			r.Symbol, r.Name, r.Close, r.Stage, r.Position, r.BuyCount, r.SellCount,
			r.Forecast.NextSignal, r.Forecast.Countdown, r.Forecast.Risk)
	}
	w.Flush()
}

func printSummary(matched, submitted, failed int, elapsed time.Duration, canceled bool) {
	status := "completed"
	if canceled {
		status = "canceled"
	}
	fmt.Printf("\nScan %s: %d matched of %d submitted, %d failed, %.1fs elapsed\n",
		status, matched, submitted, failed, elapsed.Seconds())
}

func archiveRun(cfg *config.Config, started time.Time, result *scan.Result[model.MatchRow]) {
	db, err := database.New(database.ConnectionParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to scan archive")
		return
	}
	defer db.Close()

	runID, err := db.SaveRun(database.ScanRun{
		Setup:     "big_rise_precursor",
		StartedAt: started,
		Elapsed:   result.Elapsed,
		Submitted: result.Submitted,
		Matched:   result.Matched,
		Failed:    result.Failed,
	}, result.Rows)
	if err != nil {
		log.Error().Err(err).Msg("Failed to archive scan run")
		return
	}
	log.Info().Int64("run_id", runID).Msg("Scan run archived")

	runs, err := db.LatestRuns(5)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read archived run history")
		return
	}
	fmt.Println("\nRecent archived runs:")
	for _, run := range runs {
		fmt.Printf("  %s  %s: %d matched of %d, %d failed, %.1fs\n",
			run.StartedAt.Format("2006-01-02 15:04"), run.Setup,
			run.Matched, run.Submitted, run.Failed, run.Elapsed.Seconds())
	}
}

func notifyRun(cfg *config.Config, result *scan.Result[model.MatchRow]) {
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize telegram notifier")
		return
	}
	if err := tg.SendScanSummary("big_rise_precursor", result.Rows, result.Submitted, result.Failed, result.Elapsed); err != nil {
		log.Error().Err(err).Msg("Failed to send telegram summary")
	}
}
