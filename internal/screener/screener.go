// Package screener binds the data providers, the detector setups and the
// staged strategy into per-symbol evaluators for the scan orchestrator.
package screener

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vkulagin/stockscan/internal/detect"
	"github.com/vkulagin/stockscan/internal/marketdata"
	"github.com/vkulagin/stockscan/internal/model"
	"github.com/vkulagin/stockscan/internal/series"
	"github.com/vkulagin/stockscan/internal/strategy"
)

// Screener evaluates single symbols against a setup or the staged strategy.
type Screener struct {
	history       marketdata.HistoryProvider
	disclosures   marketdata.DisclosureProvider
	setup         detect.Setup
	strategyPars  strategy.Params
	seatAllowlist []string
	lookbackDays  int
	minRows       int
	logger        zerolog.Logger
}

// Options configures a Screener.
type Options struct {
	History      marketdata.HistoryProvider
	Disclosures  marketdata.DisclosureProvider // required only with a seat allowlist
	Setup        detect.Setup
	Strategy     strategy.Params
	SeatList     []string
	LookbackDays int
	MinRows      int
}

// New builds a Screener from its collaborators.
func New(opts Options) *Screener {
	return &Screener{
		history:       opts.History,
		disclosures:   opts.Disclosures,
		setup:         opts.Setup,
		strategyPars:  opts.Strategy,
		seatAllowlist: opts.SeatList,
		lookbackDays:  opts.LookbackDays,
		minRows:       opts.MinRows,
		logger:        log.With().Str("component", "screener").Logger(),
	}
}

// EvaluateSetup runs the detector setup over one symbol's history. A nil row
// means the symbol did not match or had too little history; an error means
// the symbol could not be evaluated at all.
func (s *Screener) EvaluateSetup(ctx context.Context, sym model.SymbolInfo) (*model.MatchRow, error) {
	points, err := s.history.History(ctx, sym.Code, s.lookbackDays)
	if err != nil {
		return nil, err
	}
	if len(points) < s.minRows {
		s.logger.Debug().Str("symbol", sym.Code).Int("rows", len(points)).Msg("History too short, skipping")
		return nil, nil
	}

	classified, err := series.Classify(points)
	if err != nil {
		return nil, err
	}

	match, results := s.setup.Evaluate(classified)
	if !match {
		return nil, nil
	}

	last := classified[len(classified)-1]

	// The seat check needs a disclosure fetch, so it only runs once the
	// price-based detectors already agree.
	if len(s.seatAllowlist) > 0 && s.disclosures != nil {
		seats, err := s.disclosures.Disclosures(ctx, sym.Code, last.Date)
		if err != nil {
			return nil, err
		}
		seatRes := detect.BigPlayerSeats(seats, s.seatAllowlist)
		results = append(results, seatRes)
		if !seatRes.Match {
			return nil, nil
		}
	}

	row := &model.MatchRow{
		Symbol:       sym.Code,
		Name:         sym.Name,
		Close:        last.Close,
		PctChange:    last.PctChange,
		TurnoverRate: last.TurnoverRate,
		UpRun:        detect.TrailingRun(classified, model.DirectionUp),
		LongestUpRun: detect.LongestRun(classified, model.DirectionUp, 0),
		SignalDate:   last.Date,
		Detectors:    results,
	}

	return row, nil
}

// EvaluateStrategy runs the staged state machine plus the forward predictor
// over one symbol's history. Every evaluable symbol yields a row.
func (s *Screener) EvaluateStrategy(ctx context.Context, sym model.SymbolInfo) (*model.StrategyRow, error) {
	points, err := s.history.History(ctx, sym.Code, s.lookbackDays)
	if err != nil {
		return nil, err
	}

	classified, err := series.Classify(points)
	if err != nil {
		return nil, err
	}

	records, state, err := strategy.Run(s.strategyPars, classified)
	if err != nil {
		return nil, err
	}

	last := classified[len(classified)-1]
	row := &model.StrategyRow{
		Symbol:   sym.Code,
		Name:     sym.Name,
		Close:    last.Close,
		Stage:    state.Stage,
		Position: state.Position,
		Forecast: strategy.Predict(s.strategyPars, state, last),
	}

	for _, rec := range records {
		switch rec.Signal {
		case model.SignalBuy:
			row.BuyCount++
		case model.SignalSell:
			row.SellCount++
		default:
			continue
		}
		row.LastSignal = rec.Signal
		row.LastSignalDate = rec.Date
	}

	return row, nil
}

// RankMatches sorts matched rows for display: longest trailing up run first,
// then the day's percentage change.
func RankMatches(rows []model.MatchRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].UpRun != rows[j].UpRun {
			return rows[i].UpRun > rows[j].UpRun
		}
		return rows[i].PctChange > rows[j].PctChange
	})
}

// RankStrategies sorts strategy rows for display: deepest stage first, then
// symbols still holding before flat ones.
func RankStrategies(rows []model.StrategyRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Stage != rows[j].Stage {
			return rows[i].Stage > rows[j].Stage
		}
		return rows[i].Position == model.PositionHolding && rows[j].Position != model.PositionHolding
	})
}
