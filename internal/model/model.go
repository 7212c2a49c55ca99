package model

import (
	"errors"
	"time"
)

// Direction classifies a daily close against the previous close.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

// Signal is a trade signal emitted by the staged strategy.
type Signal string

const (
	SignalNone Signal = ""
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// Position is the strategy's holding state after a processed day.
type Position string

const (
	PositionFlat    Position = "FLAT"
	PositionHolding Position = "HOLDING"
)

// PricePoint is one daily bar as delivered by the market data provider.
// The sequence for a symbol is ordered by strictly increasing date and is
// never mutated after fetch.
type PricePoint struct {
	Date         time.Time `json:"date"`
	Open         float64   `json:"open,omitempty"`
	High         float64   `json:"high,omitempty"`
	Low          float64   `json:"low,omitempty"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume,omitempty"`
	TurnoverRate float64   `json:"turnover_rate,omitempty"`
	PctChange    float64   `json:"pct_change,omitempty"`
}

// ClassifiedPoint is a PricePoint annotated with its direction relative to
// the previous close. The first point of a series has no previous close and
// carries DirectionFlat; it never satisfies an Up or Down check.
type ClassifiedPoint struct {
	PricePoint
	Direction Direction
}

// SignalRecord is one day of staged-strategy output. Stage and Position are
// the values after that day's transition, matching the order the strategy
// applies them.
type SignalRecord struct {
	Date      time.Time
	Close     float64
	Direction Direction
	Signal    Signal
	Position  Position
	Stage     int
}

// StrategyState is the run-state threaded through the staged state machine.
// One value per symbol, mutated once per point in point order, never shared.
type StrategyState struct {
	Stage      int
	Position   Position
	RunColor   Direction
	DayCount   int
	UpRun      int
	DownRun    int
	EntryPrice float64
}

// RiskTier grades how close the active stage is to firing its next signal.
type RiskTier string

const (
	RiskLow      RiskTier = "LOW"
	RiskElevated RiskTier = "ELEVATED"
	RiskHigh     RiskTier = "HIGH"
	RiskNA       RiskTier = "N/A"
)

// Forecast is the forward predictor's read-only view of a terminal
// StrategyState.
type Forecast struct {
	Action     string
	Reason     string
	NextSignal Signal
	Countdown  int
	Risk       RiskTier
}

// DetectorResult is one detector's verdict for a symbol, with the scalar it
// was derived from for display.
type DetectorResult struct {
	Name  string
	Match bool
	Value float64
}

// SymbolInfo identifies one listed symbol in the scan universe.
type SymbolInfo struct {
	Code string
	Name string
}

// MatchRow is one matched symbol in a detector-set scan result.
type MatchRow struct {
	Symbol       string
	Name         string
	Close        float64
	PctChange    float64
	TurnoverRate float64
	UpRun        int
	LongestUpRun int
	SignalDate   time.Time
	Detectors    []DetectorResult
}

// StrategyRow is one symbol's outcome in a staged-strategy scan: the
// terminal machine state plus the forward forecast.
type StrategyRow struct {
	Symbol         string
	Name           string
	Close          float64
	Stage          int
	Position       Position
	BuyCount       int
	SellCount      int
	LastSignal     Signal
	LastSignalDate time.Time
	Forecast       Forecast
}

var (
	// ErrInvalidInput marks a malformed or insufficient input series. It
	// fails a single symbol's evaluation, never a batch.
	ErrInvalidInput = errors.New("invalid input series")

	// ErrDataUnavailable marks a fetch failure or unknown symbol. Same
	// scope as ErrInvalidInput.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrConfiguration marks an invalid scan configuration. It fails the
	// whole scan before any work is submitted.
	ErrConfiguration = errors.New("invalid configuration")
)
