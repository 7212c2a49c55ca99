package strategy

import (
	"reflect"
	"testing"
	"time"

	"github.com/vkulagin/stockscan/internal/model"
	"github.com/vkulagin/stockscan/internal/series"
)

func classifiedFromCloses(t *testing.T, closes []float64) []model.ClassifiedPoint {
	t.Helper()
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	points := make([]model.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = model.PricePoint{Date: base.AddDate(0, 0, i), Close: c}
	}
	classified, err := series.Classify(points)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	return classified
}

func signalsOf(records []model.SignalRecord) map[int]model.Signal {
	signals := make(map[int]model.Signal)
	for i, rec := range records {
		if rec.Signal != model.SignalNone {
			signals[i] = rec.Signal
		}
	}
	return signals
}

func TestShortSeriesNeverLeavesStageZero(t *testing.T) {
	for n := 2; n < 14; n++ {
		closes := make([]float64, n)
		for i := range closes {
			closes[i] = 100 + float64(i%5)
		}

		records, state, err := Run(DefaultParams(), classifiedFromCloses(t, closes))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if state.Stage != 0 {
			t.Errorf("len %d: stage = %d, want 0", n, state.Stage)
		}
		if len(signalsOf(records)) != 0 {
			t.Errorf("len %d: got signals %v, want none", n, signalsOf(records))
		}
	}
}

func TestInitialBuyThenNoSellWithoutUpRun(t *testing.T) {
	// 3 up days, then 11 mixed days never forming a 3-up run.
	closes := []float64{100, 101, 102, 103}
	for i := 0; i < 11; i++ {
		if i%2 == 0 {
			closes = append(closes, closes[len(closes)-1]-1)
		} else {
			closes = append(closes, closes[len(closes)-1]+1)
		}
	}

	records, state, err := Run(DefaultParams(), classifiedFromCloses(t, closes))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	signals := signalsOf(records)
	if len(signals) != 1 || signals[13] != model.SignalBuy {
		t.Fatalf("signals = %v, want exactly Buy at index 13", signals)
	}
	if records[13].Stage != 1 {
		t.Errorf("stage at buy = %d, want 1", records[13].Stage)
	}
	if state.Stage != 1 || state.Position != model.PositionHolding {
		t.Errorf("final state = stage %d position %s, want stage 1 holding", state.Stage, state.Position)
	}
}

func TestEngineeredThirtyDayCycle(t *testing.T) {
	// 14 down days (initial buy on row 14), 3 up days (sell), 2 down days
	// (re-entry), then flat to fill 30 rows.
	closes := []float64{100}
	for i := 0; i < 13; i++ {
		closes = append(closes, closes[len(closes)-1]-0.5)
	}
	for i := 0; i < 3; i++ {
		closes = append(closes, closes[len(closes)-1]+1)
	}
	for i := 0; i < 2; i++ {
		closes = append(closes, closes[len(closes)-1]-1)
	}
	for len(closes) < 30 {
		closes = append(closes, closes[len(closes)-1])
	}

	records, state, err := Run(DefaultParams(), classifiedFromCloses(t, closes))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	signals := signalsOf(records)
	want := map[int]model.Signal{
		13: model.SignalBuy,
		16: model.SignalSell,
		18: model.SignalBuy,
	}
	if !reflect.DeepEqual(signals, want) {
		t.Fatalf("signals = %v, want %v", signals, want)
	}

	stages := map[int]int{13: 1, 16: 2, 18: 3}
	for idx, stage := range stages {
		if records[idx].Stage != stage {
			t.Errorf("stage at index %d = %d, want %d", idx, records[idx].Stage, stage)
		}
	}
	if state.Stage != 3 {
		t.Errorf("final stage = %d, want 3", state.Stage)
	}
}

func TestFlatDayBreaksRun(t *testing.T) {
	// After the initial buy, two up days, a flat day, then three up days.
	// The flat day must reset the run: the sell fires only after the full
	// fresh 3-up run.
	closes := []float64{100}
	for i := 0; i < 13; i++ {
		closes = append(closes, closes[len(closes)-1]-0.5)
	}
	last := closes[len(closes)-1]
	closes = append(closes, last+1, last+2) // rows 14,15: up, up
	closes = append(closes, last+2)         // row 16: flat, breaks the run
	closes = append(closes, last+3, last+4, last+5) // rows 17-19: fresh 3-up run

	records, _, err := Run(DefaultParams(), classifiedFromCloses(t, closes))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	signals := signalsOf(records)
	want := map[int]model.Signal{13: model.SignalBuy, 19: model.SignalSell}
	if !reflect.DeepEqual(signals, want) {
		t.Fatalf("signals = %v, want %v", signals, want)
	}
}

func TestFullCycleReachesTerminalStage(t *testing.T) {
	p := DefaultParams()

	closes := []float64{100}
	step := func(delta float64, n int) {
		for i := 0; i < n; i++ {
			closes = append(closes, closes[len(closes)-1]+delta)
		}
	}
	step(-0.1, 13) // rows 0-13: initial wait
	step(1, 3)     // sell
	step(-1, 2)    // buy
	step(1, 3)     // sell
	step(-1, 7)    // buy
	step(1, 7)     // sell
	step(-0.5, 14) // final buy, stage 7
	step(1, 5)     // past terminal: no more signals

	records, state, err := Run(p, classifiedFromCloses(t, closes))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if state.Stage != 7 || state.Position != model.PositionHolding {
		t.Fatalf("final state = stage %d position %s, want stage 7 holding", state.Stage, state.Position)
	}

	buys, sells := 0, 0
	for _, rec := range records {
		switch rec.Signal {
		case model.SignalBuy:
			buys++
		case model.SignalSell:
			sells++
		}
	}
	if buys != 4 || sells != 3 {
		t.Errorf("buys = %d sells = %d, want 4 and 3", buys, sells)
	}

	// No signal after the terminal buy.
	for i := len(records) - 5; i < len(records); i++ {
		if records[i].Signal != model.SignalNone {
			t.Errorf("signal at index %d after terminal stage: %v", i, records[i].Signal)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	closes := []float64{100}
	for i := 0; i < 40; i++ {
		closes = append(closes, closes[len(closes)-1]+float64((i%7)-3))
	}
	classified := classifiedFromCloses(t, closes)

	first, firstState, err := Run(DefaultParams(), classified)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, secondState, err := Run(DefaultParams(), classified)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same series produced different records")
	}
	if firstState != secondState {
		t.Errorf("terminal states differ: %+v != %+v", firstState, secondState)
	}
}

func TestRunEmptySeries(t *testing.T) {
	_, _, err := Run(DefaultParams(), nil)
	if err == nil {
		t.Fatal("Run() on empty series should fail")
	}
}
