// Package strategy implements the staged buy-dip/sell-rally signal cycle.
//
// The machine walks an 8-stage cycle: an initial 14-session wait, then
// alternating exit/entry stages gated on consecutive same-direction runs
// (3 up, 2 down, 3 up, 7 down, 7 up, 14 down), widening its patience each
// round. Stage 7 is terminal: the final position is held and no further
// signals are emitted.
package strategy

import (
	"fmt"

	"github.com/vkulagin/stockscan/internal/model"
	"github.com/vkulagin/stockscan/internal/series"
)

// Params holds the per-stage run-length thresholds. StageRuns[0] is the
// initial wait in processed rows; StageRuns[1..6] are the consecutive-day
// requirements of stages 1 through 6.
type Params struct {
	StageRuns [7]int
}

// DefaultParams returns the hand-tuned staged cycle.
func DefaultParams() Params {
	return Params{StageRuns: [7]int{14, 3, 2, 3, 7, 7, 14}}
}

// NewState returns the initial state for one symbol: stage 0, flat, all
// counters at zero.
func NewState() model.StrategyState {
	return model.StrategyState{
		Stage:    0,
		Position: model.PositionFlat,
		RunColor: model.DirectionFlat,
	}
}

// Step feeds one classified point through the machine and returns the
// updated state together with that day's record. The record always exists;
// its Signal is empty on days without a transition. Stage and Position in
// the record are the values after the transition.
func Step(p Params, st model.StrategyState, pt model.ClassifiedPoint) (model.StrategyState, model.SignalRecord) {
	signal := model.SignalNone

	switch {
	case st.Stage == 0:
		// Initial entry counts processed rows, not calendar days.
		st.DayCount++
		if st.DayCount >= p.StageRuns[0] {
			signal = model.SignalBuy
			st.Position = model.PositionHolding
			st.EntryPrice = pt.Close
			st.Stage = 1
			st.UpRun = 0
		}

	case st.Stage == 1 && st.Position == model.PositionHolding:
		if pt.Direction == model.DirectionUp {
			st.UpRun++
			if st.UpRun >= p.StageRuns[1] {
				signal = model.SignalSell
				st.Position = model.PositionFlat
				st.Stage = 2
				st.DownRun = 0
			}
		} else {
			st.UpRun = 0
		}

	case st.Stage == 2 && st.Position == model.PositionFlat:
		if pt.Direction == model.DirectionDown {
			st.DownRun++
			if st.DownRun >= p.StageRuns[2] {
				signal = model.SignalBuy
				st.Position = model.PositionHolding
				st.EntryPrice = pt.Close
				st.Stage = 3
				st.UpRun = 0
			}
		} else {
			st.DownRun = 0
		}

	case st.Stage == 3 && st.Position == model.PositionHolding:
		if pt.Direction == model.DirectionUp {
			st.UpRun++
			if st.UpRun >= p.StageRuns[3] {
				signal = model.SignalSell
				st.Position = model.PositionFlat
				st.Stage = 4
				st.DownRun = 0
			}
		} else {
			st.UpRun = 0
		}

	case st.Stage == 4 && st.Position == model.PositionFlat:
		if pt.Direction == model.DirectionDown {
			st.DownRun++
			if st.DownRun >= p.StageRuns[4] {
				signal = model.SignalBuy
				st.Position = model.PositionHolding
				st.EntryPrice = pt.Close
				st.Stage = 5
				st.UpRun = 0
			}
		} else {
			st.DownRun = 0
		}

	case st.Stage == 5 && st.Position == model.PositionHolding:
		if pt.Direction == model.DirectionUp {
			st.UpRun++
			if st.UpRun >= p.StageRuns[5] {
				signal = model.SignalSell
				st.Position = model.PositionFlat
				st.Stage = 6
				st.DownRun = 0
			}
		} else {
			st.UpRun = 0
		}

	case st.Stage == 6 && st.Position == model.PositionFlat:
		if pt.Direction == model.DirectionDown {
			st.DownRun++
			if st.DownRun >= p.StageRuns[6] {
				signal = model.SignalBuy
				st.Position = model.PositionHolding
				st.EntryPrice = pt.Close
				st.Stage = 7
			}
		} else {
			st.DownRun = 0
		}

		// Stage 7: terminal, hold indefinitely.
	}

	st.RunColor = pt.Direction

	record := model.SignalRecord{
		Date:      pt.Date,
		Close:     pt.Close,
		Direction: pt.Direction,
		Signal:    signal,
		Position:  st.Position,
		Stage:     st.Stage,
	}

	return st, record
}

// Run folds a classified series through the machine from a fresh state and
// returns the full ordered signal record sequence plus the terminal state.
func Run(p Params, points []model.ClassifiedPoint) ([]model.SignalRecord, model.StrategyState, error) {
	if len(points) == 0 {
		return nil, model.StrategyState{}, fmt.Errorf("%w: empty series", model.ErrInvalidInput)
	}

	st := NewState()
	records := make([]model.SignalRecord, 0, len(points))

	for _, pt := range points {
		var rec model.SignalRecord
		st, rec = Step(p, st, pt)
		records = append(records, rec)
	}

	return records, st, nil
}

// Analyze classifies a raw price series and runs the staged machine over it.
func Analyze(p Params, points []model.PricePoint) ([]model.SignalRecord, model.StrategyState, error) {
	classified, err := series.Classify(points)
	if err != nil {
		return nil, model.StrategyState{}, err
	}
	return Run(p, classified)
}
