package strategy

import (
	"fmt"

	"github.com/vkulagin/stockscan/internal/model"
)

// Action labels for a forecast.
const (
	ActionWait = "WAIT"
	ActionHold = "HOLD"
)

// Predict derives a forward-looking forecast from the terminal state the
// machine reached on a series. It reads the snapshot only; nothing is
// mutated and no history is replayed.
func Predict(p Params, st model.StrategyState, last model.ClassifiedPoint) model.Forecast {
	if st.Stage >= 7 {
		return model.Forecast{
			Action:     ActionHold,
			Reason:     "staged cycle complete, final position is held indefinitely",
			NextSignal: model.SignalNone,
			Countdown:  0,
			Risk:       model.RiskNA,
		}
	}

	if st.Stage == 0 {
		remaining := p.StageRuns[0] - st.DayCount
		return model.Forecast{
			Action:     ActionWait,
			Reason:     fmt.Sprintf("initial entry after %d more sessions (%d of %d observed)", remaining, st.DayCount, p.StageRuns[0]),
			NextSignal: model.SignalBuy,
			Countdown:  remaining,
			Risk:       riskTier(st.DayCount, p.StageRuns[0]),
		}
	}

	threshold := p.StageRuns[st.Stage]

	if st.Position == model.PositionHolding {
		// Odd stages wait for an up run to exit.
		run := 0
		if last.Direction == model.DirectionUp {
			run = st.UpRun
		}
		return model.Forecast{
			Action:     ActionHold,
			Reason:     fmt.Sprintf("stage %d: %d of %d consecutive up days toward the next sell", st.Stage, run, threshold),
			NextSignal: model.SignalSell,
			Countdown:  threshold - run,
			Risk:       riskTier(run, threshold),
		}
	}

	// Even stages wait for a down run to re-enter.
	run := 0
	if last.Direction == model.DirectionDown {
		run = st.DownRun
	}
	return model.Forecast{
		Action:     ActionWait,
		Reason:     fmt.Sprintf("stage %d: %d of %d consecutive down days toward the next buy", st.Stage, run, threshold),
		NextSignal: model.SignalBuy,
		Countdown:  threshold - run,
		Risk:       riskTier(run, threshold),
	}
}

// riskTier grades how deep into the active run requirement the state is.
func riskTier(run, threshold int) model.RiskTier {
	if threshold <= 0 {
		return model.RiskNA
	}
	ratio := float64(run) / float64(threshold)
	switch {
	case ratio >= 2.0/3.0:
		return model.RiskHigh
	case ratio >= 1.0/3.0:
		return model.RiskElevated
	default:
		return model.RiskLow
	}
}
