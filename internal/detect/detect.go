// Package detect holds the independent pattern detectors and their
// composition into named setups.
package detect

import (
	"strings"

	"github.com/vkulagin/stockscan/internal/model"
)

// Detector names used in results.
const (
	NameLimitMove      = "limit_move"
	NameConsecutiveRun = "consecutive_run"
	NameGapUp          = "gap_up"
	NameVolumeSurge    = "volume_surge"
	NameBoundedRunGain = "bounded_run_gain"
	NameBigPlayerSeat  = "big_player_seat"
)

// RecentLimitMove reports whether any day in the trailing window moved at
// least thresholdPct in either direction, approximating a daily limit event.
// Value is the largest absolute move seen in the window.
func RecentLimitMove(points []model.ClassifiedPoint, window int, thresholdPct float64) model.DetectorResult {
	res := model.DetectorResult{Name: NameLimitMove}

	for _, p := range tail(points, window) {
		move := p.PctChange
		if move < 0 {
			move = -move
		}
		if move > res.Value {
			res.Value = move
		}
		if move >= thresholdPct {
			res.Match = true
		}
	}

	return res
}

// TrailingRun is the length of the run of dir-days ending at the most recent
// point. A Flat day or an opposite-direction day terminates the run.
func TrailingRun(points []model.ClassifiedPoint, dir model.Direction) int {
	run := 0
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Direction != dir {
			break
		}
		run++
	}
	return run
}

// LongestRun is the longest run of dir-days anywhere inside the trailing
// window.
func LongestRun(points []model.ClassifiedPoint, dir model.Direction, window int) int {
	longest, run := 0, 0
	for _, p := range tail(points, window) {
		if p.Direction == dir {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

// ConsecutiveRun matches when the trailing run of dir-days is at least
// minLength. Value reports the trailing run length.
func ConsecutiveRun(points []model.ClassifiedPoint, minLength int, dir model.Direction) model.DetectorResult {
	run := TrailingRun(points, dir)
	return model.DetectorResult{
		Name:  NameConsecutiveRun,
		Match: run >= minLength,
		Value: float64(run),
	}
}

// GapUp reports whether any adjacent pair in the trailing window gapped up:
// the day's low strictly above the prior day's high times (1 + minGap),
// where minGap is a fraction (0 means any gap).
func GapUp(points []model.ClassifiedPoint, window int, minGap float64) model.DetectorResult {
	res := model.DetectorResult{Name: NameGapUp}

	recent := tail(points, window)
	for i := 1; i < len(recent); i++ {
		prevHigh := recent[i-1].High
		if prevHigh <= 0 {
			continue
		}
		if recent[i].Low > prevHigh*(1+minGap) {
			res.Match = true
			gap := recent[i].Low/prevHigh - 1
			if gap > res.Value {
				res.Value = gap
			}
		}
	}

	return res
}

// VolumeSurge reports a volume explosion: either the last day's volume is
// ratio times the prior day's, or the mean of the last 3 days is ratio times
// the mean of the 10 days before them. A zero or missing denominator makes
// the corresponding branch false, never an error. Series shorter than
// window+3 never match; the mean-ratio branch additionally needs 13 rows.
func VolumeSurge(points []model.ClassifiedPoint, window int, ratio float64) model.DetectorResult {
	res := model.DetectorResult{Name: NameVolumeSurge}

	n := len(points)
	if n < window+3 {
		return res
	}

	latest := float64(points[n-1].Volume)
	prev := float64(points[n-2].Volume)
	if prev > 0 && latest/prev >= ratio {
		res.Match = true
		res.Value = latest / prev
		return res
	}

	// The mean-ratio branch needs 3 recent plus 10 earlier rows.
	if n < 13 {
		return res
	}

	recent3 := meanVolume(points[n-3 : n])
	earlier10 := meanVolume(points[n-13 : n-3])
	if earlier10 > 0 && recent3/earlier10 >= ratio {
		res.Match = true
		res.Value = recent3 / earlier10
	}

	return res
}

// RunGainCap pairs a run length with the maximum tolerated compounded gain
// over that run, in percent.
type RunGainCap struct {
	Length int
	CapPct float64
}

// BoundedRunGain fires when the trailing Length days are all Up and their
// compounded return exceeds CapPct, checking caps in the given order
// (longest first). It is an exclusion filter: a firing symbol is already
// extended and gets rejected, not selected. Value is the compounded gain in
// percent for the cap that fired.
func BoundedRunGain(points []model.ClassifiedPoint, caps []RunGainCap) model.DetectorResult {
	res := model.DetectorResult{Name: NameBoundedRunGain}

	trailing := TrailingRun(points, model.DirectionUp)
	for _, c := range caps {
		if c.Length <= 0 || trailing < c.Length || len(points) < c.Length {
			continue
		}

		compounded := 1.0
		for _, p := range points[len(points)-c.Length:] {
			compounded *= 1 + p.PctChange/100
		}
		gainPct := (compounded - 1) * 100

		if gainPct > c.CapPct {
			res.Match = true
			res.Value = gainPct
			return res
		}
	}

	return res
}

// BigPlayerSeats matches when any disclosed trade seat name contains one of
// the allowlisted big-player names. Value is the number of matching seats.
func BigPlayerSeats(seats []string, allowlist []string) model.DetectorResult {
	res := model.DetectorResult{Name: NameBigPlayerSeat}

	matched := 0
	for _, seat := range seats {
		for _, want := range allowlist {
			if want != "" && strings.Contains(seat, want) {
				matched++
				break
			}
		}
	}

	res.Match = matched > 0
	res.Value = float64(matched)
	return res
}

func tail(points []model.ClassifiedPoint, window int) []model.ClassifiedPoint {
	if window <= 0 || window >= len(points) {
		return points
	}
	return points[len(points)-window:]
}

func meanVolume(points []model.ClassifiedPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += float64(p.Volume)
	}
	return sum / float64(len(points))
}
