package detect

import (
	"github.com/vkulagin/stockscan/internal/model"
)

// Detector is a named boolean predicate over a classified series.
type Detector struct {
	Name string
	Eval func(points []model.ClassifiedPoint) model.DetectorResult
}

// Setup is a named AND-combination of detectors. Every Required detector
// must match and no Exclusion may fire. Setups are declared data; adding one
// never touches the detector implementations.
type Setup struct {
	Name       string
	Required   []Detector
	Exclusions []Detector
}

// Evaluate runs every detector of the setup over the series and reports
// whether the symbol matches, together with all individual results.
func (s Setup) Evaluate(points []model.ClassifiedPoint) (bool, []model.DetectorResult) {
	results := make([]model.DetectorResult, 0, len(s.Required)+len(s.Exclusions))
	match := true

	for _, d := range s.Required {
		res := d.Eval(points)
		results = append(results, res)
		if !res.Match {
			match = false
		}
	}

	for _, d := range s.Exclusions {
		res := d.Eval(points)
		results = append(results, res)
		if res.Match {
			match = false
		}
	}

	return match, results
}

// Params carries the tuned detector thresholds. All values are empirical
// defaults and overridable through configuration.
type Params struct {
	LimitMoveWindow int
	LimitMovePct    float64
	MinUpRun        int
	GapWindow       int
	GapMinFraction  float64
	VolumeWindow    int
	VolumeRatio     float64
	RunGainCaps     []RunGainCap
}

// DefaultParams returns the tuned thresholds of the big-rise screen.
func DefaultParams() Params {
	return Params{
		LimitMoveWindow: 20,
		LimitMovePct:    9.5,
		MinUpRun:        3,
		GapWindow:       30,
		GapMinFraction:  0,
		VolumeWindow:    20,
		VolumeRatio:     3.0,
		RunGainCaps: []RunGainCap{
			{Length: 7, CapPct: 22.5},
			{Length: 5, CapPct: 17.5},
			{Length: 3, CapPct: 12.5},
		},
	}
}

// BigRiseSetup is the four-signal pre-breakout screen: a recent limit move,
// a trailing up run, an up gap and a volume surge must all be present, and
// the already-extended exclusion must not fire.
func BigRiseSetup(p Params) Setup {
	return Setup{
		Name: "big_rise_precursor",
		Required: []Detector{
			{Name: NameLimitMove, Eval: func(pts []model.ClassifiedPoint) model.DetectorResult {
				return RecentLimitMove(pts, p.LimitMoveWindow, p.LimitMovePct)
			}},
			{Name: NameConsecutiveRun, Eval: func(pts []model.ClassifiedPoint) model.DetectorResult {
				return ConsecutiveRun(pts, p.MinUpRun, model.DirectionUp)
			}},
			{Name: NameGapUp, Eval: func(pts []model.ClassifiedPoint) model.DetectorResult {
				return GapUp(pts, p.GapWindow, p.GapMinFraction)
			}},
			{Name: NameVolumeSurge, Eval: func(pts []model.ClassifiedPoint) model.DetectorResult {
				return VolumeSurge(pts, p.VolumeWindow, p.VolumeRatio)
			}},
		},
		Exclusions: []Detector{
			{Name: NameBoundedRunGain, Eval: func(pts []model.ClassifiedPoint) model.DetectorResult {
				return BoundedRunGain(pts, p.RunGainCaps)
			}},
		},
	}
}
