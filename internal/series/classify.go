// Package series turns raw daily price bars into direction-classified points.
package series

import (
	"fmt"
	"math"

	"github.com/vkulagin/stockscan/internal/model"
)

// Classify annotates an ordered price series with per-day directions and
// percentage changes. The transform is pure: the input is not modified and
// re-running it always yields identical output.
//
// The first point keeps the provider-supplied percentage change (zero if
// absent) and is classified Flat since it has no previous close.
func Classify(points []model.PricePoint) ([]model.ClassifiedPoint, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", model.ErrInvalidInput, len(points))
	}

	for i, p := range points {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return nil, fmt.Errorf("%w: non-numeric close at index %d", model.ErrInvalidInput, i)
		}
		if i > 0 && !points[i].Date.After(points[i-1].Date) {
			return nil, fmt.Errorf("%w: dates not strictly increasing at index %d", model.ErrInvalidInput, i)
		}
	}

	classified := make([]model.ClassifiedPoint, len(points))
	classified[0] = model.ClassifiedPoint{PricePoint: points[0], Direction: model.DirectionFlat}

	for i := 1; i < len(points); i++ {
		prev := points[i-1].Close
		if prev <= 0 {
			return nil, fmt.Errorf("%w: non-positive close %v at index %d", model.ErrInvalidInput, prev, i-1)
		}

		cp := model.ClassifiedPoint{PricePoint: points[i]}
		switch {
		case points[i].Close > prev:
			cp.Direction = model.DirectionUp
		case points[i].Close < prev:
			cp.Direction = model.DirectionDown
		default:
			cp.Direction = model.DirectionFlat
		}
		cp.PctChange = (points[i].Close - prev) / prev * 100

		classified[i] = cp
	}

	return classified, nil
}
