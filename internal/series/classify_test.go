package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vkulagin/stockscan/internal/model"
)

func pointsFromCloses(closes []float64) []model.PricePoint {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	points := make([]model.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = model.PricePoint{Date: base.AddDate(0, 0, i), Close: c}
	}
	return points
}

func TestClassifyDirections(t *testing.T) {
	points := pointsFromCloses([]float64{100, 101, 101, 99, 100})

	classified, err := Classify(points)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	want := []model.Direction{
		model.DirectionFlat, // first point has no previous close
		model.DirectionUp,
		model.DirectionFlat,
		model.DirectionDown,
		model.DirectionUp,
	}
	for i, dir := range want {
		if classified[i].Direction != dir {
			t.Errorf("direction[%d] = %v, want %v", i, classified[i].Direction, dir)
		}
	}
}

func TestClassifyPctChange(t *testing.T) {
	points := pointsFromCloses([]float64{100, 110, 99})

	classified, err := Classify(points)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if got := classified[1].PctChange; math.Abs(got-10) > 1e-9 {
		t.Errorf("pctChange[1] = %v, want 10", got)
	}
	if got := classified[2].PctChange; math.Abs(got-(-10)) > 1e-9 {
		t.Errorf("pctChange[2] = %v, want -10", got)
	}
}

func TestClassifyInvalidInput(t *testing.T) {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		points []model.PricePoint
	}{
		{
			name:   "too short",
			points: pointsFromCloses([]float64{100}),
		},
		{
			name: "duplicate dates",
			points: []model.PricePoint{
				{Date: base, Close: 100},
				{Date: base, Close: 101},
			},
		},
		{
			name: "dates out of order",
			points: []model.PricePoint{
				{Date: base.AddDate(0, 0, 1), Close: 100},
				{Date: base, Close: 101},
			},
		},
		{
			name:   "non-positive close",
			points: pointsFromCloses([]float64{0, 101}),
		},
		{
			name:   "NaN close",
			points: pointsFromCloses([]float64{100, math.NaN()}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.points)
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("Classify() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	points := pointsFromCloses([]float64{100, 105})
	before := points[1]

	if _, err := Classify(points); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if points[1] != before {
		t.Errorf("input point mutated: %+v != %+v", points[1], before)
	}
}
