package scan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vkulagin/stockscan/internal/model"
)

type rowStub struct {
	Code string
}

func universeOf(n int) []model.SymbolInfo {
	universe := make([]model.SymbolInfo, n)
	for i := range universe {
		universe[i] = model.SymbolInfo{Code: fmt.Sprintf("SYM%02d", i)}
	}
	return universe
}

func TestRunToleratesPerSymbolFailure(t *testing.T) {
	universe := universeOf(10)

	eval := func(ctx context.Context, sym model.SymbolInfo) (*rowStub, error) {
		if sym.Code == "SYM03" {
			return nil, fmt.Errorf("%w: synthetic fetch failure", model.ErrDataUnavailable)
		}
		return &rowStub{Code: sym.Code}, nil
	}

	result, err := Run(context.Background(), Options{Concurrency: 4}, universe, eval)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Submitted != 10 {
		t.Errorf("submitted = %d, want 10", result.Submitted)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if result.Matched != 9 || len(result.Rows) != 9 {
		t.Errorf("matched = %d rows = %d, want 9 and 9", result.Matched, len(result.Rows))
	}
	if result.Canceled {
		t.Error("scan should not report cancellation")
	}
}

func TestRunNilRowMeansNoMatch(t *testing.T) {
	universe := universeOf(6)

	eval := func(ctx context.Context, sym model.SymbolInfo) (*rowStub, error) {
		if sym.Code[len(sym.Code)-1]%2 == 0 {
			return nil, nil
		}
		return &rowStub{Code: sym.Code}, nil
	}

	result, err := Run(context.Background(), Options{Concurrency: 2}, universe, eval)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Matched != 3 {
		t.Errorf("matched = %d, want 3", result.Matched)
	}
	if result.Failed != 0 {
		t.Errorf("failed = %d, want 0", result.Failed)
	}
	if result.Completed != 6 {
		t.Errorf("completed = %d, want 6", result.Completed)
	}
}

func TestRunConfigurationErrors(t *testing.T) {
	eval := func(ctx context.Context, sym model.SymbolInfo) (*rowStub, error) {
		return nil, nil
	}

	tests := []struct {
		name     string
		opts     Options
		universe []model.SymbolInfo
		eval     Evaluator[rowStub]
	}{
		{"zero concurrency", Options{Concurrency: 0}, universeOf(3), eval},
		{"negative concurrency", Options{Concurrency: -2}, universeOf(3), eval},
		{"empty universe", Options{Concurrency: 2}, nil, eval},
		{"nil evaluator", Options{Concurrency: 2}, universeOf(3), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.opts, tt.universe, tt.eval)
			if !errors.Is(err, model.ErrConfiguration) {
				t.Errorf("Run() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestRunPanickingEvaluatorCountsAsFailed(t *testing.T) {
	universe := universeOf(4)

	eval := func(ctx context.Context, sym model.SymbolInfo) (*rowStub, error) {
		if sym.Code == "SYM02" {
			panic("synthetic evaluator panic")
		}
		return &rowStub{Code: sym.Code}, nil
	}

	result, err := Run(context.Background(), Options{Concurrency: 2}, universe, eval)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Failed != 1 || result.Matched != 3 {
		t.Errorf("failed = %d matched = %d, want 1 and 3", result.Failed, result.Matched)
	}
}

func TestRunCancellationDrainsInFlight(t *testing.T) {
	universe := universeOf(50)
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int32
	eval := func(ctx context.Context, sym model.SymbolInfo) (*rowStub, error) {
		if started.Add(1) == 5 {
			cancel()
		}
		return &rowStub{Code: sym.Code}, nil
	}

	result, err := Run(ctx, Options{Concurrency: 2}, universe, eval)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Canceled {
		t.Error("result should report cancellation")
	}
	if result.Submitted >= len(universe) {
		t.Errorf("submitted = %d, want fewer than %d after cancel", result.Submitted, len(universe))
	}
	// Everything handed to a worker finished and was collected.
	if result.Completed != result.Matched+result.Failed {
		t.Errorf("completed = %d, want matched+failed = %d", result.Completed, result.Matched+result.Failed)
	}
	if result.Matched != len(result.Rows) {
		t.Errorf("matched = %d rows = %d, want equal", result.Matched, len(result.Rows))
	}
}

func TestRunProgressReporting(t *testing.T) {
	universe := universeOf(8)

	var events []Progress
	opts := Options{
		Concurrency: 1,
		OnProgress: func(p Progress) {
			events = append(events, p)
		},
	}

	eval := func(ctx context.Context, sym model.SymbolInfo) (*rowStub, error) {
		return &rowStub{Code: sym.Code}, nil
	}

	if _, err := Run(context.Background(), opts, universe, eval); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(events) == 0 {
		t.Fatal("no progress events delivered")
	}

	last := events[len(events)-1]
	if last.Completed != 8 || last.Total != 8 {
		t.Errorf("final progress = %d/%d, want 8/8", last.Completed, last.Total)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Completed < events[i-1].Completed {
			t.Error("progress went backwards")
		}
	}
}

func TestRunPerSymbolTimeout(t *testing.T) {
	universe := universeOf(3)

	eval := func(ctx context.Context, sym model.SymbolInfo) (*rowStub, error) {
		if sym.Code == "SYM01" {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", model.ErrDataUnavailable, ctx.Err())
			case <-time.After(5 * time.Second):
				return &rowStub{Code: sym.Code}, nil
			}
		}
		return &rowStub{Code: sym.Code}, nil
	}

	opts := Options{Concurrency: 3, PerSymbolTimeout: 20 * time.Millisecond}
	result, err := Run(context.Background(), opts, universe, eval)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Failed != 1 || result.Matched != 2 {
		t.Errorf("failed = %d matched = %d, want 1 and 2", result.Failed, result.Matched)
	}
}
