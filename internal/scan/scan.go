// Package scan fans a per-symbol evaluator out across a symbol universe
// under a bounded worker pool and collects results as they complete.
package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/vkulagin/stockscan/internal/model"
)

// Evaluator computes one symbol's result. A nil row with a nil error means
// the symbol simply did not match. An error fails that symbol only; the
// batch continues.
type Evaluator[T any] func(ctx context.Context, sym model.SymbolInfo) (*T, error)

// Progress is a rate-bounded snapshot of a running scan.
type Progress struct {
	Completed int
	Total     int
	Elapsed   time.Duration
}

// Options configures one scan run.
type Options struct {
	// Concurrency is the worker-pool size. Must be at least 1.
	Concurrency int

	// PerSymbolTimeout bounds a single evaluation. Zero disables it.
	PerSymbolTimeout time.Duration

	// OnProgress, when set, receives throttled progress snapshots plus a
	// final one at completion.
	OnProgress func(Progress)
}

// Result is the materialized outcome of a scan. Rows are in completion
// order; callers needing a stable ranking sort them afterwards.
type Result[T any] struct {
	Rows      []T
	Submitted int
	Completed int
	Matched   int
	Failed    int
	Elapsed   time.Duration
	Canceled  bool
}

type outcome[T any] struct {
	sym model.SymbolInfo
	row *T
	err error
}

// Run evaluates every symbol of the universe with bounded concurrency.
// Per-symbol failures are counted and swallowed; only configuration errors
// are returned. Cancelling ctx stops submission of new work, drains
// in-flight work and returns the results collected so far.
func Run[T any](ctx context.Context, opts Options, universe []model.SymbolInfo, eval Evaluator[T]) (*Result[T], error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1, got %d", model.ErrConfiguration, opts.Concurrency)
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("%w: empty symbol universe", model.ErrConfiguration)
	}
	if eval == nil {
		return nil, fmt.Errorf("%w: nil evaluator", model.ErrConfiguration)
	}

	logger := log.With().Str("component", "scan").Logger()
	start := time.Now()

	jobs := make(chan model.SymbolInfo)
	outs := make(chan outcome[T])

	var submitted atomic.Int64
	go func() {
		defer close(jobs)
		for _, sym := range universe {
			select {
			case jobs <- sym:
				submitted.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				row, err := evaluate(ctx, opts, eval, sym)
				outs <- outcome[T]{sym: sym, row: row, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outs)
	}()

	// Progress events are throttled so a fast scan does not flood the
	// caller; the terminal snapshot is always delivered.
	limiter := rate.NewLimiter(rate.Every(200*time.Millisecond), 1)

	result := &Result[T]{}
	for out := range outs {
		result.Completed++
		switch {
		case out.err != nil:
			result.Failed++
			logger.Debug().Err(out.err).Str("symbol", out.sym.Code).Msg("Symbol evaluation failed")
		case out.row != nil:
			result.Rows = append(result.Rows, *out.row)
			result.Matched++
		}

		if opts.OnProgress != nil && (limiter.Allow() || result.Completed == len(universe)) {
			opts.OnProgress(Progress{
				Completed: result.Completed,
				Total:     len(universe),
				Elapsed:   time.Since(start),
			})
		}
	}

	result.Submitted = int(submitted.Load())
	result.Elapsed = time.Since(start)
	result.Canceled = ctx.Err() != nil

	logger.Info().
		Int("submitted", result.Submitted).
		Int("matched", result.Matched).
		Int("failed", result.Failed).
		Dur("elapsed", result.Elapsed).
		Bool("canceled", result.Canceled).
		Msg("Scan finished")

	return result, nil
}

// evaluate runs one evaluator invocation with the optional per-symbol
// timeout. A panicking evaluator is converted into a per-symbol error so it
// cannot take the batch down.
func evaluate[T any](ctx context.Context, opts Options, eval Evaluator[T], sym model.SymbolInfo) (row *T, err error) {
	if opts.PerSymbolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.PerSymbolTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			row = nil
			err = fmt.Errorf("evaluator panic for %s: %v", sym.Code, r)
		}
	}()

	return eval(ctx, sym)
}
