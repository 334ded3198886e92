package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Options controls one batch call's execution contract.
type Options struct {
	MaxConcurrency int  `json:"maxConcurrency"`
	UseCache       bool `json:"useCache"`
	StopOnError    bool `json:"stopOnError"`
}

// ItemResult is one item's outcome, tagged with its input index so the
// caller can reassemble output in input order regardless of completion
// order.
type ItemResult struct {
	Index   int
	ID      string
	Success bool
	Value   any
	Err     error
}

// Summary is the batch-level counters every batch operator returns
// alongside its per-item results.
type Summary struct {
	Successful int
	Failed     int
	Aborted    int
}

// Run dispatches items across a bounded worker pool of size
// opts.MaxConcurrency (default 5), invoking fn once per item. Results
// preserve input order. When opts.StopOnError is true, the first failure
// cancels outstanding work and the remaining items are reported as
// aborted; when false, every item runs and errors are collected.
func Run[T any](ctx context.Context, items []T, opts Options, fn func(context.Context, int, T) (any, error)) ([]ItemResult, Summary) {
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}

	results := make([]ItemResult, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrency)

	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			if egCtx.Err() != nil {
				results[i] = ItemResult{Index: i, Success: false, Err: egCtx.Err()}
				return nil
			}
			value, err := fn(egCtx, i, item)
			if err != nil {
				results[i] = ItemResult{Index: i, Success: false, Err: err}
				if opts.StopOnError {
					return err
				}
				return nil
			}
			results[i] = ItemResult{Index: i, Success: true, Value: value}
			return nil
		})
	}
	_ = eg.Wait()

	return results, summarize(results, egCtx)
}

func summarize(results []ItemResult, ctx context.Context) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Success:
			s.Successful++
		case ctx.Err() != nil && r.Value == nil && r.Err == ctx.Err():
			s.Aborted++
		default:
			s.Failed++
		}
	}
	return s
}
