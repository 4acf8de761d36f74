package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/energysys/dashboard/internal/metrics"
	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/timeseries"
)

// ErrFetchFailed is returned when any source of a view could not be
// fetched. No partial result is produced.
var ErrFetchFailed = errors.New("view: source fetch failed")

// maxConcurrentFetches caps the source reads one view runs at once.
const maxConcurrentFetches = 4

// fetch is one source request of a view.
type fetch func(ctx context.Context) error

// fanOut runs every fetch concurrently and waits for all of them. The first
// failure cancels the others and is reported as ErrFetchFailed.
func fanOut(ctx context.Context, view string, fetches ...fetch) error {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, f := range fetches {
		g.Go(func() error { return f(ctx) })
	}
	err := g.Wait()
	metrics.FanoutLatency.WithLabelValues(view).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FanoutFailures.WithLabelValues(view).Inc()
		slog.Warn("view fetch failed", "view", view, "err", err)
		return fmt.Errorf("%w: %s: %v", ErrFetchFailed, view, err)
	}
	return nil
}

// series adapts a store series read into a fetch that fills dst.
func series(dst *[]timeseries.Point, source string, r model.TimeRange,
	list func(context.Context, model.TimeRange) ([]model.SeriesPoint, error)) fetch {
	return func(ctx context.Context) error {
		rows, err := list(ctx, r)
		if err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
		*dst = points(source, rows)
		return nil
	}
}

// points converts store rows to join points keyed by normalized timestamp.
// Repeated timestamps are logged and counted; the join still resolves them
// by first occurrence.
func points(source string, rows []model.SeriesPoint) []timeseries.Point {
	out := make([]timeseries.Point, len(rows))
	for i, r := range rows {
		out[i] = timeseries.Point{Timestamp: timeseries.Normalize(r.Timestamp), Value: r.Value}
	}
	if err := timeseries.CheckUnique(out); err != nil {
		metrics.DuplicateTimestamps.WithLabelValues(source).Inc()
		slog.Warn("series has duplicate timestamps", "source", source, "err", err)
	}
	return out
}
