package dataprocessing

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"pollcli/internal/config"
	"pollcli/internal/infrastructure"
	"pollcli/pkg/contracts/domain"
)

// DropoutWarning reports an expected candidate with no recent points
type DropoutWarning struct {
	Candidate string
	// LastSeen is nil when the candidate never appeared
	LastSeen *time.Time
}

// Aggregator computes per-series trailing rolling averages
type Aggregator struct {
	window        int
	workers       int
	expected      []string
	dropoutWindow time.Duration
	logger        *slog.Logger
}

// NewAggregator creates an aggregator from the pipeline configuration
func NewAggregator(cfg config.PipelineConfig, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	aliases := newAliasTable(cfg.CandidateAliases)
	expected := make([]string, 0, len(cfg.ExpectedCandidates))
	for _, name := range cfg.ExpectedCandidates {
		expected = append(expected, aliases.resolve(name))
	}
	return &Aggregator{
		window:        cfg.RollingWindowSize,
		workers:       cfg.Workers,
		expected:      expected,
		dropoutWindow: cfg.DropoutWindow,
		logger:        infrastructure.WithComponent(logger, "aggregator"),
	}
}

// Aggregate groups records into series, one point per non-missing candidate
// value, and attaches the rolling average to every point. Series are
// computed independently and returned in SeriesKey order; points within a
// series are ordered by date, ties broken by record index.
func (a *Aggregator) Aggregate(ctx context.Context, records []domain.NormalizedRecord) ([]domain.AggregatedPoint, error) {
	bySeries := make(map[domain.SeriesKey][]domain.AggregatedPoint)
	for _, rec := range records {
		for name, pct := range rec.Percentages {
			if pct.Missing {
				continue
			}
			key := domain.SeriesKey{Pollster: rec.Pollster, Candidate: name}
			bySeries[key] = append(bySeries[key], domain.AggregatedPoint{
				Key:         key,
				Date:        rec.StartDate,
				RawValue:    pct.Value,
				RecordIndex: rec.Index,
				Imputed:     pct.Source.IsImputed(),
			})
		}
	}

	keys := make([]domain.SeriesKey, 0, len(bySeries))
	for key := range bySeries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	results := make([][]domain.AggregatedPoint, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	if a.workers > 0 {
		g.SetLimit(a.workers)
	}
	for i, key := range keys {
		i, points := i, bySeries[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.rollSeries(points)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.AggregatedPoint
	for _, series := range results {
		out = append(out, series...)
	}
	return out, nil
}

// rollSeries orders one series and fills in its rolling averages
func (a *Aggregator) rollSeries(points []domain.AggregatedPoint) []domain.AggregatedPoint {
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].RecordIndex < points[j].RecordIndex
	})

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.RawValue
	}
	for i, avg := range RollingMean(values, a.window) {
		avg := avg
		points[i].RollingAverage = &avg
	}
	return points
}

// RollingMean returns the mean of the trailing window ending at each value.
// Before the window is full the mean covers the values seen so far.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var sum float64
		for _, v := range values[lo : i+1] {
			sum += v
		}
		out[i] = sum / float64(i+1-lo)
	}
	return out
}

// Dropouts reports expected candidates with no point inside the trailing
// dropout window, measured back from the latest point in the dataset
func (a *Aggregator) Dropouts(points []domain.AggregatedPoint) []DropoutWarning {
	if len(a.expected) == 0 || len(points) == 0 {
		return nil
	}

	var latest time.Time
	lastSeen := make(map[string]time.Time)
	for _, p := range points {
		if p.Date.After(latest) {
			latest = p.Date
		}
		if seen, ok := lastSeen[p.Key.Candidate]; !ok || p.Date.After(seen) {
			lastSeen[p.Key.Candidate] = p.Date
		}
	}
	cutoff := latest.Add(-a.dropoutWindow)

	var warnings []DropoutWarning
	for _, name := range a.expected {
		seen, ok := lastSeen[name]
		if ok && !seen.Before(cutoff) {
			continue
		}
		w := DropoutWarning{Candidate: name}
		if ok {
			seen := seen
			w.LastSeen = &seen
		}
		warnings = append(warnings, w)
		a.logger.Warn("Expected candidate has dropped out",
			slog.String("candidate", name),
			slog.Any("last_seen", w.LastSeen),
			slog.Duration("window", a.dropoutWindow))
	}
	return warnings
}
