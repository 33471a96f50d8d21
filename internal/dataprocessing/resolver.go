package dataprocessing

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"pollcli/internal/config"
	apperrors "pollcli/internal/errors"
	"pollcli/internal/infrastructure"
	"pollcli/pkg/contracts/domain"
)

// ResolutionFailure reports the candidates no imputation method could fill
type ResolutionFailure struct {
	Index      int
	Candidates []string
	Err        error
}

// Error implements the error interface
func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

// Unwrap exposes the underlying resolution error
func (e *ResolutionFailure) Unwrap() error {
	return e.Err
}

// Violations returns one unresolvable_percentage violation per candidate
func (e *ResolutionFailure) Violations() []domain.Violation {
	out := make([]domain.Violation, len(e.Candidates))
	for i, name := range e.Candidates {
		out[i] = domain.Violation{Code: domain.ViolationUnresolvablePercentage, Field: name}
	}
	return out
}

// dayMean accumulates the observed values of one calendar date
type dayMean struct {
	date  time.Time
	sum   float64
	count int
}

func (d dayMean) mean() float64 {
	return d.sum / float64(d.count)
}

// History is the set of observed percentages available for imputation,
// indexed per series and per candidate with dates in ascending order.
// Imputed values are never added.
type History struct {
	series     map[domain.SeriesKey][]dayMean
	candidates map[string][]dayMean
}

// NewHistory indexes the observed values of the given records. Every record
// counts once; callers collapse duplicates before adding them.
func NewHistory(records []domain.NormalizedRecord) *History {
	h := &History{
		series:     make(map[domain.SeriesKey][]dayMean),
		candidates: make(map[string][]dayMean),
	}
	for _, rec := range records {
		h.Add(rec)
	}
	return h
}

// Add records the observed values of rec on its start date
func (h *History) Add(rec domain.NormalizedRecord) {
	for name, pct := range rec.Percentages {
		if pct.Missing || pct.Source.IsImputed() {
			continue
		}
		key := domain.SeriesKey{Pollster: rec.Pollster, Candidate: name}
		h.series[key] = addObservation(h.series[key], rec.StartDate, pct.Value)
		h.candidates[name] = addObservation(h.candidates[name], rec.StartDate, pct.Value)
	}
}

// addObservation folds v into the entry for date, keeping days sorted
func addObservation(days []dayMean, date time.Time, v float64) []dayMean {
	i := sort.Search(len(days), func(i int) bool { return !days[i].date.Before(date) })
	if i < len(days) && days[i].date.Equal(date) {
		days[i].sum += v
		days[i].count++
		return days
	}
	days = append(days, dayMean{})
	copy(days[i+1:], days[i:])
	days[i] = dayMean{date: date, sum: v, count: 1}
	return days
}

// latestBefore returns the last entry dated strictly before t
func latestBefore(days []dayMean, t time.Time) (dayMean, bool) {
	i := sort.Search(len(days), func(i int) bool { return !days[i].date.Before(t) })
	if i == 0 {
		return dayMean{}, false
	}
	return days[i-1], true
}

// Resolver fills missing percentages with an ordered list of imputation
// methods. It only ever consults dates strictly before the record's start
// date, so results do not depend on input order.
type Resolver struct {
	policy   []string
	lookback time.Duration
	logger   *slog.Logger
}

// NewResolver creates a resolver from the pipeline configuration
func NewResolver(cfg config.PipelineConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		policy:   append([]string(nil), cfg.ImputationPolicy...),
		lookback: cfg.ImputationLookback,
		logger:   infrastructure.WithComponent(logger, "resolver"),
	}
}

// Imputation describes one filled value
type Imputation struct {
	Candidate string
	Method    domain.ValueSource
	Value     float64
}

// Resolve returns a repaired copy of rec. If any missing candidate cannot
// be filled, a *ResolutionFailure naming all of them is returned instead.
func (r *Resolver) Resolve(rec domain.NormalizedRecord, history *History) (domain.NormalizedRecord, []Imputation, error) {
	out := rec.Clone()
	var filled []Imputation
	var unresolved []string

	for _, name := range rec.MissingCandidates() {
		imp, ok := r.impute(rec.Pollster, name, rec.StartDate, history)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		out.Percentages[name] = domain.Percentage{Value: imp.Value, Source: imp.Method}
		filled = append(filled, imp)
	}

	if len(unresolved) > 0 {
		r.logger.Debug("Record could not be repaired",
			slog.Int("record_index", rec.Index),
			slog.Any("candidates", unresolved))
		return rec, nil, &ResolutionFailure{
			Index:      rec.Index,
			Candidates: unresolved,
			Err: apperrors.NewResolutionError("no prior observation for "+strings.Join(unresolved, ", ")).
				WithContext("record_index", rec.Index),
		}
	}

	for _, imp := range filled {
		r.logger.Debug("Imputed missing percentage",
			slog.Int("record_index", rec.Index),
			slog.String("candidate", imp.Candidate),
			slog.String("method", string(imp.Method)),
			slog.Float64("value", imp.Value))
	}
	return out, filled, nil
}

func (r *Resolver) impute(pollster, candidate string, date time.Time, history *History) (Imputation, bool) {
	for _, method := range r.policy {
		switch method {
		case config.ImputeCarryForward:
			key := domain.SeriesKey{Pollster: pollster, Candidate: candidate}
			if day, ok := latestBefore(history.series[key], date); ok && date.Sub(day.date) <= r.lookback {
				return Imputation{Candidate: candidate, Method: domain.SourceCarryForward, Value: day.mean()}, true
			}
		case config.ImputeCrossPollsterMean:
			if day, ok := latestBefore(history.candidates[candidate], date); ok {
				return Imputation{Candidate: candidate, Method: domain.SourceCrossPollsterMean, Value: day.mean()}, true
			}
		}
	}
	return Imputation{}, false
}

// describeImputations renders the audit detail, e.g. "CandB=carry_forward"
func describeImputations(filled []Imputation) string {
	parts := make([]string, len(filled))
	for i, imp := range filled {
		parts[i] = fmt.Sprintf("%s=%s", imp.Candidate, imp.Method)
	}
	return strings.Join(parts, ",")
}
