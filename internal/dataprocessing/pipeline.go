package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"pollcli/internal/config"
	"pollcli/internal/infrastructure"
	"pollcli/pkg/contracts/domain"
)

// Result is everything a run produces before it is written out
type Result struct {
	// Polls are the kept records in input order
	Polls    []domain.NormalizedRecord
	Points   []domain.AggregatedPoint
	Audit    []domain.AuditEntry
	Counts   domain.RunCounts
	Dropouts []DropoutWarning
}

// recordState tracks one input record through the stages
type recordState struct {
	raw      domain.RawRecord
	record   domain.NormalizedRecord
	outcome  domain.ValidationOutcome
	actions  []domain.Resolution
	repaired bool
}

// Pipeline wires the cleaning stages together. Configuration is handed to
// each stage at construction; a Pipeline holds no per-run state.
type Pipeline struct {
	normalizer   *Normalizer
	validator    *Validator
	resolver     *Resolver
	deduplicator *Deduplicator
	aggregator   *Aggregator
	workers      int
	telemetry    *infrastructure.Telemetry
	logger       *slog.Logger
}

// NewPipeline builds every stage from configuration. A nil telemetry
// disables tracing and metrics.
func NewPipeline(cfg config.PipelineConfig, fields config.FieldsConfig, tel *infrastructure.Telemetry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{
		normalizer:   NewNormalizer(cfg, fields),
		validator:    NewValidator(),
		resolver:     NewResolver(cfg, logger),
		deduplicator: NewDeduplicator(logger),
		aggregator:   NewAggregator(cfg, logger),
		workers:      workers,
		telemetry:    tel,
		logger:       infrastructure.WithComponent(logger, "pipeline"),
	}
}

// Run cleans the raw records. Per-record problems never fail the run; they
// end up in the audit trail. An error is returned only if ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, raws []domain.RawRecord) (*Result, error) {
	states := make([]recordState, len(raws))
	for i, raw := range raws {
		states[i].raw = raw
	}

	if err := p.normalizeAndValidate(ctx, states); err != nil {
		return nil, err
	}
	if err := p.resolve(ctx, states); err != nil {
		return nil, err
	}

	clean := make([]domain.NormalizedRecord, 0, len(states))
	for _, st := range states {
		if st.outcome.Tag != domain.OutcomeRejected {
			clean = append(clean, st.record)
		}
	}

	stageCtx, finish := p.telemetry.TraceStage(ctx, "deduplicate")
	kept, drops := p.deduplicator.Deduplicate(clean)
	finish(nil)
	p.telemetry.RecordDuplicates(stageCtx, len(drops))
	for _, drop := range drops {
		st := &states[drop.Dropped]
		st.actions = append(st.actions, domain.Resolution{
			Kind:   domain.ActionDuplicateDropped,
			Detail: fmt.Sprintf("kept=%d", drop.Kept),
		})
	}

	stageCtx, finish = p.telemetry.TraceStage(ctx, "aggregate", attribute.Int("pipeline.records", len(kept)))
	points, err := p.aggregator.Aggregate(stageCtx, kept)
	finish(err)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	p.telemetry.RecordPoints(stageCtx, len(points))

	result := &Result{
		Polls:    kept,
		Points:   points,
		Audit:    buildAudit(states),
		Counts:   tally(states),
		Dropouts: p.aggregator.Dropouts(points),
	}
	result.Counts.DuplicatesDropped = len(drops)
	result.Counts.Points = len(points)

	p.logger.InfoContext(ctx, "Pipeline run complete",
		slog.Int("input", result.Counts.Input),
		slog.Int("valid", result.Counts.Valid),
		slog.Int("repaired", result.Counts.Repaired),
		slog.Int("rejected", result.Counts.Rejected),
		slog.Int("duplicates_dropped", result.Counts.DuplicatesDropped),
		slog.Int("points", result.Counts.Points))

	return result, nil
}

// normalizeAndValidate runs the first two stages on a bounded worker pool.
// Each worker writes only its own slot.
func (p *Pipeline) normalizeAndValidate(ctx context.Context, states []recordState) (err error) {
	ctx, finish := p.telemetry.TraceStage(ctx, "normalize", attribute.Int("pipeline.records", len(states)))
	defer func() { finish(err) }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range states {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st := &states[i]
			rec, err := p.normalizer.Normalize(i, st.raw)
			if err != nil {
				st.outcome = ParseFailureOutcome(err)
				p.logger.DebugContext(gctx, "Record failed to parse",
					slog.Int("record_index", i),
					slog.String("error", err.Error()))
				return nil
			}
			st.record = rec
			st.outcome = p.validator.Validate(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	counts := make(map[domain.OutcomeTag]int)
	for _, st := range states {
		counts[st.outcome.Tag]++
	}
	for _, tag := range []domain.OutcomeTag{domain.OutcomeValid, domain.OutcomeRepairable, domain.OutcomeRejected} {
		p.telemetry.RecordOutcome(ctx, tag.String(), counts[tag])
	}
	return nil
}

// resolve repairs Repairable records date by date. History only ever holds
// records that survived validation and resolution on strictly earlier
// dates, and each duplicate group contributes once.
func (p *Pipeline) resolve(ctx context.Context, states []recordState) (err error) {
	ctx, finish := p.telemetry.TraceStage(ctx, "resolve")
	defer func() { finish(err) }()

	order := make([]int, 0, len(states))
	for i, st := range states {
		if st.outcome.Tag != domain.OutcomeRejected {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		da, db := states[order[a]].record.StartDate, states[order[b]].record.StartDate
		if !da.Equal(db) {
			return da.Before(db)
		}
		return order[a] < order[b]
	})

	history := NewHistory(nil)
	contributed := make(map[string]bool)

	for lo := 0; lo < len(order); {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("resolve: %w", err)
		}

		date := states[order[lo]].record.StartDate
		hi := lo
		for hi < len(order) && states[order[hi]].record.StartDate.Equal(date) {
			hi++
		}
		group := order[lo:hi]

		for _, i := range group {
			if states[i].outcome.Tag == domain.OutcomeRepairable {
				p.repair(ctx, &states[i], history)
			}
		}
		for _, i := range group {
			st := &states[i]
			if st.outcome.Tag == domain.OutcomeRejected {
				continue
			}
			key := duplicateKey(st.record)
			if contributed[key] {
				continue
			}
			contributed[key] = true
			history.Add(st.record)
		}
		lo = hi
	}
	return nil
}

// repair fills the missing values of one record or rejects it
func (p *Pipeline) repair(ctx context.Context, st *recordState, history *History) {
	repaired, filled, err := p.resolver.Resolve(st.record, history)
	if err != nil {
		violations := append([]domain.Violation(nil), st.outcome.Violations...)
		var failure *ResolutionFailure
		if errors.As(err, &failure) {
			violations = append(violations, failure.Violations()...)
		}
		st.outcome = domain.Rejected(violations...)
		return
	}

	st.record = repaired
	st.repaired = true
	st.actions = append(st.actions, domain.Resolution{Kind: domain.ActionImputed, Detail: describeImputations(filled)})
	for _, imp := range filled {
		p.telemetry.RecordImputation(ctx, string(imp.Method))
	}
}

// buildAudit emits exactly one entry, in input order, for every record that
// was rejected, repaired or dropped as a duplicate. A repaired record that
// was also dropped lists both actions.
func buildAudit(states []recordState) []domain.AuditEntry {
	var entries []domain.AuditEntry
	for i, st := range states {
		entry := domain.AuditEntry{RecordIndex: i, Raw: st.raw, Outcome: st.outcome}
		switch {
		case st.outcome.Tag == domain.OutcomeRejected:
			entry.Actions = []domain.Resolution{{Kind: domain.ActionRejected}}
		case len(st.actions) > 0:
			entry.Actions = st.actions
		default:
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func tally(states []recordState) domain.RunCounts {
	counts := domain.RunCounts{Input: len(states)}
	for _, st := range states {
		switch {
		case st.outcome.Tag == domain.OutcomeRejected:
			counts.Rejected++
		case st.repaired:
			counts.Repaired++
		default:
			counts.Valid++
		}
	}
	return counts
}
