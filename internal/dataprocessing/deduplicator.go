package dataprocessing

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"pollcli/internal/infrastructure"
	"pollcli/pkg/contracts/domain"
)

// DuplicateDrop records a discarded duplicate and the record kept in its place
type DuplicateDrop struct {
	Dropped int
	Kept    int
}

// Deduplicator removes polls that repeat the same pollster, dates and
// candidate values
type Deduplicator struct {
	logger *slog.Logger
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator(logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{logger: infrastructure.WithComponent(logger, "deduplicator")}
}

// Deduplicate keeps one record per duplicate group. The survivor is the
// record with the largest published sample size; ties keep the first seen.
// The survivor takes the position of the group's first record, so output
// order follows input order. Drops are returned sorted by dropped index.
func (d *Deduplicator) Deduplicate(records []domain.NormalizedRecord) ([]domain.NormalizedRecord, []DuplicateDrop) {
	groups := make(map[string][]int)
	var order []string

	for i, rec := range records {
		key := duplicateKey(rec)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	kept := make([]domain.NormalizedRecord, 0, len(order))
	var drops []DuplicateDrop

	for _, key := range order {
		members := groups[key]
		best := members[0]
		for _, i := range members[1:] {
			if largerSample(records[i], records[best]) {
				best = i
			}
		}
		kept = append(kept, records[best])

		for _, i := range members {
			if i == best {
				continue
			}
			drop := DuplicateDrop{Dropped: records[i].Index, Kept: records[best].Index}
			drops = append(drops, drop)
			d.logger.Info("Dropped duplicate poll",
				slog.Int("record_index", drop.Dropped),
				slog.Int("kept_index", drop.Kept),
				slog.String("pollster", records[i].Pollster))
		}
	}

	sort.Slice(drops, func(i, j int) bool { return drops[i].Dropped < drops[j].Dropped })
	return kept, drops
}

// largerSample reports whether a should replace b: a present sample size
// beats an absent one, and a larger one beats a smaller one
func largerSample(a, b domain.NormalizedRecord) bool {
	if a.SampleSize == nil {
		return false
	}
	return b.SampleSize == nil || *a.SampleSize > *b.SampleSize
}

// duplicateKey identifies records that describe the same poll
func duplicateKey(rec domain.NormalizedRecord) string {
	var b strings.Builder
	b.WriteString(rec.Pollster)
	b.WriteByte(0)
	b.WriteString(rec.StartDate.Format(domain.DateLayout))
	b.WriteByte(0)
	b.WriteString(rec.EndDate.Format(domain.DateLayout))
	for _, name := range rec.Candidates() {
		pct := rec.Percentages[name]
		b.WriteByte(0)
		b.WriteString(name)
		b.WriteByte('=')
		if pct.Missing {
			b.WriteString("missing")
		} else {
			b.WriteString(strconv.FormatFloat(pct.Value, 'g', -1, 64))
		}
	}
	return b.String()
}
