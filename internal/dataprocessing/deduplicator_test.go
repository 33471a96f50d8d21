package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollcli/internal/shared/testutil"
	"pollcli/pkg/contracts/domain"
)

func withSample(rec domain.NormalizedRecord, size int) domain.NormalizedRecord {
	rec.SampleSize = &size
	return rec
}

func indexes(records []domain.NormalizedRecord) []int {
	out := make([]int, len(records))
	for i, rec := range records {
		out[i] = rec.Index
	}
	return out
}

func TestDeduplicate(t *testing.T) {
	values := map[string]float64{"Lydgate": 40, "Bulstrode": 35}

	tests := []struct {
		name      string
		records   []domain.NormalizedRecord
		wantKept  []int
		wantDrops []DuplicateDrop
	}{
		{
			name: "distinct polls are kept",
			records: []domain.NormalizedRecord{
				poll(0, "Acme", "2024-01-01", values),
				poll(1, "Acme", "2024-01-02", values),
				poll(2, "Beta", "2024-01-01", values),
				poll(3, "Acme", "2024-01-01", map[string]float64{"Lydgate": 40, "Bulstrode": 36}),
			},
			wantKept: []int{0, 1, 2, 3},
		},
		{
			name: "ties keep the first seen",
			records: []domain.NormalizedRecord{
				poll(0, "Acme", "2024-01-01", values),
				poll(1, "Acme", "2024-01-01", values),
			},
			wantKept:  []int{0},
			wantDrops: []DuplicateDrop{{Dropped: 1, Kept: 0}},
		},
		{
			name: "present sample size beats absent",
			records: []domain.NormalizedRecord{
				poll(0, "Acme", "2024-01-01", values),
				withSample(poll(1, "Acme", "2024-01-01", values), 500),
			},
			wantKept:  []int{1},
			wantDrops: []DuplicateDrop{{Dropped: 0, Kept: 1}},
		},
		{
			name: "larger sample wins and takes the first position",
			records: []domain.NormalizedRecord{
				withSample(poll(0, "Acme", "2024-01-01", values), 800),
				poll(1, "Beta", "2024-01-01", values),
				withSample(poll(2, "Acme", "2024-01-01", values), 1200),
				withSample(poll(3, "Acme", "2024-01-01", values), 1000),
			},
			wantKept: []int{2, 1},
			wantDrops: []DuplicateDrop{
				{Dropped: 0, Kept: 2},
				{Dropped: 3, Kept: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, drops := NewDeduplicator(nil).Deduplicate(tt.records)
			assert.Equal(t, tt.wantKept, indexes(kept))
			assert.Equal(t, tt.wantDrops, drops)
		})
	}
}

func TestDeduplicate_NoTwoKeptRecordsShareAKey(t *testing.T) {
	var records []domain.NormalizedRecord
	for i := 0; i < 30; i++ {
		records = append(records, withSample(
			poll(i, []string{"Acme", "Beta"}[i%2], []string{"2024-01-01", "2024-01-02", "2024-01-03"}[i%3],
				map[string]float64{"Lydgate": float64(40 + i%4)}),
			i))
	}

	kept, drops := NewDeduplicator(nil).Deduplicate(records)
	assert.Len(t, drops, len(records)-len(kept))

	seen := make(map[string]bool)
	for _, rec := range kept {
		key := duplicateKey(rec)
		require.False(t, seen[key], "duplicate survived: %s", key)
		seen[key] = true
	}
}

func TestDeduplicate_LogsDrops(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	values := map[string]float64{"Lydgate": 40}

	NewDeduplicator(logger).Deduplicate([]domain.NormalizedRecord{
		poll(0, "Acme", "2024-01-01", values),
		poll(1, "Acme", "2024-01-01", values),
	})

	records := logs.Records()
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Attrs["record_index"])
	assert.Equal(t, int64(0), records[0].Attrs["kept_index"])
	assert.Equal(t, "deduplicator", records[0].Attrs["component"])
}
