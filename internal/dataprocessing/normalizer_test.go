package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollcli/internal/config"
	apperrors "pollcli/internal/errors"
	"pollcli/internal/shared/testutil"
	"pollcli/pkg/contracts/domain"
)

func date(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestNormalizer(mutate func(*config.Config)) *Normalizer {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return NewNormalizer(cfg.Pipeline, cfg.Fields)
}

func TestNormalize_DateRangeAndMissingValue(t *testing.T) {
	n := newTestNormalizer(nil)

	rec, err := n.Normalize(3, testutil.Raw(
		"pollster", "Acme Poll ",
		"date", "2023-01-01 - 2023-01-03",
		"CandA", "45%",
		"CandB", "  ",
	))
	require.NoError(t, err)

	assert.Equal(t, 3, rec.Index)
	assert.Equal(t, "Acme Poll", rec.Pollster)
	assert.Equal(t, date("2023-01-01"), rec.StartDate)
	assert.Equal(t, date("2023-01-03"), rec.EndDate)
	assert.Equal(t, domain.Observed(45), rec.Percentages["CandA"])
	assert.True(t, rec.Percentages["CandB"].Missing)
	assert.Nil(t, rec.SampleSize)
}

func TestNormalize_Percentages(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		want        float64
		wantMissing bool
		wantErr     bool
	}{
		{name: "plain", value: "45", want: 45},
		{name: "decimal with percent", value: "45.5%", want: 45.5},
		{name: "spaced percent", value: " 30 %", want: 30},
		{name: "empty", value: "", wantMissing: true},
		{name: "whitespace", value: "   ", wantMissing: true},
		{name: "N/A marker", value: "N/A", wantMissing: true},
		{name: "dash marker", value: "-", wantMissing: true},
		{name: "out of range still parses", value: "130", want: 130},
		{name: "text", value: "about forty", wantErr: true},
		{name: "bare percent", value: "%", wantErr: true},
		{name: "NaN", value: "NaN", wantErr: true},
	}

	n := newTestNormalizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := n.Normalize(0, testutil.Raw("pollster", "Acme", "date", "2024-01-01", "Lydgate", tt.value))
			if tt.wantErr {
				var pf *ParseFailure
				require.ErrorAs(t, err, &pf)
				assert.Equal(t, "Lydgate", pf.Field)
				assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
				return
			}
			require.NoError(t, err)
			pct := rec.Percentages["Lydgate"]
			assert.Equal(t, tt.wantMissing, pct.Missing)
			if !tt.wantMissing {
				assert.Equal(t, tt.want, pct.Value)
				assert.Equal(t, domain.SourceObserved, pct.Source)
			}
		})
	}
}

func TestNormalize_Dates(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{name: "single ISO date", value: "2024-03-05", wantStart: "2024-03-05", wantEnd: "2024-03-05"},
		{name: "day month year", value: "5 Mar 2024", wantStart: "2024-03-05", wantEnd: "2024-03-05"},
		{name: "US layout", value: "03/05/2024", wantStart: "2024-03-05", wantEnd: "2024-03-05"},
		{name: "range", value: "2024-03-01 - 2024-03-05", wantStart: "2024-03-01", wantEnd: "2024-03-05"},
		{name: "mixed layouts in range", value: "1 Mar 2024 - 2024/03/05", wantStart: "2024-03-01", wantEnd: "2024-03-05"},
		{name: "reversed range parses", value: "2024-03-05 - 2024-03-01", wantStart: "2024-03-05", wantEnd: "2024-03-01"},
		{name: "garbage", value: "last tuesday", wantErr: true},
		{name: "bad end", value: "2024-03-01 - soon", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	n := newTestNormalizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := n.Normalize(0, testutil.Raw("pollster", "Acme", "date", tt.value, "Lydgate", "40"))
			if tt.wantErr {
				var pf *ParseFailure
				require.ErrorAs(t, err, &pf)
				assert.Equal(t, "date", pf.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, date(tt.wantStart), rec.StartDate)
			assert.Equal(t, date(tt.wantEnd), rec.EndDate)
		})
	}
}

func TestNormalize_MissingDateField(t *testing.T) {
	n := newTestNormalizer(nil)

	_, err := n.Normalize(0, testutil.Raw("pollster", "Acme", "Lydgate", "40"))
	var pf *ParseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "date", pf.Field)
}

func TestNormalize_CustomDelimiter(t *testing.T) {
	n := newTestNormalizer(func(cfg *config.Config) {
		cfg.Pipeline.DateRangeDelimiter = " to "
	})

	rec, err := n.Normalize(0, testutil.Raw("pollster", "Acme", "date", "2024-03-01 to 2024-03-04", "Lydgate", "40"))
	require.NoError(t, err)
	assert.Equal(t, date("2024-03-01"), rec.StartDate)
	assert.Equal(t, date("2024-03-04"), rec.EndDate)
}

func TestNormalize_Aliases(t *testing.T) {
	n := newTestNormalizer(func(cfg *config.Config) {
		cfg.Pipeline.PollsterAliases = map[string]string{"acme polling inc": "Acme Poll"}
		cfg.Pipeline.CandidateAliases = map[string]string{"Dr. Lydgate": "Lydgate"}
	})

	rec, err := n.Normalize(0, testutil.Raw(
		"pollster", "  ACME   Polling Inc ",
		"date", "2024-01-01",
		"dr.  lydgate", "41",
		"Mrs.\tGarth", "12",
	))
	require.NoError(t, err)

	assert.Equal(t, "Acme Poll", rec.Pollster)
	assert.Equal(t, []string{"Lydgate", "Mrs. Garth"}, rec.Candidates())
	assert.Equal(t, 41.0, rec.Percentages["Lydgate"].Value)
}

func TestNormalize_FullWidthNamesFold(t *testing.T) {
	n := newTestNormalizer(func(cfg *config.Config) {
		cfg.Pipeline.PollsterAliases = map[string]string{"acme": "Acme Poll"}
	})

	rec, err := n.Normalize(0, testutil.Raw("pollster", "ＡＣＭＥ", "date", "2024-01-01", "Lydgate", "41"))
	require.NoError(t, err)
	assert.Equal(t, "Acme Poll", rec.Pollster)
}

func TestNormalize_DuplicateCandidateColumns(t *testing.T) {
	n := newTestNormalizer(func(cfg *config.Config) {
		cfg.Pipeline.CandidateAliases = map[string]string{"dr lydgate": "Lydgate"}
	})

	_, err := n.Normalize(0, testutil.Raw("pollster", "Acme", "date", "2024-01-01", "Lydgate", "40", "Dr Lydgate", "41"))
	var pf *ParseFailure
	require.ErrorAs(t, err, &pf)
}

func TestNormalize_RolesAndIgnoredFields(t *testing.T) {
	n := newTestNormalizer(nil)

	rec, err := n.Normalize(0, testutil.Raw(
		"Pollster", "Acme",
		"date", "2024-01-01",
		"sample", "1,200",
		"source_url", " https://example.org/poll ",
		"Others", "7",
		"undecided", "3",
		"Lydgate", "40",
	))
	require.NoError(t, err)

	require.NotNil(t, rec.SampleSize)
	assert.Equal(t, 1200, *rec.SampleSize)
	assert.Equal(t, "https://example.org/poll", rec.SourceURL)
	assert.Equal(t, []string{"Lydgate"}, rec.Candidates())
}

func TestNormalize_SampleSize(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    *int
		wantErr bool
	}{
		{name: "empty is absent", value: ""},
		{name: "marker is absent", value: "n/a"},
		{name: "negative parses", value: "-5", want: intPtr(-5)},
		{name: "thousands", value: "12,000", want: intPtr(12000)},
		{name: "fraction", value: "1000.5", wantErr: true},
		{name: "text", value: "many", wantErr: true},
	}

	n := newTestNormalizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := n.Normalize(0, testutil.Raw("pollster", "Acme", "date", "2024-01-01", "Lydgate", "40", "sample", tt.value))
			if tt.wantErr {
				var pf *ParseFailure
				require.ErrorAs(t, err, &pf)
				assert.Equal(t, "sample", pf.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.SampleSize)
		})
	}
}

func TestNormalize_ExpectedCandidates(t *testing.T) {
	n := newTestNormalizer(func(cfg *config.Config) {
		cfg.Pipeline.ExpectedCandidates = []string{"Lydgate", "dr bulstrode"}
		cfg.Pipeline.CandidateAliases = map[string]string{"dr bulstrode": "Bulstrode"}
	})

	rec, err := n.Normalize(0, testutil.Raw("pollster", "Acme", "date", "2024-01-01", "Lydgate", "40"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Bulstrode", "Lydgate"}, rec.Candidates())
	assert.Equal(t, []string{"Bulstrode"}, rec.MissingCandidates())
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	n := newTestNormalizer(nil)
	raw := testutil.Raw("pollster", " Acme ", "date", "2024-01-01", "Lydgate", "40%")
	before := testutil.Raw("pollster", " Acme ", "date", "2024-01-01", "Lydgate", "40%")

	_, err := n.Normalize(0, raw)
	require.NoError(t, err)
	assert.Equal(t, before, raw)
}

func intPtr(v int) *int {
	return &v
}
