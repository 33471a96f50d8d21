package domain

import (
	"sort"
	"time"
)

// DateLayout is the canonical calendar date layout used across artifacts
const DateLayout = "2006-01-02"

// RawRecord is one scraped row as a flat field name to string mapping
type RawRecord map[string]string

// Keys returns the record field names in sorted order
func (r RawRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValueSource describes where a percentage value came from
type ValueSource string

const (
	SourceObserved          ValueSource = "observed"
	SourceCarryForward      ValueSource = "carry_forward"
	SourceCrossPollsterMean ValueSource = "cross_pollster_mean"
)

// IsImputed reports whether the value was filled in by the resolver
func (s ValueSource) IsImputed() bool {
	return s == SourceCarryForward || s == SourceCrossPollsterMean
}

// Percentage is a candidate share in percentage points
type Percentage struct {
	Value   float64     `json:"value"`
	Missing bool        `json:"missing"`
	Source  ValueSource `json:"source,omitempty"`
}

// Observed builds an observed percentage value
func Observed(v float64) Percentage {
	return Percentage{Value: v, Source: SourceObserved}
}

// MissingPercentage builds a placeholder for an absent value
func MissingPercentage() Percentage {
	return Percentage{Missing: true}
}

// NormalizedRecord is a typed poll produced from a RawRecord
type NormalizedRecord struct {
	Index       int                   `json:"index"`
	Pollster    string                `json:"pollster"`
	StartDate   time.Time             `json:"start_date"`
	EndDate     time.Time             `json:"end_date"`
	Percentages map[string]Percentage `json:"percentages"`
	SampleSize  *int                  `json:"sample_size,omitempty"`
	SourceURL   string                `json:"source_url,omitempty"`
}

// Candidates returns the candidate names in sorted order
func (r NormalizedRecord) Candidates() []string {
	names := make([]string, 0, len(r.Percentages))
	for name := range r.Percentages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MissingCandidates returns the sorted names of candidates without a value
func (r NormalizedRecord) MissingCandidates() []string {
	var names []string
	for _, name := range r.Candidates() {
		if r.Percentages[name].Missing {
			names = append(names, name)
		}
	}
	return names
}

// Clone returns a deep copy so stages never share the percentage map
func (r NormalizedRecord) Clone() NormalizedRecord {
	out := r
	out.Percentages = make(map[string]Percentage, len(r.Percentages))
	for k, v := range r.Percentages {
		out.Percentages[k] = v
	}
	if r.SampleSize != nil {
		n := *r.SampleSize
		out.SampleSize = &n
	}
	return out
}

// HasSampleSize reports whether a sample size was published
func (r NormalizedRecord) HasSampleSize() bool {
	return r.SampleSize != nil
}
