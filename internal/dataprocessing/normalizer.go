package dataprocessing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pollcli/internal/config"
	apperrors "pollcli/internal/errors"
	"pollcli/pkg/contracts/domain"
)

// ParseFailure reports a raw field whose value could not be converted
type ParseFailure struct {
	Field string
	Value string
	Err   error
}

func newParseFailure(field, value, reason string) *ParseFailure {
	return &ParseFailure{
		Field: field,
		Value: value,
		Err:   apperrors.NewParsingError(reason, nil).WithContext("field", field),
	}
}

// Error implements the error interface
func (e *ParseFailure) Error() string {
	return fmt.Sprintf("field %q value %q: %v", e.Field, e.Value, e.Err)
}

// Unwrap exposes the underlying parsing error
func (e *ParseFailure) Unwrap() error {
	return e.Err
}

type fieldRole int

const (
	roleCandidate fieldRole = iota
	rolePollster
	roleDate
	roleSampleSize
	roleSourceURL
	roleIgnored
)

// Normalizer converts raw scraped records into typed polls. It holds only
// configuration and is safe for concurrent use.
type Normalizer struct {
	roles       map[string]fieldRole
	dateField   string
	delimiter   string
	dateFormats []string
	missing     keySet
	pollsters   aliasTable
	candidates  aliasTable
	expected    []string
}

// NewNormalizer creates a normalizer for the given pipeline and field configuration
func NewNormalizer(cfg config.PipelineConfig, fields config.FieldsConfig) *Normalizer {
	roles := make(map[string]fieldRole)
	for _, f := range cfg.IgnoredFields {
		roles[aliasKey(f)] = roleIgnored
	}
	assign := func(name string, role fieldRole) {
		if name != "" {
			roles[aliasKey(name)] = role
		}
	}
	assign(fields.Pollster, rolePollster)
	assign(fields.Date, roleDate)
	assign(fields.SampleSize, roleSampleSize)
	assign(fields.SourceURL, roleSourceURL)

	n := &Normalizer{
		roles:       roles,
		dateField:   fields.Date,
		delimiter:   cfg.DateRangeDelimiter,
		dateFormats: cfg.DateFormats,
		missing:     newKeySet(cfg.MissingMarkers),
		pollsters:   newAliasTable(cfg.PollsterAliases),
		candidates:  newAliasTable(cfg.CandidateAliases),
	}
	for _, name := range cfg.ExpectedCandidates {
		n.expected = append(n.expected, n.candidates.resolve(name))
	}
	return n
}

// Normalize converts one raw record. index is the record's position in the
// input and is carried on the result. A *ParseFailure is returned for the
// first field that cannot be parsed.
func (n *Normalizer) Normalize(index int, raw domain.RawRecord) (domain.NormalizedRecord, error) {
	rec := domain.NormalizedRecord{
		Index:       index,
		Percentages: make(map[string]domain.Percentage),
	}

	dateKey, dateValue, haveDate := n.dateField, "", false
	sources := make(map[string]string)

	for _, key := range raw.Keys() {
		value := raw[key]
		role, ok := n.roles[aliasKey(key)]
		if !ok {
			role = roleCandidate
		}

		switch role {
		case rolePollster:
			if !n.isMissing(value) {
				rec.Pollster = n.pollsters.resolve(value)
			}
		case roleDate:
			dateKey, dateValue, haveDate = key, value, true
		case roleSampleSize:
			size, err := n.parseSampleSize(key, value)
			if err != nil {
				return domain.NormalizedRecord{}, err
			}
			rec.SampleSize = size
		case roleSourceURL:
			rec.SourceURL = strings.TrimSpace(value)
		case roleIgnored:
		default:
			name := n.candidates.resolve(key)
			if name == "" {
				continue
			}
			if prev, dup := sources[name]; dup {
				return domain.NormalizedRecord{}, newParseFailure(key, value,
					fmt.Sprintf("candidate %q also supplied by column %q", name, prev))
			}
			pct, err := n.parsePercentage(key, value)
			if err != nil {
				return domain.NormalizedRecord{}, err
			}
			sources[name] = key
			rec.Percentages[name] = pct
		}
	}

	if !haveDate {
		return domain.NormalizedRecord{}, newParseFailure(dateKey, "", "date is missing")
	}
	start, end, err := n.parseDateRange(dateKey, dateValue)
	if err != nil {
		return domain.NormalizedRecord{}, err
	}
	rec.StartDate, rec.EndDate = start, end

	for _, name := range n.expected {
		if _, ok := rec.Percentages[name]; !ok {
			rec.Percentages[name] = domain.MissingPercentage()
		}
	}

	return rec, nil
}

func (n *Normalizer) isMissing(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || n.missing.has(v)
}

// parsePercentage accepts "45", "45.5", "45%" and "45 %"
func (n *Normalizer) parsePercentage(field, value string) (domain.Percentage, error) {
	if n.isMissing(value) {
		return domain.MissingPercentage(), nil
	}

	s := strings.TrimSpace(value)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.Percentage{}, newParseFailure(field, value, "percentage is not numeric")
	}
	return domain.Observed(f), nil
}

func (n *Normalizer) parseSampleSize(field, value string) (*int, error) {
	if n.isMissing(value) {
		return nil, nil
	}

	s := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	size, err := strconv.Atoi(s)
	if err != nil {
		return nil, newParseFailure(field, value, "sample size is not an integer")
	}
	return &size, nil
}

// parseDateRange splits a "start<delimiter>end" value; a single date sets
// both ends.
func (n *Normalizer) parseDateRange(field, value string) (time.Time, time.Time, error) {
	if n.isMissing(value) {
		return time.Time{}, time.Time{}, newParseFailure(field, value, "date is missing")
	}

	parts := []string{value}
	if n.delimiter != "" && strings.Contains(value, n.delimiter) {
		parts = strings.SplitN(value, n.delimiter, 2)
	}

	start, ok := n.parseDate(parts[0])
	if !ok {
		return time.Time{}, time.Time{}, newParseFailure(field, value, "unrecognized date")
	}
	end := start
	if len(parts) == 2 {
		if end, ok = n.parseDate(parts[1]); !ok {
			return time.Time{}, time.Time{}, newParseFailure(field, value, "unrecognized end date")
		}
	}
	return start, end, nil
}

// parseDate tries each configured layout in order; the first match wins
func (n *Normalizer) parseDate(s string) (time.Time, bool) {
	s = CanonicalName(s)
	for _, layout := range n.dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
