package exporter

import (
	"sort"
	"strconv"
	"strings"

	"pollcli/pkg/contracts/domain"
)

// Table is a rendered artifact: a header row and string cells. Columns
// listed in Numeric hold numbers and are typed as such in spreadsheets.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
	Numeric map[int]bool
}

// rawColumnPrefix marks original fields renamed to avoid an audit column
const rawColumnPrefix = "raw."

// DatasetColumns is the header of the clean dataset
var DatasetColumns = []string{"pollster", "candidate", "date", "raw_value", "rolling_average"}

// DatasetTable renders aggregated points, one row per point in the given order
func DatasetTable(points []domain.AggregatedPoint, decimals int) Table {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Key.Pollster,
			p.Key.Candidate,
			formatDate(p.Date),
			formatFloat(p.RawValue, decimals),
			formatOptionalFloat(p.RollingAverage, decimals),
		})
	}
	return Table{
		Sheet:   "trends",
		Headers: DatasetColumns,
		Rows:    rows,
		Numeric: map[int]bool{3: true, 4: true},
	}
}

// auditColumns are the audit columns the pipeline itself fills in
var auditColumns = []string{"record_index", "outcome_tag", "violated_constraints", "resolution_action"}

// AuditTable renders the audit trail. The original fields of every audited
// record are flattened into columns named after the union of their keys; a
// key that clashes with an audit column is written as raw.<key>.
func AuditTable(entries []domain.AuditEntry) Table {
	keySet := make(map[string]bool)
	for _, e := range entries {
		for k := range e.Raw {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reserved := make(map[string]bool, len(auditColumns))
	for _, c := range auditColumns {
		reserved[c] = true
	}

	headers := make([]string, 0, len(keys)+len(auditColumns))
	headers = append(headers, auditColumns[0])
	for _, k := range keys {
		if reserved[k] || (strings.HasPrefix(k, rawColumnPrefix) && reserved[strings.TrimPrefix(k, rawColumnPrefix)]) {
			k = rawColumnPrefix + k
		}
		headers = append(headers, k)
	}
	headers = append(headers, auditColumns[1:]...)

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := make([]string, 0, len(headers))
		row = append(row, strconv.Itoa(e.RecordIndex))
		for _, k := range keys {
			row = append(row, e.Raw[k])
		}
		row = append(row, e.Outcome.Tag.String(), e.Outcome.ViolationList(";"), e.ActionList(";"))
		rows = append(rows, row)
	}

	return Table{
		Sheet:   "audit",
		Headers: headers,
		Rows:    rows,
		Numeric: map[int]bool{0: true},
	}
}

// PollsTable renders the kept polls with one column per candidate seen in
// any of them
func PollsTable(polls []domain.NormalizedRecord, decimals int) Table {
	candidateSet := make(map[string]bool)
	for _, rec := range polls {
		for name := range rec.Percentages {
			candidateSet[name] = true
		}
	}
	candidates := make([]string, 0, len(candidateSet))
	for name := range candidateSet {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	headers := append([]string{"pollster", "start_date", "end_date", "sample_size", "source_url"}, candidates...)
	numeric := map[int]bool{3: true}
	for i := range candidates {
		numeric[5+i] = true
	}

	rows := make([][]string, 0, len(polls))
	for _, rec := range polls {
		row := []string{
			rec.Pollster,
			formatDate(rec.StartDate),
			formatDate(rec.EndDate),
			formatOptionalInt(rec.SampleSize),
			rec.SourceURL,
		}
		for _, name := range candidates {
			pct, ok := rec.Percentages[name]
			if !ok || pct.Missing {
				row = append(row, "")
				continue
			}
			row = append(row, formatFloat(pct.Value, decimals))
		}
		rows = append(rows, row)
	}

	return Table{
		Sheet:   "polls",
		Headers: headers,
		Rows:    rows,
		Numeric: numeric,
	}
}
