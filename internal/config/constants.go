package config

import "time"

// Application constants
const (
	// Application Info
	AppName   = "Poll Cleaner"
	EnvPrefix = "POLLS"

	// Pipeline defaults
	DefaultRollingWindowSize  = 5
	DefaultImputationLookback = 14 * 24 * time.Hour
	DefaultDropoutWindow      = 14 * 24 * time.Hour
	DefaultDateRangeDelimiter = " - "

	// Imputation methods, in default policy order
	ImputeCarryForward      = "carry_forward"
	ImputeCrossPollsterMean = "cross_pollster_mean"

	// Raw field roles
	DefaultPollsterField   = "pollster"
	DefaultDateField       = "date"
	DefaultSampleSizeField = "sample"
	DefaultSourceURLField  = "source_url"

	// File Paths (relative to the working directory)
	DefaultOutputDir   = "data/reports"
	DefaultDatasetFile = "trends.csv"
	DefaultAuditFile   = "audit.csv"
	DefaultPollsFile   = "polls.csv"
	DefaultSummaryFile = "summary.json"
	DefaultLogFile     = "logs/pollcli.log"

	// Output formats
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatXLSX  = "xlsx"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Telemetry
	DefaultServiceName  = "pollcli"
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
)

// DefaultDateFormats lists the accepted layouts for a single date, tried in order
var DefaultDateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
}

// DefaultMissingMarkers are cell values the crawler emits for empty cells
var DefaultMissingMarkers = []string{"N/A", "n/a", "NA", "-", "--"}

// DefaultIgnoredFields are non-candidate share columns dropped during normalization
var DefaultIgnoredFields = []string{"others", "undecided"}

// ImputationMethods lists every method a policy may name
var ImputationMethods = []string{ImputeCarryForward, ImputeCrossPollsterMean}
