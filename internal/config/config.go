package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "pollcli/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Fields    FieldsConfig    `yaml:"fields" envconfig:"FIELDS"`
	Input     InputConfig     `yaml:"input" envconfig:"INPUT"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// PipelineConfig drives the cleaning stages. It is passed explicitly into
// every stage constructor.
type PipelineConfig struct {
	RollingWindowSize  int               `yaml:"rolling_window_size" envconfig:"ROLLING_WINDOW_SIZE" validate:"gt=0"`
	ImputationLookback time.Duration     `yaml:"lookback_window_for_imputation" envconfig:"LOOKBACK_WINDOW_FOR_IMPUTATION" validate:"gt=0"`
	ImputationPolicy   []string          `yaml:"imputation_policy" envconfig:"IMPUTATION_POLICY" validate:"min=1,unique,dive,oneof=carry_forward cross_pollster_mean"`
	PollsterAliases    map[string]string `yaml:"pollster_alias_map" envconfig:"POLLSTER_ALIAS_MAP"`
	CandidateAliases   map[string]string `yaml:"candidate_alias_map" envconfig:"CANDIDATE_ALIAS_MAP"`
	DateRangeDelimiter string            `yaml:"date_range_delimiter" envconfig:"DATE_RANGE_DELIMITER" validate:"required"`
	DateFormats        []string          `yaml:"date_formats" envconfig:"DATE_FORMATS" validate:"min=1,dive,required"`
	MissingMarkers     []string          `yaml:"missing_markers" envconfig:"MISSING_MARKERS"`
	IgnoredFields      []string          `yaml:"ignored_fields" envconfig:"IGNORED_FIELDS"`
	ExpectedCandidates []string          `yaml:"expected_candidates" envconfig:"EXPECTED_CANDIDATES" validate:"dive,required"`
	DropoutWindow      time.Duration     `yaml:"dropout_window" envconfig:"DROPOUT_WINDOW" validate:"gte=0"`
	Workers            int               `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// FieldsConfig maps raw record field names to their roles. Any field not
// named here or ignored is a candidate percentage column.
type FieldsConfig struct {
	Pollster   string `yaml:"pollster" envconfig:"POLLSTER" validate:"required"`
	Date       string `yaml:"date" envconfig:"DATE" validate:"required"`
	SampleSize string `yaml:"sample_size" envconfig:"SAMPLE_SIZE"`
	SourceURL  string `yaml:"source_url" envconfig:"SOURCE_URL"`
}

// InputConfig describes the raw record source
type InputConfig struct {
	Format string `yaml:"format" envconfig:"FORMAT" validate:"omitempty,oneof=csv json jsonl xlsx"`
	Sheet  string `yaml:"sheet" envconfig:"SHEET"`
}

// OutputConfig contains artifact locations and formatting
type OutputConfig struct {
	Dir           string `yaml:"dir" envconfig:"DIR" validate:"required"`
	DatasetFile   string `yaml:"dataset_file" envconfig:"DATASET_FILE" validate:"required"`
	AuditFile     string `yaml:"audit_file" envconfig:"AUDIT_FILE" validate:"required,nefield=DatasetFile"`
	PollsFile     string `yaml:"polls_file" envconfig:"POLLS_FILE"`
	SummaryFile   string `yaml:"summary_file" envconfig:"SUMMARY_FILE"`
	Format        string `yaml:"format" envconfig:"FORMAT" validate:"oneof=csv xlsx"`
	DecimalPlaces int    `yaml:"decimal_places" envconfig:"DECIMAL_PLACES" validate:"gte=0,lte=10"`
	BOMPrefix     bool   `yaml:"bom" envconfig:"BOM"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig contains tracing and metrics export settings
type TelemetryConfig struct {
	ServiceName     string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment     string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter   string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	SampleRatio     float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
	MetricsTextfile string  `yaml:"metrics_textfile" envconfig:"METRICS_TEXTFILE"`
}

// Load builds the configuration from defaults, an optional YAML file and
// POLLS_* environment variables, in increasing order of precedence. An empty
// path falls back to the well-known config locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config file", err).
				WithContext("path", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", describeValidation(err))
	}

	for raw, canonical := range c.Pipeline.PollsterAliases {
		if strings.TrimSpace(raw) == "" || strings.TrimSpace(canonical) == "" {
			return apperrors.NewConfigError("pollster_alias_map entries must be non-empty", nil).
				WithContext("alias", raw)
		}
	}
	for raw, canonical := range c.Pipeline.CandidateAliases {
		if strings.TrimSpace(raw) == "" || strings.TrimSpace(canonical) == "" {
			return apperrors.NewConfigError("candidate_alias_map entries must be non-empty", nil).
				WithContext("alias", raw)
		}
	}

	roles := []string{c.Fields.Pollster, c.Fields.Date, c.Fields.SampleSize, c.Fields.SourceURL}
	seen := make(map[string]bool, len(roles))
	for _, role := range roles {
		if role == "" {
			continue
		}
		if seen[role] {
			return apperrors.NewConfigError(fmt.Sprintf("field %q is assigned to more than one role", role), nil)
		}
		seen[role] = true
	}

	return nil
}

// describeValidation flattens validator errors into a single readable error
func describeValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"pollcli.yaml",
		"configs/pollcli.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			RollingWindowSize:  DefaultRollingWindowSize,
			ImputationLookback: DefaultImputationLookback,
			ImputationPolicy:   append([]string(nil), ImputationMethods...),
			PollsterAliases:    map[string]string{},
			CandidateAliases:   map[string]string{},
			DateRangeDelimiter: DefaultDateRangeDelimiter,
			DateFormats:        append([]string(nil), DefaultDateFormats...),
			MissingMarkers:     append([]string(nil), DefaultMissingMarkers...),
			IgnoredFields:      append([]string(nil), DefaultIgnoredFields...),
			DropoutWindow:      DefaultDropoutWindow,
		},
		Fields: FieldsConfig{
			Pollster:   DefaultPollsterField,
			Date:       DefaultDateField,
			SampleSize: DefaultSampleSizeField,
			SourceURL:  DefaultSourceURLField,
		},
		Output: OutputConfig{
			Dir:           DefaultOutputDir,
			DatasetFile:   DefaultDatasetFile,
			AuditFile:     DefaultAuditFile,
			PollsFile:     DefaultPollsFile,
			SummaryFile:   DefaultSummaryFile,
			Format:        FormatCSV,
			DecimalPlaces: 2,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   DefaultServiceName,
			Environment:   "development",
			TraceExporter: TraceExporterNone,
			SampleRatio:   1.0,
		},
	}
}
