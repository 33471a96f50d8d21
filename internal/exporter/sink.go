package exporter

import (
	"encoding/json"
	"io"
	"log/slog"

	"pollcli/internal/config"
	"pollcli/internal/files"
	"pollcli/internal/infrastructure"
	"pollcli/pkg/contracts/domain"
)

// Artifacts is everything a run publishes
type Artifacts struct {
	Points  []domain.AggregatedPoint
	Audit   []domain.AuditEntry
	Polls   []domain.NormalizedRecord
	Summary *domain.RunSummary
}

type artifactTable struct {
	path  string
	table Table
}

// Sink writes run artifacts atomically: either every artifact is replaced
// or the previous outputs are left exactly as they were
type Sink struct {
	output config.OutputConfig
	paths  *config.Paths
	base   *slog.Logger
	logger *slog.Logger
}

// NewSink creates a sink for the resolved artifact paths
func NewSink(output config.OutputConfig, paths *config.Paths, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		output: output,
		paths:  paths,
		base:   logger,
		logger: infrastructure.WithComponent(logger, "sink"),
	}
}

// Write stages and commits the dataset, the audit trail and the optional
// polls table and run summary
func (s *Sink) Write(a Artifacts) (err error) {
	tx := files.NewTransaction(s.base)
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	tables := []artifactTable{
		{s.paths.DatasetFile, DatasetTable(a.Points, s.output.DecimalPlaces)},
		{s.paths.AuditFile, AuditTable(a.Audit)},
	}
	if s.paths.PollsFile != "" {
		tables = append(tables, artifactTable{s.paths.PollsFile, PollsTable(a.Polls, s.output.DecimalPlaces)})
	}

	for _, t := range tables {
		if err := tx.Stage(t.path, s.tableWriter(t.table)); err != nil {
			return err
		}
	}

	if s.paths.SummaryFile != "" && a.Summary != nil {
		summary := a.Summary
		if err := tx.Stage(s.paths.SummaryFile, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("Artifacts written",
		slog.String("dataset", s.paths.DatasetFile),
		slog.String("audit", s.paths.AuditFile),
		slog.Int("points", len(a.Points)),
		slog.Int("audit_entries", len(a.Audit)))
	return nil
}

func (s *Sink) tableWriter(table Table) func(io.Writer) error {
	if s.output.Format == config.FormatXLSX {
		return func(w io.Writer) error { return WriteXLSX(w, table) }
	}
	return func(w io.Writer) error {
		return WriteCSV(w, table, WriteOptions{BOMPrefix: s.output.BOMPrefix})
	}
}
