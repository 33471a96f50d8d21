package config

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "pollcli/internal/errors"
)

// Paths contains the resolved artifact locations for one run
type Paths struct {
	OutputDir   string
	DatasetFile string
	AuditFile   string
	PollsFile   string
	SummaryFile string
}

// ResolvePaths resolves artifact names against the output directory.
// Absolute artifact names are kept as-is; empty optional names stay empty.
// Two artifacts resolving to the same file is a configuration error.
func (c *Config) ResolvePaths() (*Paths, error) {
	outDir, err := filepath.Abs(c.Output.Dir)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to resolve output directory", err)
	}

	table := func(name string) string {
		return withFormatExt(resolveIn(outDir, name), c.Output.Format)
	}
	paths := &Paths{
		OutputDir:   outDir,
		DatasetFile: table(c.Output.DatasetFile),
		AuditFile:   table(c.Output.AuditFile),
		PollsFile:   table(c.Output.PollsFile),
		SummaryFile: resolveIn(outDir, c.Output.SummaryFile),
	}

	if err := paths.checkDistinct(); err != nil {
		return nil, err
	}
	return paths, nil
}

// checkDistinct rejects artifacts that would overwrite each other
func (p *Paths) checkDistinct() error {
	roles := []string{"dataset", "audit", "polls", "summary"}
	artifacts := p.Artifacts()
	owner := make(map[string]string, len(artifacts))
	for _, role := range roles {
		path, ok := artifacts[role]
		if !ok {
			continue
		}
		key := filepath.Clean(path)
		if other, taken := owner[key]; taken {
			return apperrors.NewConfigError(
				fmt.Sprintf("%s and %s artifacts resolve to the same file", other, role), nil).
				WithContext("path", key)
		}
		owner[key] = role
	}
	return nil
}

// Artifacts returns the non-empty artifact paths keyed by role
func (p *Paths) Artifacts() map[string]string {
	out := map[string]string{
		"dataset": p.DatasetFile,
		"audit":   p.AuditFile,
	}
	if p.PollsFile != "" {
		out["polls"] = p.PollsFile
	}
	if p.SummaryFile != "" {
		out["summary"] = p.SummaryFile
	}
	return out
}

func resolveIn(dir, name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// withFormatExt swaps a .csv extension for .xlsx when writing workbooks
func withFormatExt(path, format string) string {
	if path == "" || format != FormatXLSX {
		return path
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".xlsx"
	}
	return path
}
