package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollcli/internal/config"
	apperrors "pollcli/internal/errors"
	"pollcli/internal/infrastructure"
	"pollcli/internal/shared/testutil"
	"pollcli/pkg/contracts"
	"pollcli/pkg/contracts/domain"
)

func resetLogger(t *testing.T) {
	t.Helper()
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)
}

func acmeInput(t *testing.T) string {
	t.Helper()
	return testutil.WriteCSV(t, t.TempDir(),
		[]string{"pollster", "date", "CandA", "CandB"},
		[][]string{
			{"Acme Poll", "2022-12-28", "44", "40"},
			{"Acme Poll", "2023-01-01 - 2023-01-03", "45%", "N/A"},
		})
}

func TestRun_CleansAndPublishes(t *testing.T) {
	resetLogger(t)
	input := acmeInput(t)
	outDir := t.TempDir()

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-in", input, "-out", outDir}, &stdout)
	require.NoError(t, err)
	assert.Equal(t, "valid=1 repaired=1 rejected=0\n", stdout.String())

	dataset, err := os.ReadFile(filepath.Join(outDir, config.DefaultDatasetFile))
	require.NoError(t, err)
	assert.Equal(t,
		"pollster,candidate,date,raw_value,rolling_average\n"+
			"Acme Poll,CandA,2022-12-28,44.00,44.00\n"+
			"Acme Poll,CandA,2023-01-01,45.00,44.50\n"+
			"Acme Poll,CandB,2022-12-28,40.00,40.00\n"+
			"Acme Poll,CandB,2023-01-01,40.00,40.00\n",
		string(dataset))

	audit, err := os.ReadFile(filepath.Join(outDir, config.DefaultAuditFile))
	require.NoError(t, err)
	assert.Contains(t, string(audit), "repairable,missing_percentage:CandB,imputed(CandB=carry_forward)")

	assert.FileExists(t, filepath.Join(outDir, config.DefaultPollsFile))

	raw, err := os.ReadFile(filepath.Join(outDir, config.DefaultSummaryFile))
	require.NoError(t, err)
	var summary domain.RunSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, domain.RunCounts{Input: 2, Valid: 1, Repaired: 1, Points: 4}, summary.Counts)
	assert.Equal(t, filepath.Join(outDir, config.DefaultDatasetFile), summary.Artifacts["dataset"])
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

func TestRun_XLSXFormat(t *testing.T) {
	resetLogger(t)
	input := acmeInput(t)
	outDir := t.TempDir()

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-in", input, "-out", outDir, "-format", "xlsx"}, &stdout))

	assert.FileExists(t, filepath.Join(outDir, "trends.xlsx"))
	assert.FileExists(t, filepath.Join(outDir, "audit.xlsx"))
	assert.NoFileExists(t, filepath.Join(outDir, "trends.csv"))
}

func TestRun_PositionalInput(t *testing.T) {
	resetLogger(t)
	input := acmeInput(t)
	outDir := t.TempDir()

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-out", outDir, input}, &stdout))
	assert.Equal(t, "valid=1 repaired=1 rejected=0\n", stdout.String())
}

func TestRun_MetricsTextfile(t *testing.T) {
	resetLogger(t)
	input := acmeInput(t)
	outDir := t.TempDir()
	metrics := filepath.Join(t.TempDir(), "metrics", "pollcli.prom")
	t.Setenv("POLLS_TELEMETRY_METRICS_TEXTFILE", metrics)

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-in", input, "-out", outDir}, &stdout))

	content, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(content), "pollcli_records_processed")
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &stdout))
	assert.Contains(t, stdout.String(), contracts.Version)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     func(t *testing.T) []string
		wantType apperrors.ErrorType
	}{
		{
			name:     "missing input flag",
			args:     func(t *testing.T) []string { return nil },
			wantType: apperrors.ErrTypeInput,
		},
		{
			name: "input does not exist",
			args: func(t *testing.T) []string {
				return []string{"-in", filepath.Join(t.TempDir(), "absent.csv"), "-out", t.TempDir()}
			},
			wantType: apperrors.ErrTypeInput,
		},
		{
			name: "invalid output format",
			args: func(t *testing.T) []string {
				return []string{"-in", acmeInput(t), "-out", t.TempDir(), "-format", "pdf"}
			},
			wantType: apperrors.ErrTypeConfig,
		},
		{
			name: "polls table would overwrite the dataset",
			args: func(t *testing.T) []string {
				t.Setenv("POLLS_OUTPUT_POLLS_FILE", "trends.xlsx")
				return []string{"-in", acmeInput(t), "-out", t.TempDir(), "-format", "xlsx"}
			},
			wantType: apperrors.ErrTypeConfig,
		},
		{
			name: "missing config file",
			args: func(t *testing.T) []string {
				return []string{"-in", acmeInput(t), "-config", filepath.Join(t.TempDir(), "absent.yaml")}
			},
			wantType: apperrors.ErrTypeConfig,
		},
		{
			name: "malformed input",
			args: func(t *testing.T) []string {
				input := testutil.WriteFile(t, t.TempDir(), "polls.json", "{not json")
				return []string{"-in", input, "-out", t.TempDir()}
			},
			wantType: apperrors.ErrTypeInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLogger(t)
			var stdout bytes.Buffer

			err := run(context.Background(), tt.args(t), &stdout)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
			assert.True(t, apperrors.IsFatal(err))
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRun_FailedRunKeepsPreviousArtifacts(t *testing.T) {
	resetLogger(t)
	outDir := t.TempDir()
	dataset := filepath.Join(outDir, config.DefaultDatasetFile)
	require.NoError(t, os.WriteFile(dataset, []byte("previous"), 0644))

	input := testutil.WriteFile(t, t.TempDir(), "polls.json", "[1, 2]")
	var stdout bytes.Buffer
	require.Error(t, run(context.Background(), []string{"-in", input, "-out", outDir}, &stdout))

	content, err := os.ReadFile(dataset)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(content))
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	opts := &options{outDir: "elsewhere", format: config.FormatXLSX, inputFormat: config.FormatJSONL}

	require.NoError(t, applyOverrides(cfg, opts))
	assert.Equal(t, "elsewhere", cfg.Output.Dir)
	assert.Equal(t, config.FormatXLSX, cfg.Output.Format)
	assert.Equal(t, config.FormatJSONL, cfg.Input.Format)
}
