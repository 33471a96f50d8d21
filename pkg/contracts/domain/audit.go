package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind names what the pipeline did with a record that left the clean path
type ActionKind string

const (
	ActionNone             ActionKind = "none"
	ActionImputed          ActionKind = "imputed"
	ActionRejected         ActionKind = "rejected"
	ActionDuplicateDropped ActionKind = "dropped_duplicate"
)

// Resolution is the action recorded for an audited record
type Resolution struct {
	Kind   ActionKind `json:"kind"`
	Detail string     `json:"detail,omitempty"`
}

// String renders kind or kind(detail)
func (r Resolution) String() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Detail)
}

// AuditEntry records one input that was repaired, rejected or dropped.
// Actions are listed in the order the pipeline took them.
type AuditEntry struct {
	RecordIndex int               `json:"record_index"`
	Raw         RawRecord         `json:"raw"`
	Outcome     ValidationOutcome `json:"outcome"`
	Actions     []Resolution      `json:"actions"`
}

// ActionList joins the rendered actions with the given separator
func (e AuditEntry) ActionList(sep string) string {
	parts := make([]string, len(e.Actions))
	for i, a := range e.Actions {
		parts[i] = a.String()
	}
	return strings.Join(parts, sep)
}

// RunCounts holds the per-run record tallies
type RunCounts struct {
	Input             int `json:"input"`
	Valid             int `json:"valid"`
	Repaired          int `json:"repaired"`
	Rejected          int `json:"rejected"`
	DuplicatesDropped int `json:"duplicates_dropped"`
	Points            int `json:"points"`
}

// RunSummary describes a completed pipeline run
type RunSummary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Counts     RunCounts         `json:"counts"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
}
