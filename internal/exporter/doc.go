// Package exporter renders pipeline results as tabular artifacts and
// publishes them.
//
// Tables are built once (DatasetTable, AuditTable, PollsTable) and written
// as CSV with encoding/csv or as XLSX workbooks with excelize. Sink stages
// every artifact through a files.Transaction so a failed run never leaves a
// partial dataset next to a stale audit trail.
//
// Example usage:
//
//	sink := exporter.NewSink(cfg.Output, paths, logger)
//	err := sink.Write(exporter.Artifacts{
//	    Points:  result.Points,
//	    Audit:   result.Audit,
//	    Polls:   result.Polls,
//	    Summary: &summary,
//	})
package exporter
