// Package shared holds helpers used across the pipeline packages that do not
// belong to any single stage.
//
// The testutil subpackage provides:
//
//   - LogCapture, an slog.Handler that records entries for assertions
//   - Raw record builders and input file writers for poll fixtures
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteCSV(t, t.TempDir(), header, rows)
//	    ...
//	    testutil.AssertLogContains(t, logs, slog.LevelWarn, "dropped out")
//	}
package shared
