// Package dataprocessing turns raw scraped poll records into a clean,
// analysis-ready dataset.
//
// # Stages
//
//		Reader → Normalizer → Validator → Resolver → Deduplicator → Aggregator
//
//	 1. Normalizer: parses dates, percentages and sample sizes and
//	    canonicalizes pollster and candidate names through the alias maps
//	 2. Validator: tags each record Valid, Repairable or Rejected and lists
//	    every violated constraint
//	 3. Resolver: fills missing percentages from strictly earlier observed
//	    values using the configured imputation policy
//	 4. Deduplicator: keeps one record per pollster, date range and value set
//	 5. Aggregator: per pollster/candidate trailing rolling averages
//
// Rejected records leave the flow after the stage that rejected them and
// are reported in the audit trail together with repaired and dropped
// records. Pipeline runs all stages and assembles the audit trail.
//
// # Usage
//
//	records, err := dataprocessing.NewReader(cfg.Input, logger).ReadFile(ctx, "polls.csv")
//	if err != nil {
//	    return err
//	}
//	result, err := dataprocessing.NewPipeline(cfg.Pipeline, cfg.Fields, tel, logger).Run(ctx, records)
//
// # Error Handling
//
// Per-record failures are values: *ParseFailure from the normalizer and
// *ResolutionFailure from the resolver are converted into rejected
// outcomes. Only input errors and context cancellation fail a run.
package dataprocessing
