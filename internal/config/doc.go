// Package config provides centralized configuration management for the poll
// cleaning pipeline. It handles loading configuration from multiple sources,
// validation, and artifact path resolution.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern POLLS_<SECTION>_<FIELD>:
//
//	POLLS_PIPELINE_ROLLING_WINDOW_SIZE=7
//	POLLS_PIPELINE_LOOKBACK_WINDOW_FOR_IMPUTATION=168h
//	POLLS_PIPELINE_POLLSTER_ALIAS_MAP=yougov:YouGov,ipsos mori:Ipsos
//	POLLS_OUTPUT_DIR=/srv/polls
//	POLLS_LOGGING_LEVEL=debug
//
// # Configuration File
//
//	pipeline:
//	  rolling_window_size: 5
//	  lookback_window_for_imputation: 336h
//	  imputation_policy: [carry_forward, cross_pollster_mean]
//	  date_range_delimiter: " - "
//	  candidate_alias_map:
//	    "Dr. Lydgate": Lydgate
//	output:
//	  dir: data/reports
//	  format: csv
//
// # Validation
//
// Struct constraints are declared as validator tags and checked once at load
// time; a malformed configuration is fatal for the run.
package config
