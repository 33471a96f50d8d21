package domain

import (
	"fmt"
	"strings"
)

// OutcomeTag classifies a record after validation
type OutcomeTag int

const (
	OutcomeValid OutcomeTag = iota
	OutcomeRepairable
	OutcomeRejected
)

// String returns the artifact representation of the tag
func (t OutcomeTag) String() string {
	switch t {
	case OutcomeValid:
		return "valid"
	case OutcomeRepairable:
		return "repairable"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ViolationCode identifies a broken integrity constraint
type ViolationCode string

const (
	ViolationParseFailure           ViolationCode = "parse_failure"
	ViolationMissingPollster        ViolationCode = "missing_pollster"
	ViolationNoCandidates           ViolationCode = "no_candidates"
	ViolationMissingPercentage      ViolationCode = "missing_percentage"
	ViolationPercentageOutOfRange   ViolationCode = "percentage_out_of_range"
	ViolationDateOrder              ViolationCode = "date_order"
	ViolationNegativeSampleSize     ViolationCode = "negative_sample_size"
	ViolationUnresolvablePercentage ViolationCode = "unresolvable_percentage"
)

// Recoverable reports whether the resolver can repair this violation
func (c ViolationCode) Recoverable() bool {
	return c == ViolationMissingPercentage
}

// Violation is a single broken constraint, optionally scoped to a field
type Violation struct {
	Code  ViolationCode `json:"code"`
	Field string        `json:"field,omitempty"`
}

// String renders the violation as code or code:field
func (v Violation) String() string {
	if v.Field == "" {
		return string(v.Code)
	}
	return fmt.Sprintf("%s:%s", v.Code, v.Field)
}

// ValidationOutcome is the tagged result attached to each record
type ValidationOutcome struct {
	Tag        OutcomeTag  `json:"tag"`
	Violations []Violation `json:"violations,omitempty"`
}

// Rejected builds a rejected outcome from the given violations
func Rejected(violations ...Violation) ValidationOutcome {
	return ValidationOutcome{Tag: OutcomeRejected, Violations: violations}
}

// ViolationList joins the violation identifiers with the given separator
func (o ValidationOutcome) ViolationList(sep string) string {
	parts := make([]string, len(o.Violations))
	for i, v := range o.Violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}
