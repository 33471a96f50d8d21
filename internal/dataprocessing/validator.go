package dataprocessing

import (
	"errors"

	"pollcli/pkg/contracts/domain"
)

// Validator checks integrity constraints on normalized records. Every rule
// is evaluated independently so the outcome lists all violations at once.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate tags the record Valid, Repairable or Rejected
func (v *Validator) Validate(rec domain.NormalizedRecord) domain.ValidationOutcome {
	var violations []domain.Violation

	if rec.Pollster == "" {
		violations = append(violations, domain.Violation{Code: domain.ViolationMissingPollster})
	}
	if len(rec.Percentages) == 0 {
		violations = append(violations, domain.Violation{Code: domain.ViolationNoCandidates})
	}
	for _, name := range rec.Candidates() {
		pct := rec.Percentages[name]
		switch {
		case pct.Missing:
			violations = append(violations, domain.Violation{Code: domain.ViolationMissingPercentage, Field: name})
		case pct.Value < 0 || pct.Value > 100:
			violations = append(violations, domain.Violation{Code: domain.ViolationPercentageOutOfRange, Field: name})
		}
	}
	if rec.StartDate.After(rec.EndDate) {
		violations = append(violations, domain.Violation{Code: domain.ViolationDateOrder})
	}
	if rec.SampleSize != nil && *rec.SampleSize < 0 {
		violations = append(violations, domain.Violation{Code: domain.ViolationNegativeSampleSize})
	}

	return classify(violations)
}

// classify derives the tag from a violation list
func classify(violations []domain.Violation) domain.ValidationOutcome {
	tag := domain.OutcomeValid
	for _, violation := range violations {
		if !violation.Code.Recoverable() {
			return domain.ValidationOutcome{Tag: domain.OutcomeRejected, Violations: violations}
		}
		tag = domain.OutcomeRepairable
	}
	return domain.ValidationOutcome{Tag: tag, Violations: violations}
}

// ParseFailureOutcome converts a normalizer error into a rejected outcome
func ParseFailureOutcome(err error) domain.ValidationOutcome {
	var pf *ParseFailure
	if errors.As(err, &pf) {
		return domain.Rejected(domain.Violation{Code: domain.ViolationParseFailure, Field: pf.Field})
	}
	return domain.Rejected(domain.Violation{Code: domain.ViolationParseFailure})
}
