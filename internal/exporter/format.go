package exporter

import (
	"strconv"
	"time"

	"pollcli/pkg/contracts/domain"
)

// formatFloat formats a value with a fixed number of decimal places so
// repeated runs produce identical text
func formatFloat(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// formatOptionalFloat formats nil as an empty cell
func formatOptionalFloat(f *float64, decimals int) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f, decimals)
}

// formatOptionalInt formats nil as an empty cell
func formatOptionalInt(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

// formatDate formats a calendar date
func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
