package domain

import "time"

// SeriesKey identifies one pollster/candidate time series
type SeriesKey struct {
	Pollster  string `json:"pollster"`
	Candidate string `json:"candidate"`
}

// Less orders series keys by pollster, then candidate
func (k SeriesKey) Less(other SeriesKey) bool {
	if k.Pollster != other.Pollster {
		return k.Pollster < other.Pollster
	}
	return k.Candidate < other.Candidate
}

// AggregatedPoint is one observation in a series with its rolling average
type AggregatedPoint struct {
	Key            SeriesKey `json:"key"`
	Date           time.Time `json:"date"`
	RawValue       float64   `json:"raw_value"`
	RollingAverage *float64  `json:"rolling_average,omitempty"`
	RecordIndex    int       `json:"record_index"`
	Imputed        bool      `json:"imputed"`
}
