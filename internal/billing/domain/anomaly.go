package billing

import "time"

// AnomalyMarker tags every anomaly log row.
const AnomalyMarker = "inconsistente"

// Anomaly records a reading rejected by the band check.
type Anomaly struct {
	CustomerID int64
	MeterID    int64
	ReadingID  int64
	KWh        float64
	Average    float64
	ObservedOn time.Time
}

// Date returns the observation day formatted as YYYY-MM-DD.
func (a Anomaly) Date() string { return a.ObservedOn.Format(DateLayout) }
