package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"sync"

	billing "utility-billing/internal/billing/domain"
)

// AnomalyLog appends rejected readings to a CSV file, one row per anomaly:
// customer id, kWh, date and the "inconsistente" marker. The file is created
// on first write and never truncated.
type AnomalyLog struct {
	mu   sync.Mutex
	path string
}

// NewAnomalyLog constructs a log writing to path.
func NewAnomalyLog(path string) (*AnomalyLog, error) {
	if path == "" {
		return nil, errors.New("csv anomaly log: empty path")
	}
	return &AnomalyLog{path: path}, nil
}

// Path returns the file the log appends to.
func (l *AnomalyLog) Path() string { return l.path }

// Record appends one row.
func (l *AnomalyLog) Record(ctx context.Context, anomaly billing.Anomaly) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	werr := w.Write(anomalyRecord(anomaly))
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func anomalyRecord(a billing.Anomaly) []string {
	return []string{
		strconv.FormatInt(a.CustomerID, 10),
		strconv.FormatFloat(a.KWh, 'f', -1, 64),
		a.Date(),
		billing.AnomalyMarker,
	}
}
