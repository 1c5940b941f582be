package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	ActionReadingBill = "reading.bill"
	ResourceMeter     = "meter"
)

// Entry records one state-changing API call.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// BilledReading is the metadata kept for a reading submitted through the API.
type BilledReading struct {
	MeterID   int64   `json:"meter_id"`
	KWh       float64 `json:"kwh"`
	ReadingID int64   `json:"reading_id"`
	Outcome   string  `json:"outcome"`
}

// ReadingBilled builds the entry for a billed reading. Actor, role and
// client details are filled by the caller.
func ReadingBilled(reading BilledReading) Entry {
	metadata, _ := json.Marshal(reading)
	return Entry{
		Action:       ActionReadingBill,
		ResourceType: ResourceMeter,
		ResourceID:   strconv.FormatInt(reading.MeterID, 10),
		Metadata:     metadata,
	}
}

func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON returns the sha256 hex digest of a payload, or "" when empty.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
