package snapshot

import (
	"encoding/json"
	"time"
)

// MaxAge is the freshness bound: an envelope older than this must be
// discarded rather than applied, and purged from storage on read.
const MaxAge = 24 * time.Hour

// Envelope wraps a snapshot with its capture time and source page.
// This is the exact persisted payload shape.
type Envelope struct {
	State     Snapshot `json:"state"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
	URL       string   `json:"url"`
}

// Wrap creates an Envelope capturing snap at now from the given page URL.
func Wrap(snap Snapshot, now time.Time, url string) Envelope {
	return Envelope{State: snap, Timestamp: now.UnixMilli(), URL: url}
}

// CapturedAt returns the capture time.
func (e Envelope) CapturedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Usable reports whether the envelope is fresh enough to apply:
// now - capturedAt <= MaxAge.
func (e Envelope) Usable(now time.Time) bool {
	return now.Sub(e.CapturedAt()) <= MaxAge
}

// MarshalEnvelope serialises an Envelope to JSON.
func MarshalEnvelope(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope deserialises an Envelope from JSON.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
