// Package metrics records transfer telemetry: one row per acknowledged
// roundtrip and one row per finished session. Recording failures are
// never fatal to the protocol; callers log and move on.
package metrics

import (
	"context"
	"time"
)

// RoundTrip is one send/ack exchange as observed by the sender.
type RoundTrip struct {
	SessionID uint16
	SeqNum    uint16
	TxAt      time.Time
	AckAt     time.Time
	RSSI      int
	SNR       float32
}

// RTT returns the measured roundtrip time.
func (r RoundTrip) RTT() time.Duration {
	return r.AckAt.Sub(r.TxAt)
}

// Transfer is the outcome of one complete session, recorded on either
// side of the link.
type Transfer struct {
	SessionID  uint16
	Bytes      uint32
	Fragments  uint16
	Outcome    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Sink receives telemetry. Implementations must tolerate concurrent use
// from a single engine goroutine plus the status surface.
type Sink interface {
	RecordRoundTrip(ctx context.Context, rt RoundTrip) error
	RecordTransfer(ctx context.Context, tr Transfer) error
}
