// Package channel abstracts the byte-oriented radio link between two
// nodes: bounded frames go out, frames plus signal-quality metadata come
// back. The protocol engines never talk to a modem directly.
package channel

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout reports that no frame arrived within the receive bound. It
// is an ordinary outcome of a polling cycle, not a link failure.
var ErrTimeout = errors.New("receive timed out")

// SignalReport carries the modem's link-quality measurements for one
// received frame.
type SignalReport struct {
	RSSI int     // dBm
	SNR  float32 // dB
}

// Channel is a half-duplex frame pipe with a bounded maximum frame size.
// Transmit blocks until the frame is handed to the link; Receive blocks
// until a frame arrives or the timeout elapses.
type Channel interface {
	Transmit(ctx context.Context, frame []byte) error
	Receive(ctx context.Context, timeout time.Duration) ([]byte, SignalReport, error)
	Close() error
}
