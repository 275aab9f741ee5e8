package channel

import (
	"context"
	"time"
)

const pairQueueDepth = 64

type pairFrame struct {
	data []byte
	sig  SignalReport
}

// PairEndpoint is one side of an in-memory channel pair. Frames
// transmitted on one endpoint arrive on the other with a fixed signal
// report, preserving frame boundaries. Used by tests and the loopback
// mode of the daemons.
type PairEndpoint struct {
	in     chan pairFrame
	peer   *PairEndpoint
	signal SignalReport

	// Drop, when set, discards outgoing frames it returns true for.
	// Simulates fragment loss on the air.
	Drop func(frame []byte) bool
}

// NewPair returns two connected endpoints.
func NewPair() (*PairEndpoint, *PairEndpoint) {
	a := &PairEndpoint{in: make(chan pairFrame, pairQueueDepth), signal: SignalReport{RSSI: -80, SNR: 9.5}}
	b := &PairEndpoint{in: make(chan pairFrame, pairQueueDepth), signal: SignalReport{RSSI: -80, SNR: 9.5}}
	a.peer = b
	b.peer = a
	return a, b
}

// SetSignal sets the report attached to frames arriving at this endpoint.
func (e *PairEndpoint) SetSignal(sig SignalReport) {
	e.signal = sig
}

func (e *PairEndpoint) Transmit(ctx context.Context, frame []byte) error {
	if e.Drop != nil && e.Drop(frame) {
		return nil
	}
	data := make([]byte, len(frame))
	copy(data, frame)
	select {
	case e.peer.in <- pairFrame{data: data, sig: e.peer.signal}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *PairEndpoint) Receive(ctx context.Context, timeout time.Duration) ([]byte, SignalReport, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-e.in:
		return f.data, f.sig, nil
	case <-timer.C:
		return nil, SignalReport{}, ErrTimeout
	case <-ctx.Done():
		return nil, SignalReport{}, ctx.Err()
	}
}

func (e *PairEndpoint) Close() error {
	return nil
}

var _ Channel = (*PairEndpoint)(nil)
var _ Channel = (*SerialChannel)(nil)
