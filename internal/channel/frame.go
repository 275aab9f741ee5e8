package channel

import (
	"fmt"

	"github.com/skobkin/loracast/internal/protocol"
)

// Link-level framing between host and modem. Outgoing: sync(2) len(1)
// payload. Incoming adds a 2-byte trailer the modem appends to every
// received frame: rssi (dBm, signed) and snr (signed, quarter-dB steps).
var linkSync = [2]byte{0xC4, 0x5A}

const signalTrailerSize = 2

type readFullFunc func(buf []byte) error

func encodeLinkFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty link frame")
	}
	if len(payload) > protocol.MaxFrameSize {
		return nil, fmt.Errorf("link frame too large: %d > %d", len(payload), protocol.MaxFrameSize)
	}

	frame := make([]byte, 3+len(payload))
	frame[0] = linkSync[0]
	frame[1] = linkSync[1]
	frame[2] = byte(len(payload))
	copy(frame[3:], payload)

	return frame, nil
}

func readLinkFrame(readFull readFullFunc) ([]byte, SignalReport, error) {
	if err := resyncToHeader(readFull); err != nil {
		return nil, SignalReport{}, err
	}

	var lenBuf [1]byte
	if err := readFull(lenBuf[:]); err != nil {
		return nil, SignalReport{}, fmt.Errorf("read link frame length: %w", err)
	}
	ln := int(lenBuf[0])
	if ln == 0 {
		return nil, SignalReport{}, fmt.Errorf("invalid link frame length: 0")
	}

	payload := make([]byte, ln)
	if err := readFull(payload); err != nil {
		return nil, SignalReport{}, fmt.Errorf("read link frame payload: %w", err)
	}

	var trailer [signalTrailerSize]byte
	if err := readFull(trailer[:]); err != nil {
		return nil, SignalReport{}, fmt.Errorf("read signal trailer: %w", err)
	}
	sig := SignalReport{
		RSSI: int(int8(trailer[0])),
		SNR:  float32(int8(trailer[1])) / 4,
	}

	return payload, sig, nil
}

func resyncToHeader(readFull readFullFunc) error {
	buf := make([]byte, 1)
	for {
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read link sync byte 1: %w", err)
		}
		if buf[0] != linkSync[0] {
			continue
		}
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read link sync byte 2: %w", err)
		}
		if buf[0] == linkSync[1] {
			return nil
		}
	}
}
