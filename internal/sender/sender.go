// Package sender turns one opaque audio payload into a framed fragment
// stream (START, DATA*, END) and drives the acknowledgment handshake.
// The engine performs no retries and no backoff: every step reports its
// own failure and retry policy belongs to the caller.
package sender

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/loracast/internal/bus"
	"github.com/skobkin/loracast/internal/channel"
	"github.com/skobkin/loracast/internal/config"
	"github.com/skobkin/loracast/internal/events"
	"github.com/skobkin/loracast/internal/protocol"
)

var (
	// ErrUnexpectedType reports a non-ACK frame where an ACK was expected.
	ErrUnexpectedType = errors.New("expected ack frame")
	// ErrSeqMismatch reports an ACK for a different sequence number.
	ErrSeqMismatch = errors.New("ack sequence mismatch")
)

// AckError reports an ACK whose status is not OK. The status is the
// receiver's verdict (checksum failure or missing fragments).
type AckError struct {
	Status protocol.AckStatus
}

func (e *AckError) Error() string {
	return fmt.Sprintf("ack status %s", e.Status)
}

// Engine owns the sender side of one node: the session identifier and
// the monotonically increasing sequence counter. The counter advances
// exactly once per frame built, regardless of transmit outcome, so
// sequence numbers never repeat within a session.
type Engine struct {
	logger *slog.Logger
	bus    bus.MessageBus
	ch     channel.Channel

	node  config.NodeConfig
	radio config.RadioConfig

	ackTimeout      time.Duration
	fragmentSpacing time.Duration

	sessionID uint16
	seq       uint16
}

func NewEngine(logger *slog.Logger, b bus.MessageBus, ch channel.Channel, cfg config.AppConfig) *Engine {
	return &Engine{
		logger:          logger,
		bus:             b,
		ch:              ch,
		node:            cfg.Node,
		radio:           cfg.Radio,
		ackTimeout:      time.Duration(cfg.Protocol.AckTimeoutMs) * time.Millisecond,
		fragmentSpacing: time.Duration(cfg.Protocol.FragmentSpacingMs) * time.Millisecond,
	}
}

// SessionID returns the identifier of the current transfer session.
func (e *Engine) SessionID() uint16 {
	return e.sessionID
}

// SeqNum returns the next sequence number that will be used.
func (e *Engine) SeqNum() uint16 {
	return e.seq
}

// BeginSession regenerates the session identifier and resets the
// sequence counter for a new transfer.
func (e *Engine) BeginSession() uint16 {
	var raw [2]byte
	if _, err := rand.Read(raw[:]); err != nil {
		// Extremely unlikely; fall back to advancing the old id.
		e.sessionID++
	} else {
		e.sessionID = binary.LittleEndian.Uint16(raw[:])
	}
	e.seq = 0
	e.logger.Info("session started", "session_id", fmt.Sprintf("0x%04X", e.sessionID))
	return e.sessionID
}

// nextHeader builds the header for one outgoing frame and advances the
// sequence counter.
func (e *Engine) nextHeader(typ protocol.PacketType) protocol.Header {
	h := protocol.Header{
		VerType:   protocol.MakeVerType(protocol.ProtocolVersion, typ),
		Src:       e.node.ID,
		Dst:       e.node.PeerID,
		ExpID:     e.node.ExperimentID,
		SessionID: e.sessionID,
		SeqNum:    e.seq,
		TxPower:   e.radio.TxPowerDBm,
		SFCR:      protocol.MakeSFCR(e.radio.SpreadingFactor, e.radio.CodingRate),
	}
	e.seq++
	return h
}

func (e *Engine) transmit(ctx context.Context, h protocol.Header, p protocol.Payload) error {
	frame, err := protocol.EncodeFrame(h, p)
	if err != nil {
		return err
	}
	if err := e.ch.Transmit(ctx, frame); err != nil {
		return fmt.Errorf("transmit %s: %w", h.Type(), err)
	}
	e.bus.TryPublish(events.TopicFrameOut, events.Frame{
		Type:      h.Type(),
		SeqNum:    h.SeqNum,
		SessionID: h.SessionID,
		Len:       len(frame),
	})
	e.logger.Debug("frame sent", "type", h.Type().String(), "seq", h.SeqNum, "len", len(frame))
	return nil
}

// SendStart announces the transfer. Returns the sequence number used, so
// the caller can match the corresponding ack.
func (e *Engine) SendStart(ctx context.Context, totalFrags uint16, codec protocol.CodecID, sampleHz, durationMs uint16, totalSize uint32) (uint16, error) {
	h := e.nextHeader(protocol.TypeAudioStart)
	p := protocol.AudioStart{
		TotalFrags: totalFrags,
		CodecID:    codec,
		SampleHz:   sampleHz,
		DurationMs: durationMs,
		TotalSize:  totalSize,
	}.Seal()
	return h.SeqNum, e.transmit(ctx, h, p)
}

// SendData frames one fragment. Fragment ordering on the receiving end
// is implicit in delivery order; the header's sequence number counts
// transmissions, not fragments.
func (e *Engine) SendData(ctx context.Context, data []byte) (uint16, error) {
	if len(data) > protocol.MaxDataPayload {
		return 0, protocol.ErrPayloadTooLarge
	}
	h := e.nextHeader(protocol.TypeAudioData)
	return h.SeqNum, e.transmit(ctx, h, protocol.AudioData{Data: data})
}

// SendEnd closes the transfer with the claimed fragment count and the
// checksum of the full original payload.
func (e *Engine) SendEnd(ctx context.Context, fragCount uint16, fullChecksum uint32) (uint16, error) {
	h := e.nextHeader(protocol.TypeAudioEnd)
	return h.SeqNum, e.transmit(ctx, h, protocol.AudioEnd{FragCount: fragCount, CRC32: fullChecksum})
}

// WaitForAck blocks until one frame arrives or timeout elapses. It
// fails on timeout, short frames, non-ACK types, a sequence number
// other than expectedSeq, or a non-OK status. On success it returns the
// channel's signal report for the ack.
func (e *Engine) WaitForAck(ctx context.Context, expectedSeq uint16, timeout time.Duration) (channel.SignalReport, error) {
	frame, sig, err := e.ch.Receive(ctx, timeout)
	if err != nil {
		return channel.SignalReport{}, fmt.Errorf("wait for ack: %w", err)
	}
	if len(frame) < protocol.HeaderSize+protocol.AckSize {
		return channel.SignalReport{}, fmt.Errorf("wait for ack: %w", protocol.ErrShortBuffer)
	}

	h, err := protocol.DecodeHeader(frame)
	if err != nil {
		return channel.SignalReport{}, fmt.Errorf("wait for ack: %w", err)
	}
	if h.Type() != protocol.TypeAck {
		return channel.SignalReport{}, fmt.Errorf("%w, got %s", ErrUnexpectedType, h.Type())
	}

	p, err := protocol.DecodePayload(protocol.TypeAck, frame[protocol.HeaderSize:])
	if err != nil {
		return channel.SignalReport{}, fmt.Errorf("wait for ack: %w", err)
	}
	ack := p.(protocol.Ack)

	e.bus.TryPublish(events.TopicFrameIn, events.Frame{
		Type:      h.Type(),
		SeqNum:    h.SeqNum,
		SessionID: h.SessionID,
		Len:       len(frame),
		Signal:    sig,
	})

	if ack.AckSeq != expectedSeq {
		return channel.SignalReport{}, fmt.Errorf("%w: got %d, expected %d", ErrSeqMismatch, ack.AckSeq, expectedSeq)
	}
	if ack.Status != protocol.AckOK {
		return channel.SignalReport{}, &AckError{Status: ack.Status}
	}

	e.logger.Debug("ack received", "seq", ack.AckSeq, "rssi", sig.RSSI, "snr", sig.SNR)
	return sig, nil
}
