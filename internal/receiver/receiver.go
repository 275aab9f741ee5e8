// Package receiver is the reassembly side of the transfer protocol: a
// two-state session machine that classifies incoming frames, accumulates
// data fragments, validates completeness and integrity, and answers with
// acks.
//
// Known protocol limitation, preserved deliberately: fragments are
// identified by arrival order, not by an index field, and the header's
// sequence number is a per-node transmission counter. Reordered or
// duplicated delivery is therefore undetected, and there is no
// retransmission. Slot assignment is isolated behind the session's
// received counter so an explicit index could be added later without
// touching the rest of the machine.
package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/loracast/internal/bus"
	"github.com/skobkin/loracast/internal/channel"
	"github.com/skobkin/loracast/internal/config"
	"github.com/skobkin/loracast/internal/domain"
	"github.com/skobkin/loracast/internal/events"
	"github.com/skobkin/loracast/internal/metrics"
	"github.com/skobkin/loracast/internal/protocol"
)

// State is the session machine's current mode.
type State int

const (
	StateIdle State = iota
	StateReceiving
)

func (s State) String() string {
	if s == StateReceiving {
		return "receiving"
	}
	return "idle"
}

// AudioSink consumes a completed, verified audio payload.
type AudioSink interface {
	OnComplete(clip domain.AudioClip)
}

// session is the receiver's one mutable transfer record. It is reset on
// every valid AUDIO_START and consumed on AUDIO_END.
type session struct {
	state         State
	sessionID     uint16
	expectedFrags uint16
	received      uint16 // next arrival-order slot
	receivedBytes uint32
	markers       []bool
	buffer        []byte

	codec      protocol.CodecID
	sampleHz   uint16
	durationMs uint16
	totalSize  uint32
	startedAt  time.Time
}

// Engine owns the receiver role of one node. Not safe for concurrent
// use: one frame is processed to completion before the next.
type Engine struct {
	logger *slog.Logger
	bus    bus.MessageBus
	ch     channel.Channel
	sink   AudioSink
	rec    metrics.Sink

	node  config.NodeConfig
	radio config.RadioConfig

	pollTimeout  time.Duration
	maxFragments int

	sess session
	seq  uint16 // outgoing ack counter
}

func NewEngine(logger *slog.Logger, b bus.MessageBus, ch channel.Channel, sink AudioSink, rec metrics.Sink, cfg config.AppConfig) *Engine {
	maxFrags := cfg.Protocol.MaxFragments
	if maxFrags <= 0 {
		maxFrags = config.DefaultMaxFragments
	}
	return &Engine{
		logger:       logger,
		bus:          b,
		ch:           ch,
		sink:         sink,
		rec:          rec,
		node:         cfg.Node,
		radio:        cfg.Radio,
		pollTimeout:  time.Duration(cfg.Protocol.PollTimeoutMs) * time.Millisecond,
		maxFragments: maxFrags,
		sess: session{
			markers: make([]bool, maxFrags),
			buffer:  make([]byte, maxFrags*protocol.MaxDataPayload),
		},
	}
}

// State returns the current session state.
func (e *Engine) State() State {
	return e.sess.state
}

// Run polls the channel until ctx is cancelled. A receive timeout means
// nothing arrived this cycle and is not an error.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("receiver listening", "node_id", e.node.ID)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, sig, err := e.ch.Receive(ctx, e.pollTimeout)
		if err != nil {
			if err == channel.ErrTimeout {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("receive failed", "error", err)
			continue
		}

		e.HandleFrame(ctx, frame, sig)
	}
}

// HandleFrame feeds one incoming frame through the state machine.
// Malformed or misaddressed frames are dropped without a reply.
func (e *Engine) HandleFrame(ctx context.Context, frame []byte, sig channel.SignalReport) {
	h, err := protocol.DecodeHeader(frame)
	if err != nil {
		e.logger.Debug("dropping short frame", "len", len(frame))
		return
	}
	if h.Dst != e.node.ID {
		// Not for us; stay silent.
		return
	}

	e.bus.TryPublish(events.TopicFrameIn, events.Frame{
		Type:      h.Type(),
		SeqNum:    h.SeqNum,
		SessionID: h.SessionID,
		Len:       len(frame),
		Signal:    sig,
	})

	payload := frame[protocol.HeaderSize:]
	switch h.Type() {
	case protocol.TypeAudioStart:
		e.handleStart(ctx, h, payload)
	case protocol.TypeAudioData:
		e.handleData(ctx, h, payload)
	case protocol.TypeAudioEnd:
		e.handleEnd(ctx, h, payload)
	case protocol.TypeAck:
		// Sender-role traffic; nothing for the receiver to do.
	default:
		e.logger.Debug("dropping unknown packet type", "ver_type", h.VerType)
	}
}

func (e *Engine) handleStart(ctx context.Context, h protocol.Header, payload []byte) {
	p, err := protocol.DecodePayload(protocol.TypeAudioStart, payload)
	if err != nil {
		e.logger.Debug("dropping short audio start", "len", len(payload))
		return
	}
	start := p.(protocol.AudioStart)

	if !start.VerifyCRC16() {
		e.logger.Warn("audio start checksum mismatch",
			"session_id", fmt.Sprintf("0x%04X", h.SessionID),
			"got", fmt.Sprintf("0x%04X", start.CRC16),
		)
		e.sendAck(ctx, h, protocol.AckChecksumError)
		e.resetToIdle()
		return
	}
	if int(start.TotalFrags) > e.maxFragments {
		e.logger.Warn("audio start exceeds fragment capacity",
			"total_frags", start.TotalFrags,
			"capacity", e.maxFragments,
		)
		e.sendAck(ctx, h, protocol.AckFragmentsMissing)
		return
	}

	// A new start unconditionally supersedes any in-progress session.
	if e.sess.state == StateReceiving {
		e.logger.Info("session superseded",
			"old_session", fmt.Sprintf("0x%04X", e.sess.sessionID),
			"new_session", fmt.Sprintf("0x%04X", h.SessionID),
		)
	}
	e.resetToIdle()
	e.sess.state = StateReceiving
	e.sess.sessionID = h.SessionID
	e.sess.expectedFrags = start.TotalFrags
	e.sess.codec = start.CodecID
	e.sess.sampleHz = start.SampleHz
	e.sess.durationMs = start.DurationMs
	e.sess.totalSize = start.TotalSize
	e.sess.startedAt = time.Now()

	e.logger.Info("session started",
		"session_id", fmt.Sprintf("0x%04X", h.SessionID),
		"total_frags", start.TotalFrags,
		"total_size", start.TotalSize,
		"codec", start.CodecID,
	)
	e.publishConnStatus(events.LinkReceiving, nil)
	e.sendAck(ctx, h, protocol.AckOK)
}

func (e *Engine) handleData(ctx context.Context, h protocol.Header, payload []byte) {
	if e.sess.state != StateReceiving {
		e.logger.Debug("dropping data frame without session", "seq", h.SeqNum)
		return
	}
	if len(payload) > protocol.MaxDataPayload {
		e.logger.Debug("dropping oversized data frame", "len", len(payload))
		return
	}
	if int(e.sess.received) >= e.maxFragments {
		// Overflow guard: no slot left, no ack either.
		e.logger.Warn("dropping fragment beyond capacity", "seq", h.SeqNum)
		return
	}

	offset := int(e.sess.received) * protocol.MaxDataPayload
	copy(e.sess.buffer[offset:], payload)
	e.sess.markers[e.sess.received] = true
	e.sess.receivedBytes += uint32(len(payload))
	e.sess.received++

	e.logger.Debug("fragment stored",
		"slot", e.sess.received-1,
		"len", len(payload),
		"bytes_total", e.sess.receivedBytes,
	)
	e.bus.Publish(events.TopicTransferProgress, events.TransferProgress{
		SessionID: e.sess.sessionID,
		Fragment:  e.sess.received,
		Total:     e.sess.expectedFrags,
	})
	e.sendAck(ctx, h, protocol.AckOK)
}

func (e *Engine) handleEnd(ctx context.Context, h protocol.Header, payload []byte) {
	if e.sess.state != StateReceiving {
		e.logger.Debug("dropping end frame without session", "seq", h.SeqNum)
		return
	}
	p, err := protocol.DecodePayload(protocol.TypeAudioEnd, payload)
	if err != nil {
		e.logger.Debug("dropping short audio end", "len", len(payload))
		return
	}
	end := p.(protocol.AudioEnd)

	missing := 0
	for i := uint16(0); i < e.sess.expectedFrags; i++ {
		if !e.sess.markers[i] {
			missing++
		}
	}
	if missing > 0 {
		e.logger.Warn("session incomplete",
			"session_id", fmt.Sprintf("0x%04X", e.sess.sessionID),
			"missing", missing,
			"expected", e.sess.expectedFrags,
		)
		e.sendAck(ctx, h, protocol.AckFragmentsMissing)
		e.finishSession(ctx, events.OutcomeFragmentsMissing)
		return
	}

	// The checksum covers the buffer exactly as it will be delivered.
	// Fragments land at fixed 245-byte slots, so a short non-final
	// fragment leaves a gap here and the comparison fails.
	got := protocol.Checksum32(e.sess.buffer[:e.sess.receivedBytes])
	if got != end.CRC32 {
		e.logger.Warn("payload checksum mismatch",
			"session_id", fmt.Sprintf("0x%04X", e.sess.sessionID),
			"got", fmt.Sprintf("0x%08X", got),
			"want", fmt.Sprintf("0x%08X", end.CRC32),
		)
		e.sendAck(ctx, h, protocol.AckChecksumError)
		e.finishSession(ctx, events.OutcomeChecksumError)
		return
	}

	e.sendAck(ctx, h, protocol.AckOK)

	data := make([]byte, e.sess.receivedBytes)
	copy(data, e.sess.buffer[:e.sess.receivedBytes])
	clip := domain.AudioClip{
		Data:       data,
		Codec:      e.sess.codec,
		SampleHz:   e.sess.sampleHz,
		DurationMs: e.sess.durationMs,
	}

	e.logger.Info("transfer complete",
		"session_id", fmt.Sprintf("0x%04X", e.sess.sessionID),
		"bytes", e.sess.receivedBytes,
		"fragments", e.sess.received,
	)
	e.finishSession(ctx, events.OutcomeOK)

	if e.sink != nil {
		e.sink.OnComplete(clip)
	}
}

// finishSession records the outcome, publishes it, and returns to idle.
func (e *Engine) finishSession(ctx context.Context, outcome events.TransferOutcome) {
	done := events.TransferDone{
		SessionID:  e.sess.sessionID,
		Outcome:    outcome,
		Bytes:      e.sess.receivedBytes,
		Fragments:  e.sess.received,
		StartedAt:  e.sess.startedAt,
		FinishedAt: time.Now(),
	}
	e.bus.Publish(events.TopicTransferDone, done)
	if e.rec != nil {
		tr := metrics.Transfer{
			SessionID:  done.SessionID,
			Bytes:      done.Bytes,
			Fragments:  done.Fragments,
			Outcome:    string(done.Outcome),
			StartedAt:  done.StartedAt,
			FinishedAt: done.FinishedAt,
		}
		if err := e.rec.RecordTransfer(ctx, tr); err != nil {
			e.logger.Warn("metrics record failed", "error", err)
		}
	}
	e.resetToIdle()
	e.publishConnStatus(events.LinkIdle, nil)
}

// resetToIdle clears the session without touching the allocated buffers.
func (e *Engine) resetToIdle() {
	for i := range e.sess.markers {
		e.sess.markers[i] = false
	}
	e.sess.state = StateIdle
	e.sess.sessionID = 0
	e.sess.expectedFrags = 0
	e.sess.received = 0
	e.sess.receivedBytes = 0
	e.sess.codec = 0
	e.sess.sampleHz = 0
	e.sess.durationMs = 0
	e.sess.totalSize = 0
	e.sess.startedAt = time.Time{}
}

// sendAck answers the triggering frame: src/dst swapped, session id
// echoed, the receiver's own sequence counter in the header.
func (e *Engine) sendAck(ctx context.Context, in protocol.Header, status protocol.AckStatus) {
	h := protocol.Header{
		VerType:   protocol.MakeVerType(protocol.ProtocolVersion, protocol.TypeAck),
		Src:       e.node.ID,
		Dst:       in.Src,
		ExpID:     e.node.ExperimentID,
		SessionID: in.SessionID,
		SeqNum:    e.seq,
		TxPower:   e.radio.TxPowerDBm,
		SFCR:      protocol.MakeSFCR(e.radio.SpreadingFactor, e.radio.CodingRate),
	}
	e.seq++

	frame, err := protocol.EncodeFrame(h, protocol.Ack{AckSeq: in.SeqNum, Status: status})
	if err != nil {
		e.logger.Error("encode ack failed", "error", err)
		return
	}
	if err := e.ch.Transmit(ctx, frame); err != nil {
		e.logger.Warn("ack transmit failed", "seq", in.SeqNum, "error", err)
		return
	}
	e.bus.TryPublish(events.TopicFrameOut, events.Frame{
		Type:      protocol.TypeAck,
		SeqNum:    h.SeqNum,
		SessionID: h.SessionID,
		Len:       len(frame),
	})
	e.logger.Debug("ack sent", "ack_seq", in.SeqNum, "status", status.String())
}

func (e *Engine) publishConnStatus(state events.LinkState, err error) {
	status := events.ConnStatus{
		State:     state,
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	e.bus.Publish(events.TopicConnStatus, status)
}
