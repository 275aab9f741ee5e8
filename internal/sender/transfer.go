package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skobkin/loracast/internal/channel"
	"github.com/skobkin/loracast/internal/domain"
	"github.com/skobkin/loracast/internal/events"
	"github.com/skobkin/loracast/internal/metrics"
	"github.com/skobkin/loracast/internal/protocol"
)

// Transfer runs one complete session: START, every data fragment with
// the configured spacing, then END, waiting for the peer's ack after
// each frame. A single pass, no retries: the first failed step aborts
// the transfer.
func (e *Engine) Transfer(ctx context.Context, clip domain.AudioClip, sink metrics.Sink) error {
	e.BeginSession()
	startedAt := time.Now()

	totalFrags := protocol.TotalFragments(clip.Size())
	e.logger.Info("transfer starting",
		"session_id", fmt.Sprintf("0x%04X", e.sessionID),
		"bytes", clip.Size(),
		"fragments", totalFrags,
	)
	e.publishConnStatus(events.LinkTransmitting, nil)

	err := e.runTransfer(ctx, clip, totalFrags, sink)

	outcome := events.OutcomeOK
	if err != nil {
		outcome = outcomeForError(err)
		e.publishConnStatus(events.LinkFail, err)
	} else {
		e.publishConnStatus(events.LinkIdle, nil)
	}
	e.bus.Publish(events.TopicTransferDone, events.TransferDone{
		SessionID:  e.sessionID,
		Outcome:    outcome,
		Bytes:      clip.Size(),
		Fragments:  totalFrags,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	})
	return err
}

func (e *Engine) runTransfer(ctx context.Context, clip domain.AudioClip, totalFrags uint16, sink metrics.Sink) error {
	seq, err := e.SendStart(ctx, totalFrags, clip.Codec, clip.SampleHz, clip.DurationMs, clip.Size())
	if err != nil {
		return fmt.Errorf("send start: %w", err)
	}
	txAt := time.Now()
	sig, err := e.WaitForAck(ctx, seq, e.ackTimeout)
	if err != nil {
		return fmt.Errorf("start not acknowledged: %w", err)
	}
	e.recordRoundTrip(ctx, sink, seq, txAt, sig)

	// The payload checksum accumulates per fragment; the concatenation of
	// the chunks is the original payload, so the sum is bit-identical to
	// a one-pass CRC-32 over clip.Data.
	var digest protocol.Digest32

	data := clip.Data
	for frag := uint16(0); frag < totalFrags; frag++ {
		if frag > 0 && e.fragmentSpacing > 0 {
			if !sleepWithContext(ctx, e.fragmentSpacing) {
				return ctx.Err()
			}
		}

		chunk := data
		if len(chunk) > protocol.MaxDataPayload {
			chunk = chunk[:protocol.MaxDataPayload]
		}
		data = data[len(chunk):]

		seq, err := e.SendData(ctx, chunk)
		if err != nil {
			return fmt.Errorf("send fragment %d: %w", frag, err)
		}
		digest.Write(chunk)
		txAt := time.Now()
		sig, err := e.WaitForAck(ctx, seq, e.ackTimeout)
		if err != nil {
			return fmt.Errorf("fragment %d not acknowledged: %w", frag, err)
		}
		e.recordRoundTrip(ctx, sink, seq, txAt, sig)
		e.bus.Publish(events.TopicTransferProgress, events.TransferProgress{
			SessionID: e.sessionID,
			Fragment:  frag + 1,
			Total:     totalFrags,
		})
	}

	seq, err = e.SendEnd(ctx, totalFrags, digest.Sum())
	if err != nil {
		return fmt.Errorf("send end: %w", err)
	}
	txAt = time.Now()
	sig, err = e.WaitForAck(ctx, seq, e.ackTimeout)
	if err != nil {
		return fmt.Errorf("end not acknowledged: %w", err)
	}
	e.recordRoundTrip(ctx, sink, seq, txAt, sig)

	e.logger.Info("transfer complete", "session_id", fmt.Sprintf("0x%04X", e.sessionID))
	return nil
}

// recordRoundTrip reports one acknowledged exchange to the metrics sink.
// Reporting failures are logged and swallowed; metrics never break the
// protocol.
func (e *Engine) recordRoundTrip(ctx context.Context, sink metrics.Sink, seq uint16, txAt time.Time, sig channel.SignalReport) {
	if sink == nil {
		return
	}
	rt := metrics.RoundTrip{
		SessionID: e.sessionID,
		SeqNum:    seq,
		TxAt:      txAt,
		AckAt:     time.Now(),
		RSSI:      sig.RSSI,
		SNR:       sig.SNR,
	}
	if err := sink.RecordRoundTrip(ctx, rt); err != nil {
		e.logger.Warn("metrics record failed", "error", err)
	}
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

func outcomeForError(err error) events.TransferOutcome {
	var ackErr *AckError
	if errors.As(err, &ackErr) {
		switch ackErr.Status {
		case protocol.AckChecksumError:
			return events.OutcomeChecksumError
		case protocol.AckFragmentsMissing:
			return events.OutcomeFragmentsMissing
		}
	}
	return events.OutcomeAborted
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
