// Package status is the node's human-facing status line: it watches the
// event bus and reports link state, transfer progress and frame counters
// through the log.
package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skobkin/loracast/internal/bus"
	"github.com/skobkin/loracast/internal/domain"
	"github.com/skobkin/loracast/internal/events"
)

type Reporter struct {
	logger *slog.Logger
	bus    bus.MessageBus

	txCount uint64
	rxCount uint64
	state   events.LinkState
}

func NewReporter(logger *slog.Logger, b bus.MessageBus) *Reporter {
	return &Reporter{
		logger: logger,
		bus:    b,
		state:  events.LinkIdle,
	}
}

// Start subscribes and reports until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	connSub := r.bus.Subscribe(events.TopicConnStatus)
	outSub := r.bus.Subscribe(events.TopicFrameOut)
	inSub := r.bus.Subscribe(events.TopicFrameIn)
	progressSub := r.bus.Subscribe(events.TopicTransferProgress)
	doneSub := r.bus.Subscribe(events.TopicTransferDone)

	go func() {
		defer func() {
			r.bus.Unsubscribe(connSub, events.TopicConnStatus)
			r.bus.Unsubscribe(outSub, events.TopicFrameOut)
			r.bus.Unsubscribe(inSub, events.TopicFrameIn)
			r.bus.Unsubscribe(progressSub, events.TopicTransferProgress)
			r.bus.Unsubscribe(doneSub, events.TopicTransferDone)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case raw := <-connSub:
				status, ok := raw.(events.ConnStatus)
				if !ok {
					continue
				}
				if status.State != r.state {
					r.state = status.State
					r.logger.Info("link state", "state", status.State, "error", status.Err)
				}
			case raw := <-outSub:
				if _, ok := raw.(events.Frame); ok {
					r.txCount++
				}
			case raw := <-inSub:
				frame, ok := raw.(events.Frame)
				if !ok {
					continue
				}
				r.rxCount++
				quality := domain.DetermineSignalQuality(frame.Signal.SNR, frame.Signal.RSSI)
				if quality == domain.SignalBad {
					r.logger.Warn("weak signal", "rssi", frame.Signal.RSSI, "snr", frame.Signal.SNR)
				}
			case raw := <-progressSub:
				progress, ok := raw.(events.TransferProgress)
				if !ok {
					continue
				}
				r.logger.Info("transfer progress",
					"session_id", fmt.Sprintf("0x%04X", progress.SessionID),
					"fragment", progress.Fragment,
					"total", progress.Total,
				)
			case raw := <-doneSub:
				done, ok := raw.(events.TransferDone)
				if !ok {
					continue
				}
				r.logger.Info("transfer finished",
					"session_id", fmt.Sprintf("0x%04X", done.SessionID),
					"outcome", done.Outcome,
					"bytes", done.Bytes,
					"fragments", done.Fragments,
					"duration", done.FinishedAt.Sub(done.StartedAt),
					"tx_frames", r.txCount,
					"rx_frames", r.rxCount,
				)
			}
		}
	}()
}
