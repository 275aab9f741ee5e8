// The sender daemon loads an audio payload from disk and pushes it to
// the peer node over the serial LoRa modem, one fragment at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skobkin/loracast/internal/bus"
	"github.com/skobkin/loracast/internal/channel"
	"github.com/skobkin/loracast/internal/config"
	"github.com/skobkin/loracast/internal/domain"
	"github.com/skobkin/loracast/internal/logging"
	"github.com/skobkin/loracast/internal/metrics"
	"github.com/skobkin/loracast/internal/protocol"
	"github.com/skobkin/loracast/internal/sender"
	"github.com/skobkin/loracast/internal/status"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run sender", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "loracast.toml", "config file path")
	audioPath := flag.String("file", "", "audio payload to send")
	port := flag.String("port", "", "serial port override")
	codecName := flag.String("codec", "pcm", "audio codec: pcm or compressed")
	sampleHz := flag.Uint("sample-hz", 8000, "original sample rate in Hz")
	durationMs := flag.Uint("duration-ms", 0, "audio duration in milliseconds")
	flag.Parse()

	if strings.TrimSpace(*audioPath) == "" {
		return fmt.Errorf("missing audio payload: set --file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(*port) != "" {
		cfg.Link.SerialPort = strings.TrimSpace(*port)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("sender")

	codec, err := parseCodec(*codecName)
	if err != nil {
		return err
	}
	sampleRate, duration, err := clipParams(*sampleHz, *durationMs)
	if err != nil {
		return err
	}

	// The payload is opaque to the protocol; metadata travels in the
	// start packet.
	data, err := os.ReadFile(*audioPath)
	if err != nil {
		return fmt.Errorf("read audio payload: %w", err)
	}
	clip := domain.AudioClip{
		Data:       data,
		Codec:      codec,
		SampleHz:   sampleRate,
		DurationMs: duration,
	}

	var sink metrics.Sink
	if cfg.Metrics.DBPath != "" {
		store, err := metrics.Open(ctx, cfg.Metrics.DBPath)
		if err != nil {
			return fmt.Errorf("open metrics store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Warn("close metrics store", "error", closeErr)
			}
		}()
		sink = store
	}

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()
	status.NewReporter(logMgr.Logger("status"), b).Start(ctx)

	ch := channel.NewSerialChannel(cfg.Link.SerialPort, cfg.Link.SerialBaud)
	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("connect channel: %w", err)
	}
	defer func() {
		if closeErr := ch.Close(); closeErr != nil {
			logger.Warn("close channel", "error", closeErr)
		}
	}()

	engine := sender.NewEngine(logger, b, ch, cfg)
	logger.Info("sending audio payload",
		"file", *audioPath,
		"bytes", len(data),
		"fragments", protocol.TotalFragments(uint32(len(data))),
	)
	if err := engine.Transfer(ctx, clip, sink); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	return nil
}

// clipParams narrows the flag values to their wire widths, rejecting
// anything that would silently truncate.
func clipParams(sampleHz, durationMs uint) (uint16, uint16, error) {
	if sampleHz > math.MaxUint16 {
		return 0, 0, fmt.Errorf("sample rate out of range: %d (max %d)", sampleHz, math.MaxUint16)
	}
	if durationMs > math.MaxUint16 {
		return 0, 0, fmt.Errorf("duration out of range: %d ms (max %d)", durationMs, math.MaxUint16)
	}
	return uint16(sampleHz), uint16(durationMs), nil
}

func parseCodec(name string) (protocol.CodecID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pcm", "raw":
		return protocol.CodecRawPCM, nil
	case "compressed":
		return protocol.CodecCompressed, nil
	default:
		return 0, fmt.Errorf("unknown codec: %q", name)
	}
}
