// The receiver daemon polls the serial LoRa modem, reassembles incoming
// audio transfers and writes each verified payload to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/skobkin/loracast/internal/bus"
	"github.com/skobkin/loracast/internal/channel"
	"github.com/skobkin/loracast/internal/config"
	"github.com/skobkin/loracast/internal/domain"
	"github.com/skobkin/loracast/internal/logging"
	"github.com/skobkin/loracast/internal/metrics"
	"github.com/skobkin/loracast/internal/protocol"
	"github.com/skobkin/loracast/internal/receiver"
	"github.com/skobkin/loracast/internal/status"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run receiver", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "loracast.toml", "config file path")
	outDir := flag.String("out", ".", "directory for received audio payloads")
	port := flag.String("port", "", "serial port override")
	flag.Parse()

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
	logger := logMgr.Logger("receiver")

	if err := os.MkdirAll(*outDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var rec metrics.Sink
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
		rec = store
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

	sink := &fileSink{logger: logger, dir: *outDir}
	engine := receiver.NewEngine(logger, b, ch, sink, rec, cfg)
	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		return err
	}

	return nil
}

// fileSink writes each completed payload under the output directory,
// named by timestamp and codec.
type fileSink struct {
	logger *slog.Logger
	dir    string
}

func (s *fileSink) OnComplete(clip domain.AudioClip) {
	ext := "pcm"
	if clip.Codec == protocol.CodecCompressed {
		ext = "bin"
	}
	name := fmt.Sprintf("audio_%s.%s", time.Now().Format("20060102_150405"), ext)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, clip.Data, 0o600); err != nil {
		s.logger.Error("write received audio", "path", path, "error", err)
		return
	}
	s.logger.Info("audio payload saved",
		"path", path,
		"bytes", len(clip.Data),
		"sample_hz", clip.SampleHz,
		"duration_ms", clip.DurationMs,
	)
}
