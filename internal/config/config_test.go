package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loracast.toml")

	cfg := Default()
	cfg.Node.ID = 0x0A
	cfg.Node.PeerID = 0x0B
	cfg.Link.SerialPort = "/dev/ttyUSB0"
	cfg.Radio.SpreadingFactor = 9
	cfg.Protocol.MaxFragments = 512
	cfg.Metrics.DBPath = "telemetry.db"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != cfg {
		t.Fatalf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", cfg, loaded)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	raw := "[node]\nid = 5\npeer_id = 6\n\n[link]\nserial_port = \"/dev/ttyACM0\"\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.ID != 5 || cfg.Node.PeerID != 6 {
		t.Fatalf("node section not applied: %+v", cfg.Node)
	}
	if cfg.Link.SerialPort != "/dev/ttyACM0" {
		t.Fatalf("serial port not applied: %q", cfg.Link.SerialPort)
	}
	if cfg.Link.SerialBaud != DefaultSerialBaud {
		t.Fatalf("expected default serial baud %d, got %d", DefaultSerialBaud, cfg.Link.SerialBaud)
	}
	if cfg.Protocol.AckTimeoutMs != 2000 || cfg.Protocol.MaxFragments != DefaultMaxFragments {
		t.Fatalf("protocol defaults missing: %+v", cfg.Protocol)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestAppConfigFillMissingDefaults(t *testing.T) {
	cfg := AppConfig{}
	cfg.FillMissingDefaults()

	if cfg.Link.SerialBaud != DefaultSerialBaud {
		t.Fatalf("expected default serial baud %d, got %d", DefaultSerialBaud, cfg.Link.SerialBaud)
	}
	if cfg.Protocol.AckTimeoutMs != 2000 {
		t.Fatalf("expected default ack timeout, got %d", cfg.Protocol.AckTimeoutMs)
	}
	if cfg.Protocol.PollTimeoutMs != 500 {
		t.Fatalf("expected default poll timeout, got %d", cfg.Protocol.PollTimeoutMs)
	}
	if cfg.Protocol.MaxFragments != DefaultMaxFragments {
		t.Fatalf("expected default max fragments, got %d", cfg.Protocol.MaxFragments)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestAppConfigValidate(t *testing.T) {
	valid := Default()
	valid.Link.SerialPort = "/dev/ttyUSB0"

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", func(*AppConfig) {}, false},
		{"same node and peer id", func(c *AppConfig) { c.Node.PeerID = c.Node.ID }, true},
		{"blank serial port", func(c *AppConfig) { c.Link.SerialPort = " " }, true},
		{"non-positive baud", func(c *AppConfig) { c.Link.SerialBaud = 0 }, true},
		{"spreading factor too low", func(c *AppConfig) { c.Radio.SpreadingFactor = 4 }, true},
		{"spreading factor too high", func(c *AppConfig) { c.Radio.SpreadingFactor = 13 }, true},
		{"coding rate too low", func(c *AppConfig) { c.Radio.CodingRate = 4 }, true},
		{"coding rate too high", func(c *AppConfig) { c.Radio.CodingRate = 9 }, true},
		{"max fragments zero", func(c *AppConfig) { c.Protocol.MaxFragments = 0 }, true},
		{"max fragments above uint16", func(c *AppConfig) { c.Protocol.MaxFragments = 0x10000 }, true},
	}

	for _, tc := range tests {
		cfg := valid
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: expected no error, got %v", tc.name, err)
		}
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	cfg := Default() // serial port empty
	if err := Save(path, cfg); err == nil {
		t.Fatal("expected Save to refuse an invalid config")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("invalid config must not be written")
	}
}
