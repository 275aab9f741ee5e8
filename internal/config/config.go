// Package config is the persisted node configuration: identity, radio
// parameters, serial link, protocol timing and capacity bounds, logging
// and metrics storage.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultSerialBaud = 115200
	// DefaultMaxFragments bounds the receiver's reassembly session. A
	// start packet declaring more fragments is rejected, not truncated.
	DefaultMaxFragments = 256
)

// NodeConfig identifies this node and its peer on the link.
type NodeConfig struct {
	ID           uint8 `toml:"id"`
	PeerID       uint8 `toml:"peer_id"`
	ExperimentID uint8 `toml:"experiment_id"`
}

// RadioConfig carries the RF parameters echoed in every frame header.
// The modem itself is configured out of band; the protocol only reports
// these values to the other end.
type RadioConfig struct {
	TxPowerDBm      uint8 `toml:"tx_power_dbm"`
	SpreadingFactor uint8 `toml:"spreading_factor"`
	CodingRate      uint8 `toml:"coding_rate"`
}

// LinkConfig describes the serial connection to the modem.
type LinkConfig struct {
	SerialPort string `toml:"serial_port"`
	SerialBaud int    `toml:"serial_baud"`
}

// ProtocolConfig holds timing and capacity knobs for the engines.
type ProtocolConfig struct {
	AckTimeoutMs      int `toml:"ack_timeout_ms"`
	PollTimeoutMs     int `toml:"poll_timeout_ms"`
	FragmentSpacingMs int `toml:"fragment_spacing_ms"`
	MaxFragments      int `toml:"max_fragments"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level   string `toml:"level"`
	LogFile string `toml:"log_file"`
}

// MetricsConfig points at the transfer-log database. An empty path
// disables metrics persistence.
type MetricsConfig struct {
	DBPath string `toml:"db_path"`
}

// AppConfig is the root persisted node configuration.
type AppConfig struct {
	Node     NodeConfig     `toml:"node"`
	Radio    RadioConfig    `toml:"radio"`
	Link     LinkConfig     `toml:"link"`
	Protocol ProtocolConfig `toml:"protocol"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

func Default() AppConfig {
	return AppConfig{
		Node: NodeConfig{
			ID:           0x01,
			PeerID:       0x02,
			ExperimentID: 0x01,
		},
		Radio: RadioConfig{
			TxPowerDBm:      14,
			SpreadingFactor: 7,
			CodingRate:      5,
		},
		Link: LinkConfig{
			SerialPort: "",
			SerialBaud: DefaultSerialBaud,
		},
		Protocol: ProtocolConfig{
			AckTimeoutMs:      2000,
			PollTimeoutMs:     500,
			FragmentSpacingMs: 50,
			MaxFragments:      DefaultMaxFragments,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Metrics: MetricsConfig{
			DBPath: "loracast.db",
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	if _, err := os.Stat(cleanPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("stat config: %w", err)
	}

	if _, err := toml.DecodeFile(cleanPath, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config toml: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Link.SerialBaud <= 0 {
		c.Link.SerialBaud = DefaultSerialBaud
	}
	if c.Protocol.AckTimeoutMs <= 0 {
		c.Protocol.AckTimeoutMs = 2000
	}
	if c.Protocol.PollTimeoutMs <= 0 {
		c.Protocol.PollTimeoutMs = 500
	}
	if c.Protocol.FragmentSpacingMs < 0 {
		c.Protocol.FragmentSpacingMs = 0
	}
	if c.Protocol.MaxFragments <= 0 {
		c.Protocol.MaxFragments = DefaultMaxFragments
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c AppConfig) Validate() error {
	if c.Node.ID == c.Node.PeerID {
		return errors.New("node id and peer id must differ")
	}
	if strings.TrimSpace(c.Link.SerialPort) == "" {
		return errors.New("serial port is required")
	}
	if c.Link.SerialBaud <= 0 {
		return errors.New("serial baud must be positive")
	}
	if c.Radio.SpreadingFactor < 5 || c.Radio.SpreadingFactor > 12 {
		return fmt.Errorf("spreading factor out of range: %d", c.Radio.SpreadingFactor)
	}
	if c.Radio.CodingRate < 5 || c.Radio.CodingRate > 8 {
		return fmt.Errorf("coding rate out of range: %d", c.Radio.CodingRate)
	}
	if c.Protocol.MaxFragments <= 0 || c.Protocol.MaxFragments > 0xFFFF {
		return fmt.Errorf("max fragments out of range: %d", c.Protocol.MaxFragments)
	}

	return nil
}

// Save writes the config atomically (tmp file + rename).
func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
