// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config handles loading the static, file-based configuration for
// one stack instance: the link transports it opens, their addressing, and
// the logging surface.
package config

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/protoserial/stack/internal/bo"
	"github.com/protoserial/stack/link"
)

// LinkConfig is the decoded, file-facing shape of one link.Options. Field
// names mirror link.Options rather than the library's constructor
// options, since this is what operators write in YAML.
type LinkConfig struct {
	Name             string `mapstructure:"name"`
	Kind             string `mapstructure:"kind"` // uart | rs485 | usb_cdc | loopback | virtual
	Instance         string `mapstructure:"instance"`
	LocalAddress     byte   `mapstructure:"local_address"`
	BroadcastAddress byte   `mapstructure:"broadcast_address"`

	MaxQueueSize    int `mapstructure:"max_queue_size"`
	MaxFragmentSize int `mapstructure:"max_fragment_size"`
	RxBufferSize    int `mapstructure:"rx_buffer_size"`

	TxRate float64 `mapstructure:"tx_rate"`
	RxRate float64 `mapstructure:"rx_rate"`

	Footer       string `mapstructure:"footer"` // crc16 | crc32
	ByteOrder    string `mapstructure:"byte_order"` // big | little | native
	PreambleByte byte   `mapstructure:"preamble_byte"`
	PreambleLen  int    `mapstructure:"preamble_len"`
}

// LogConfig configures the structured logger. See config.NewLogger.
type LogConfig struct {
	Level string `mapstructure:"level"` // trace|debug|info|warn|error
	JSON  bool   `mapstructure:"json"`
	File  struct {
		Enabled    bool `mapstructure:"enabled"`
		Path       string `mapstructure:"path"`
		MaxSizeMB  int  `mapstructure:"max_size_mb"`
		MaxBackups int  `mapstructure:"max_backups"`
		MaxAgeDays int  `mapstructure:"max_age_days"`
		Compress   bool `mapstructure:"compress"`
	} `mapstructure:"file"`
}

// MetricsConfig configures the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// StackConfig is the top-level configuration document, rooted at the
// `stack:` key.
type StackConfig struct {
	Links   []LinkConfig  `mapstructure:"links"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type configRoot struct {
	Stack StackConfig `mapstructure:"stack"`
}

// Load reads and decodes path (YAML, JSON, or TOML — whatever viper
// detects from the extension) into a StackConfig, applying defaults for
// fields the file omits.
func Load(path string) (*StackConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var root configRoot
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&root, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	for i := range root.Stack.Links {
		if err := root.Stack.Links[i].validate(); err != nil {
			return nil, fmt.Errorf("config: link %q: %w", root.Stack.Links[i].Name, err)
		}
	}

	return &root.Stack, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stack.log.level", "info")
	v.SetDefault("stack.log.json", true)
	v.SetDefault("stack.log.file.max_size_mb", 100)
	v.SetDefault("stack.log.file.max_backups", 5)
	v.SetDefault("stack.log.file.max_age_days", 30)
	v.SetDefault("stack.log.file.compress", true)

	v.SetDefault("stack.metrics.enabled", false)
	v.SetDefault("stack.metrics.listen", ":9108")
	v.SetDefault("stack.metrics.path", "/metrics")
}

func (c *LinkConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.Kind {
	case "uart", "rs485", "usb_cdc", "loopback", "virtual", "":
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	return nil
}

// Options converts the decoded file shape into link.Option values ready
// to pass to link.New.
func (c LinkConfig) Options() []link.Option {
	var opts []link.Option

	switch c.Kind {
	case "uart":
		opts = append(opts, link.WithUART())
	case "rs485":
		opts = append(opts, link.WithRS485())
	case "usb_cdc":
		opts = append(opts, link.WithUSBCDC())
	case "loopback":
		opts = append(opts, link.WithLoopback())
	}

	opts = append(opts, link.WithLocalAddress(link.Address(c.LocalAddress)))
	if c.BroadcastAddress != 0 {
		opts = append(opts, link.WithBroadcastAddress(link.Address(c.BroadcastAddress)))
	}
	if c.MaxQueueSize > 0 {
		opts = append(opts, link.WithMaxQueueSize(c.MaxQueueSize))
	}
	if c.MaxFragmentSize > 0 {
		opts = append(opts, link.WithMaxFragmentSize(c.MaxFragmentSize))
	}
	if c.RxBufferSize > 0 {
		opts = append(opts, link.WithRxBufferSize(c.RxBufferSize))
	}
	if c.TxRate > 0 || c.RxRate > 0 {
		opts = append(opts, link.WithRates(c.TxRate, c.RxRate))
	}
	if c.Footer == "crc32" {
		opts = append(opts, link.WithFooterKind(link.FooterCRC32))
	}
	switch c.ByteOrder {
	case "little":
		opts = append(opts, link.WithByteOrder(binary.LittleEndian))
	case "big":
		opts = append(opts, link.WithByteOrder(binary.BigEndian))
	case "native":
		opts = append(opts, link.WithByteOrder(bo.Native()))
	}
	if c.PreambleLen > 0 {
		opts = append(opts, link.WithPreamble(c.PreambleByte, c.PreambleLen))
	}
	return opts
}
