// Package config loads NDP endpoint configuration using koanf/v2.
//
// Supports YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration structures
// -------------------------------------------------------------------------

// Config holds the complete set of runtime knobs spec.md §6 lists
// ("Configuration knobs (runtime parameters)").
type Config struct {
	Endpoint EndpointConfig `koanf:"endpoint"`
	Network  NetworkConfig  `koanf:"network"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

// EndpointConfig holds the IngressPipe/PktGen/EgressPipe knobs.
type EndpointConfig struct {
	// RttPkts is the initial credit granted per new message.
	RttPkts uint16 `koanf:"rtt_pkts"`

	// TxLinkRateBitsPerNs drives EgressPipe's packetisation delay.
	TxLinkRateBitsPerNs float64 `koanf:"tx_link_rate_bits_per_ns"`

	// RxLinkRateBitsPerNs drives PktGen's pacer inter_packet_time.
	RxLinkRateBitsPerNs float64 `koanf:"rx_link_rate_bits_per_ns"`

	// MaxPktLenBytes is the maximum data packet size, used by the pacer.
	MaxPktLenBytes int `koanf:"max_pkt_len_bytes"`

	// SuppressPullNearMsgEnd toggles the optional PULL suppression
	// policy IngressPipe offers (spec.md §4.1/§9, off by default).
	SuppressPullNearMsgEnd bool `koanf:"suppress_pull_near_msg_end"`
}

// NetworkConfig holds the Network (TOR model) knobs.
type NetworkConfig struct {
	// DataPktDropProb is the deterministic 1-in-N trim rate; 0 disables
	// trimming.
	DataPktDropProb float64 `koanf:"data_pkt_drop_prob"`

	// DataPktDelay and CtrlPktDelay name a distribution kind
	// ("constant", "uniform", "exponential") the caller resolves into a
	// [github.com/nanotransport/ndp.DistGenerator]; this package only
	// carries the declarative knob.
	DataPktDelay DelayDistConfig `koanf:"data_pkt_delay"`
	CtrlPktDelay DelayDistConfig `koanf:"ctrl_pkt_delay"`
}

// DelayDistConfig declares one jitter distribution.
type DelayDistConfig struct {
	// Kind is "constant", "uniform", or "exponential".
	Kind string `koanf:"kind"`

	// MeanNs is the mean delay in nanoseconds (constant/exponential).
	MeanNs float64 `koanf:"mean_ns"`

	// MinNs/MaxNs bound a uniform distribution, in nanoseconds.
	MinNs float64 `koanf:"min_ns"`
	MaxNs float64 `koanf:"max_ns"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint.
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint.
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with the values spec.md §8
// scenario 6 uses (1500 B packets at 10 Gbps) so a fresh deployment
// reproduces the spec's worked pacing example out of the box.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			RttPkts:             5,
			TxLinkRateBitsPerNs: 10,
			RxLinkRateBitsPerNs: 10,
			MaxPktLenBytes:      1500,
		},
		Network: NetworkConfig{
			DataPktDropProb: 0,
			DataPktDelay:    DelayDistConfig{Kind: "constant", MeanNs: 0},
			CtrlPktDelay:    DelayDistConfig{Kind: "constant", MeanNs: 0},
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for NDP configuration.
// Variables are named NDP_<section>_<key>, e.g. NDP_ENDPOINT_RTT_PKTS.
const envPrefix = "NDP_"

// Load reads configuration from a YAML file at path, overlays
// environment variable overrides, and merges on top of DefaultConfig().
// Missing fields inherit defaults. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NDP_ENDPOINT_RTT_PKTS -> endpoint.rtt_pkts.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"endpoint.rtt_pkts":                  defaults.Endpoint.RttPkts,
		"endpoint.tx_link_rate_bits_per_ns":   defaults.Endpoint.TxLinkRateBitsPerNs,
		"endpoint.rx_link_rate_bits_per_ns":   defaults.Endpoint.RxLinkRateBitsPerNs,
		"endpoint.max_pkt_len_bytes":          defaults.Endpoint.MaxPktLenBytes,
		"endpoint.suppress_pull_near_msg_end": defaults.Endpoint.SuppressPullNearMsgEnd,
		"network.data_pkt_drop_prob":          defaults.Network.DataPktDropProb,
		"network.data_pkt_delay.kind":         defaults.Network.DataPktDelay.Kind,
		"network.data_pkt_delay.mean_ns":      defaults.Network.DataPktDelay.MeanNs,
		"network.ctrl_pkt_delay.kind":         defaults.Network.CtrlPktDelay.Kind,
		"network.ctrl_pkt_delay.mean_ns":      defaults.Network.CtrlPktDelay.MeanNs,
		"metrics.addr":                        defaults.Metrics.Addr,
		"metrics.path":                        defaults.Metrics.Path,
		"log.level":                           defaults.Log.Level,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidRttPkts indicates rtt_pkts is zero.
	ErrInvalidRttPkts = errors.New("endpoint.rtt_pkts must be >= 1")

	// ErrInvalidLinkRate indicates a link rate is non-positive.
	ErrInvalidLinkRate = errors.New("endpoint.tx_link_rate_bits_per_ns and rx_link_rate_bits_per_ns must be > 0")

	// ErrInvalidMaxPktLen indicates max_pkt_len_bytes is non-positive.
	ErrInvalidMaxPktLen = errors.New("endpoint.max_pkt_len_bytes must be > 0")

	// ErrInvalidDropProb indicates data_pkt_drop_prob is outside [0,1].
	ErrInvalidDropProb = errors.New("network.data_pkt_drop_prob must be in [0,1]")

	// ErrInvalidDistKind indicates a delay distribution names an
	// unrecognised kind.
	ErrInvalidDistKind = errors.New("delay dist kind must be constant, uniform, or exponential")
)

// validDistKinds lists the recognised distribution kind strings.
var validDistKinds = map[string]bool{
	"constant":    true,
	"uniform":     true,
	"exponential": true,
}

// Validate checks the configuration for logical errors. It returns the
// first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Endpoint.RttPkts < 1 {
		return ErrInvalidRttPkts
	}
	if cfg.Endpoint.TxLinkRateBitsPerNs <= 0 || cfg.Endpoint.RxLinkRateBitsPerNs <= 0 {
		return ErrInvalidLinkRate
	}
	if cfg.Endpoint.MaxPktLenBytes <= 0 {
		return ErrInvalidMaxPktLen
	}
	if cfg.Network.DataPktDropProb < 0 || cfg.Network.DataPktDropProb > 1 {
		return ErrInvalidDropProb
	}
	if !validDistKinds[cfg.Network.DataPktDelay.Kind] || !validDistKinds[cfg.Network.CtrlPktDelay.Kind] {
		return ErrInvalidDistKind
	}
	return nil
}
