// Package config loads the stream-core's tunable constants (§3.1, §6) from
// environment variables via a viper-backed layered configuration, mirroring
// the retrieval pack's service-config idiom: a viper.Viper instance with a
// fixed env prefix and defaults, read field by field into a typed struct.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WireFormat selects the Sink Writer's wire encoding (§6).
type WireFormat string

const (
	WireFormatNative WireFormat = "native"
	WireFormatSSE    WireFormat = "sse"
)

// Config holds the stream-core's tunable constants. Field names match the
// §3.1/§6 defaults; env vars use the STREAMCORE_ prefix except
// MaxStreamLifetime, which keeps the spec's legacy MAX_STREAM_LIFETIME_MS
// name for backward compatibility with the reference runtime's environment.
type Config struct {
	// MaxStreamLifetime bounds a Stream Helper's total lifetime (§4.4);
	// exceeding it forces a terminal error frame and cleanup.
	MaxStreamLifetime time.Duration `mapstructure:"max_stream_lifetime"`

	// GapThreshold is the quiet period after the last text-end before a
	// queued operation/summary frame is allowed to drain (§4.4).
	GapThreshold time.Duration `mapstructure:"gap_threshold"`

	// MaxBufferBytes bounds the Incremental Stream Parser's in-memory
	// buffer (§5); exceeding it triggers TruncateIfOverflow.
	MaxBufferBytes int `mapstructure:"max_buffer_bytes"`

	// WireFormat selects the Sink Writer's wire encoding.
	WireFormat WireFormat `mapstructure:"wire_format"`
}

// Defaults match §5/§6: a 10 minute stream lifetime, a 2s gap threshold, a
// 5 MiB buffer cap, and the native newline-delimited-JSON wire format.
const (
	DefaultMaxStreamLifetime = 10 * time.Minute
	DefaultGapThreshold      = 2 * time.Second
	DefaultMaxBufferBytes    = 5 * 1024 * 1024
	DefaultWireFormat        = WireFormatNative
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("STREAMCORE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetDefault("max_stream_lifetime_ms", int(DefaultMaxStreamLifetime/time.Millisecond))
	v.SetDefault("gap_threshold_ms", int(DefaultGapThreshold/time.Millisecond))
	v.SetDefault("max_buffer_bytes", DefaultMaxBufferBytes)
	v.SetDefault("wire_format", string(DefaultWireFormat))
	// MAX_STREAM_LIFETIME_MS has no STREAMCORE_ prefix in the reference
	// runtime's environment (§6 "Environment"); bind it explicitly
	// alongside the prefixed STREAMCORE_* overrides.
	_ = v.BindEnv("max_stream_lifetime_ms", "MAX_STREAM_LIFETIME_MS")
	_ = v.BindEnv("gap_threshold_ms", "STREAMCORE_GAP_THRESHOLD_MS")
	_ = v.BindEnv("max_buffer_bytes", "STREAMCORE_MAX_BUFFER_BYTES")
	_ = v.BindEnv("wire_format", "STREAMCORE_WIRE_FORMAT")
	return v
}

// Load reads the stream-core's configuration from the environment, applying
// defaults for any unset value. It never returns an error today — viper's
// env-only binding cannot fail — but keeps an error return so a future
// config-file source can be added without changing callers.
func Load() (Config, error) {
	v := newViper()
	cfg := Config{
		MaxStreamLifetime: time.Duration(v.GetInt("max_stream_lifetime_ms")) * time.Millisecond,
		GapThreshold:      time.Duration(v.GetInt("gap_threshold_ms")) * time.Millisecond,
		MaxBufferBytes:    v.GetInt("max_buffer_bytes"),
		WireFormat:        WireFormat(strings.ToLower(v.GetString("wire_format"))),
	}
	if cfg.WireFormat != WireFormatNative && cfg.WireFormat != WireFormatSSE {
		cfg.WireFormat = DefaultWireFormat
	}
	return cfg, nil
}
