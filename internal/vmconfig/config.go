// Package vmconfig loads long-lived VM tuning knobs from a TOML file:
// default memory-accounting limits, the floating-point backend name, and
// the log level. These are properties of a VM instance, not of a
// single run, so they are config-file material rather than CLI flags (the
// per-invocation driver flags live in cmd/smvmrun).
package vmconfig

import (
	"github.com/BurntSushi/toml"
)

// Config holds the tunables read from a TOML file on VM startup.
type Config struct {
	Memory    MemoryLimits `toml:"memory"`
	FloatMode string       `toml:"float_mode"` // "hardware" or "soft"
	LogLevel  string       `toml:"log_level"`
}

// MemoryLimits mirrors the four MemoryInfo counters a Process tracks:
// public heap, private (host-side), reserved, and the overall total.
type MemoryLimits struct {
	PublicHeapLimit uint64 `toml:"public_heap_limit"`
	PrivateLimit    uint64 `toml:"private_limit"`
	ReservedLimit   uint64 `toml:"reserved_limit"`
	TotalLimit      uint64 `toml:"total_limit"`
}

// Default returns the configuration used when no file is supplied: no
// accounting limits (MaxUint64, matching spec's "upperLimit" default of
// effectively unbounded), soft-float FP backend, Info-level logging.
func Default() Config {
	const unbounded = ^uint64(0)
	return Config{
		Memory: MemoryLimits{
			PublicHeapLimit: unbounded,
			PrivateLimit:    unbounded,
			ReservedLimit:   unbounded,
			TotalLimit:      unbounded,
		},
		FloatMode: "soft",
		LogLevel:  "info",
	}
}

// Load reads a TOML config file, filling any field the file omits from
// Default(). A missing or malformed FloatMode/LogLevel is left to the
// caller to validate; Load itself only handles parsing.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
