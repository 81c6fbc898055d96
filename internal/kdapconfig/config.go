// Package kdapconfig loads kdap.yaml, adapted from the teacher's
// pkg/config: YAML parsing plus environment-variable overrides, but with a
// fixed, typed schema rather than a generic string-keyed map — KDAP's
// configuration surface is small and known up front.
package kdapconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix recognized by applyEnvOverrides, mirroring the
// teacher's APP_ convention.
const EnvPrefix = "KDAP_"

// Config is KDAP's full configuration surface.
type Config struct {
	// Backend is the path to the lldb-dap (or compatible) executable that
	// `kdap serve` spawns and speaks DAP to.
	Backend string `yaml:"backend"`
	// BackendArgs are extra arguments passed to the backend binary.
	BackendArgs []string `yaml:"backendArgs"`
	// TerminalHelper is the path to the terminal-helper executable used by
	// the runInTerminal reverse-request handshake (spec.md §6).
	TerminalHelper string `yaml:"terminalHelper"`
	// ChannelCapacity bounds the to-client/to-backend channels (spec.md
	// §4.3: "capacity 64 is reasonable").
	ChannelCapacity int `yaml:"channelCapacity"`
	// LogLevel is one of DEBUG/INFO/WARN/ERROR.
	LogLevel string `yaml:"logLevel"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"logFormat"`
	// SourceMap maps backend-reported source paths to client-visible ones.
	// It is loaded from kdap.yaml only; `kdap serve` does not pass it to the
	// orchestrator, whose common-init step applies just the launch/attach
	// request's own sourceMap.
	SourceMap map[string]string `yaml:"sourceMap"`
}

// Default returns the configuration used when no kdap.yaml is present.
func Default() Config {
	return Config{
		Backend:         "lldb-dap",
		ChannelCapacity: 64,
		LogLevel:        "INFO",
		LogFormat:       "text",
	}
}

// Load reads and parses a kdap.yaml file, then applies KDAP_-prefixed
// environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("kdapconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("kdapconfig: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides mutates cfg in place from the process environment,
// e.g. KDAP_BACKEND=/opt/llvm/bin/lldb-dap or KDAP_CHANNEL_CAPACITY=128.
func (c *Config) applyEnvOverrides() {
	if v, ok := lookupEnv("BACKEND"); ok {
		c.Backend = v
	}
	if v, ok := lookupEnv("TERMINAL_HELPER"); ok {
		c.TerminalHelper = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookupEnv("CHANNEL_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.ChannelCapacity = n
		}
	}
}

func lookupEnv(suffix string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + suffix)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
