// Package config provides runtime configuration management for pbxprobe
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Config holds the runtime configuration for pbxprobe
type Config struct {
	// SIP probe target
	SIPServer      string
	SIPPort        int
	SIPTransport   string // "udp", "tcp" or "tls"
	SIPDomain      string
	SIPLogin       string
	SIPPassword    string
	CallerID       string
	TargetNumber   string
	ExternalNumber string
	HoldSeconds    int
	CallTimeoutSec int
	SIPPBinary     string

	// Results storage and baseline
	DataDir            string
	RetentionDays      int
	BaselineWindowDays int
	BaselineMinSamples int
	SuccessDropPct     float64
	LatencyMultiplier  float64
	Timezone           string

	// AMI
	AMIHost       string
	AMIPort       int
	AMIUsername   string
	AMISecret     string
	AMITimeoutSec int
	AMITLS        bool
	AMIRawmanURL  string // non-empty selects the HTTP gateway transport
	PeerNameRegex string

	// Serve mode
	HTTPPort      int
	ProbeSchedule string // cron expression; empty disables scheduled probes

	// Resolved during Validate
	Location        *time.Location `json:"-"`
	PeerNamePattern *regexp.Regexp `json:"-"`
}

// Load creates a Config from environment variables with defaults
func Load() *Config {
	cfg := &Config{
		SIPServer:      getEnv("PBXPROBE_SIP_SERVER", ""),
		SIPPort:        getEnvInt("PBXPROBE_SIP_PORT", DefaultSIPPort),
		SIPTransport:   getEnv("PBXPROBE_SIP_TRANSPORT", DefaultSIPTransport),
		SIPDomain:      getEnv("PBXPROBE_SIP_DOMAIN", ""),
		SIPLogin:       getEnv("PBXPROBE_SIP_LOGIN", ""),
		SIPPassword:    getEnv("PBXPROBE_SIP_PASSWORD", ""),
		CallerID:       getEnv("PBXPROBE_CALLER_ID", ""),
		TargetNumber:   getEnv("PBXPROBE_TARGET_NUMBER", ""),
		ExternalNumber: getEnv("PBXPROBE_EXTERNAL_NUMBER", ""),
		HoldSeconds:    getEnvInt("PBXPROBE_HOLD_SECONDS", DefaultHoldSeconds),
		CallTimeoutSec: getEnvInt("PBXPROBE_CALL_TIMEOUT", DefaultCallTimeout),
		SIPPBinary:     getEnv("PBXPROBE_SIPP_BINARY", DefaultSIPPBinary),

		DataDir:            getEnv("PBXPROBE_DATA_DIR", DefaultDataDir),
		RetentionDays:      getEnvInt("PBXPROBE_RETENTION_DAYS", DefaultRetentionDays),
		BaselineWindowDays: getEnvInt("PBXPROBE_BASELINE_WINDOW_DAYS", DefaultBaselineWindowDays),
		BaselineMinSamples: getEnvInt("PBXPROBE_BASELINE_MIN_SAMPLES", DefaultBaselineMinSamples),
		SuccessDropPct:     getEnvFloat("PBXPROBE_SUCCESS_DROP_PCT", DefaultSuccessDropPct),
		LatencyMultiplier:  getEnvFloat("PBXPROBE_LATENCY_MULTIPLIER", DefaultLatencyMultiplier),
		Timezone:           getEnv("PBXPROBE_TIMEZONE", DefaultTimezone),

		AMIHost:       getEnv("PBXPROBE_AMI_HOST", ""),
		AMIPort:       getEnvInt("PBXPROBE_AMI_PORT", DefaultAMIPort),
		AMIUsername:   getEnv("PBXPROBE_AMI_USERNAME", ""),
		AMISecret:     getEnv("PBXPROBE_AMI_SECRET", ""),
		AMITimeoutSec: getEnvInt("PBXPROBE_AMI_TIMEOUT", DefaultAMITimeout),
		AMITLS:        getEnvBool("PBXPROBE_AMI_TLS", false),
		AMIRawmanURL:  getEnv("PBXPROBE_AMI_RAWMAN_URL", ""),
		PeerNameRegex: getEnv("PBXPROBE_PEER_NAME_REGEX", DefaultPeerNameRegex),

		HTTPPort:      getEnvInt("PBXPROBE_HTTP_PORT", DefaultHTTPPort),
		ProbeSchedule: getEnv("PBXPROBE_SCHEDULE", DefaultProbeSchedule),
	}

	return cfg
}

// Validate checks that every required setting is present and coherent.
// Returned errors name the offending key so startup failures are actionable.
func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"PBXPROBE_SIP_SERVER", c.SIPServer},
		{"PBXPROBE_SIP_DOMAIN", c.SIPDomain},
		{"PBXPROBE_SIP_LOGIN", c.SIPLogin},
		{"PBXPROBE_SIP_PASSWORD", c.SIPPassword},
		{"PBXPROBE_CALLER_ID", c.CallerID},
		{"PBXPROBE_TARGET_NUMBER", c.TargetNumber},
		{"PBXPROBE_EXTERNAL_NUMBER", c.ExternalNumber},
		{"PBXPROBE_DATA_DIR", c.DataDir},
		{"PBXPROBE_AMI_HOST", c.AMIHost},
		{"PBXPROBE_AMI_USERNAME", c.AMIUsername},
		{"PBXPROBE_AMI_SECRET", c.AMISecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required config %s", r.key)
		}
	}

	positive := []struct {
		key   string
		value int
	}{
		{"PBXPROBE_SIP_PORT", c.SIPPort},
		{"PBXPROBE_HOLD_SECONDS", c.HoldSeconds},
		{"PBXPROBE_CALL_TIMEOUT", c.CallTimeoutSec},
		{"PBXPROBE_RETENTION_DAYS", c.RetentionDays},
		{"PBXPROBE_BASELINE_WINDOW_DAYS", c.BaselineWindowDays},
		{"PBXPROBE_BASELINE_MIN_SAMPLES", c.BaselineMinSamples},
		{"PBXPROBE_AMI_PORT", c.AMIPort},
		{"PBXPROBE_AMI_TIMEOUT", c.AMITimeoutSec},
		{"PBXPROBE_HTTP_PORT", c.HTTPPort},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("config %s must be positive, got %d", p.key, p.value)
		}
	}

	switch c.SIPTransport {
	case "udp", "tcp", "tls":
	default:
		return fmt.Errorf("config PBXPROBE_SIP_TRANSPORT must be udp, tcp or tls, got %q", c.SIPTransport)
	}

	if c.SuccessDropPct <= 0 {
		return fmt.Errorf("config PBXPROBE_SUCCESS_DROP_PCT must be positive, got %v", c.SuccessDropPct)
	}
	if c.LatencyMultiplier <= 1 {
		return fmt.Errorf("config PBXPROBE_LATENCY_MULTIPLIER must be greater than 1, got %v", c.LatencyMultiplier)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("config PBXPROBE_TIMEZONE is not a valid IANA zone: %w", err)
	}
	c.Location = loc

	pattern, err := regexp.Compile(c.PeerNameRegex)
	if err != nil {
		return fmt.Errorf("config PBXPROBE_PEER_NAME_REGEX does not compile: %w", err)
	}
	c.PeerNamePattern = pattern

	return nil
}

// DBPath returns the full path to the SQLite database file
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DefaultDBFile)
}

// CallTimeout returns the per-stage subprocess timeout
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// AMITimeout returns the per-read AMI socket timeout
func (c *Config) AMITimeout() time.Duration {
	return time.Duration(c.AMITimeoutSec) * time.Second
}

// EnsureDirectories creates the data directory tree
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
