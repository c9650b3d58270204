// Package config provides configuration constants and settings for pbxprobe
package config

// SIP probe defaults
const (
	DefaultSIPPort      = 5060
	DefaultSIPTransport = "udp"
	DefaultSIPPBinary   = "sipp"
	DefaultHoldSeconds  = 8
	DefaultCallTimeout  = 30 // seconds, hard wall-clock limit per stage
)

// AMI defaults
const (
	DefaultAMIPort       = 5038
	DefaultAMITimeout    = 10 // seconds, per line read
	DefaultPeerNameRegex = `^\d{3,6}$`
)

// Storage and baseline defaults
const (
	DefaultDataDir            = "./data"
	DefaultDBFile             = "pbxprobe.db"
	DefaultRetentionDays      = 90
	DefaultBaselineWindowDays = 30
	DefaultBaselineMinSamples = 5
	DefaultSuccessDropPct     = 20.0
	DefaultLatencyMultiplier  = 2.0
	DefaultTimezone           = "America/Sao_Paulo"
)

// Serve mode defaults
const (
	DefaultHTTPPort      = 8080
	DefaultProbeSchedule = "" // empty disables the scheduled probe loop
)
