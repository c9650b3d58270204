package config

import (
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PBXPROBE_SIP_SERVER", "pbx.example.com")
	t.Setenv("PBXPROBE_SIP_DOMAIN", "example.com")
	t.Setenv("PBXPROBE_SIP_LOGIN", "9000")
	t.Setenv("PBXPROBE_SIP_PASSWORD", "secret")
	t.Setenv("PBXPROBE_CALLER_ID", "probe")
	t.Setenv("PBXPROBE_TARGET_NUMBER", "1001")
	t.Setenv("PBXPROBE_EXTERNAL_NUMBER", "551100000000")
	t.Setenv("PBXPROBE_AMI_HOST", "pbx.example.com")
	t.Setenv("PBXPROBE_AMI_USERNAME", "manager")
	t.Setenv("PBXPROBE_AMI_SECRET", "amisecret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()

	if cfg.SIPPort != DefaultSIPPort {
		t.Errorf("Expected default SIP port %d, got %d", DefaultSIPPort, cfg.SIPPort)
	}
	if cfg.SIPTransport != "udp" {
		t.Errorf("Expected default transport udp, got %s", cfg.SIPTransport)
	}
	if cfg.RetentionDays != DefaultRetentionDays {
		t.Errorf("Expected default retention %d, got %d", DefaultRetentionDays, cfg.RetentionDays)
	}
	if cfg.AMIPort != DefaultAMIPort {
		t.Errorf("Expected default AMI port %d, got %d", DefaultAMIPort, cfg.AMIPort)
	}
}

func TestValidateOK(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	if cfg.Location == nil {
		t.Error("Expected Location to be resolved after Validate")
	}
	if cfg.PeerNamePattern == nil {
		t.Fatal("Expected PeerNamePattern to be compiled after Validate")
	}
	if !cfg.PeerNamePattern.MatchString("1001") {
		t.Error("Expected default peer pattern to match 1001")
	}
	if cfg.PeerNamePattern.MatchString("trunk-out") {
		t.Error("Expected default peer pattern to reject trunk-out")
	}
}

func TestValidateMissingKeyNamesKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PBXPROBE_TARGET_NUMBER", "")

	cfg := Load()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error for missing target number")
	}
	if !strings.Contains(err.Error(), "PBXPROBE_TARGET_NUMBER") {
		t.Errorf("Expected error to name the missing key, got: %v", err)
	}
}

func TestValidateRejectsNonPositiveInt(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PBXPROBE_CALL_TIMEOUT", "0")

	cfg := Load()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error for zero call timeout")
	}
	if !strings.Contains(err.Error(), "PBXPROBE_CALL_TIMEOUT") {
		t.Errorf("Expected error to name the key, got: %v", err)
	}
}

func TestValidateRejectsBadTransport(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PBXPROBE_SIP_TRANSPORT", "sctp")

	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for unsupported transport")
	}
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PBXPROBE_TIMEZONE", "Mars/Olympus_Mons")

	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for unknown timezone")
	}
}

func TestValidateRejectsBadPeerRegex(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PBXPROBE_PEER_NAME_REGEX", "([")

	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for invalid regex")
	}
}
