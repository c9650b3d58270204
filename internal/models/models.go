// Package models defines the domain models for pbxprobe
package models

import (
	"time"
)

// Stage identifies one protocol step of a probe run.
type Stage string

const (
	StageRegister Stage = "register"
	StageOptions  Stage = "options"
	StageInvite   Stage = "invite"
)

// Category is the failure taxonomy assigned by trace classification.
type Category string

const (
	CategoryNetwork Category = "rede_timeout"
	CategoryAuth    Category = "auth"
	CategoryRoute   Category = "rota_permissao"
	CategoryUnknown Category = "desconhecida"
)

// DestinationKey names one of the fixed probe destinations.
type DestinationKey string

const (
	DestSelf     DestinationKey = "self"
	DestTarget   DestinationKey = "target"
	DestExternal DestinationKey = "external"
)

// PeerEntry represents one registered SIP endpoint as reported by the PBX.
// Constructed fresh on every enumeration; never persisted.
type PeerEntry struct {
	Name    string `json:"name"`
	IP      string `json:"ip"`
	Port    *int   `json:"port,omitempty"`
	Status  string `json:"status"`
	Dynamic bool   `json:"dynamic"`
	Online  bool   `json:"online"`
}

// StageResult is the outcome of one subprocess invocation for one protocol
// stage against one destination. Immutable once produced.
type StageResult struct {
	Stage           Stage     `json:"stage"`
	OK              bool      `json:"ok"`
	SIPFinalCode    *int      `json:"sip_final_code,omitempty"`
	SIPStatusText   *string   `json:"sip_status_text,omitempty"`
	SetupLatencyMs  *int      `json:"setup_latency_ms,omitempty"`
	TotalDurationMs int       `json:"total_duration_ms"`
	Error           *string   `json:"error,omitempty"`
	Category        *Category `json:"category,omitempty"`
	Reason          *string   `json:"reason,omitempty"`
}

// DestinationResult aggregates the options and invite stages for one
// destination. The denormalized fields prefer the invite stage and fall
// back to options.
type DestinationResult struct {
	Key            DestinationKey `json:"key"`
	Number         string         `json:"number"`
	Options        *StageResult   `json:"options,omitempty"`
	Invite         *StageResult   `json:"invite,omitempty"`
	CompletedCall  bool           `json:"completed_call"`
	NoIssues       bool           `json:"no_issues"`
	SetupLatencyMs *int           `json:"setup_latency_ms,omitempty"`
	SIPFinalCode   *int           `json:"sip_final_code,omitempty"`
	Error          *string        `json:"error,omitempty"`
	Category       *Category      `json:"category,omitempty"`
	Reason         *string        `json:"reason,omitempty"`
}

// RunSummary counts destination outcomes and carries the deviation verdict.
type RunSummary struct {
	Total              int              `json:"total"`
	Succeeded          int              `json:"succeeded"`
	Failed             int              `json:"failed"`
	FailuresByCategory map[Category]int `json:"failures_by_category,omitempty"`
	DeviationAlert     bool             `json:"deviation_alert"`
	DeviationReasons   []string         `json:"deviation_reasons,omitempty"`
}

// ProbeRun is one full probe execution. Persisted once; never mutated.
//
// The flattened fields at the bottom describe the target destination for
// backward-compatible consumers of the JSON output.
type ProbeRun struct {
	RunID        string              `json:"run_id"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	Mode         string              `json:"mode"`
	Prechecks    *StageResult        `json:"prechecks,omitempty"`
	Destinations []DestinationResult `json:"destinations"`
	Summary      RunSummary          `json:"summary"`

	FailureDestinationNumber *string `json:"failure_destination_number,omitempty"`
	FailureStage             *Stage  `json:"failure_stage,omitempty"`

	TargetNumber   string  `json:"target_number"`
	SetupLatencyMs *int    `json:"setup_latency_ms,omitempty"`
	SIPFinalCode   *int    `json:"sip_final_code,omitempty"`
	OK             bool    `json:"ok"`
	NoIssues       bool    `json:"no_issues"`
	Error          *string `json:"error,omitempty"`
}

// Destination returns the result for the given key, or nil.
func (r *ProbeRun) Destination(key DestinationKey) *DestinationResult {
	for i := range r.Destinations {
		if r.Destinations[i].Key == key {
			return &r.Destinations[i]
		}
	}
	return nil
}

// BaselineSnapshot is the historical expectation for one destination at one
// local hour. Derived on demand; never stored.
type BaselineSnapshot struct {
	Number         string  `json:"number"`
	HourLocal      int     `json:"hour_local"`
	Samples        int     `json:"samples"`
	SuccessRatePct float64 `json:"success_rate_pct"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
}

// IntPtr returns a pointer to v. Convenience for optional fields.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }

// CatPtr returns a pointer to c.
func CatPtr(c Category) *Category { return &c }
