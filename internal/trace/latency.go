// Package trace parses and classifies raw SIP tool output. Everything in
// this package is pure: text in, structured signal out, no I/O.
package trace

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	epochStampRe = regexp.MustCompile(`(\d{10})\.(\d+)`)
	clockStampRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2}):(\d{2})(?:\.(\d+))?\b`)
)

// lineTimestampMs extracts a timestamp from one trace line, normalized to
// milliseconds of day. Epoch-with-fraction prefixes win over clock times.
func lineTimestampMs(line string) (float64, bool) {
	if m := epochStampRe.FindStringSubmatch(line); m != nil {
		secs, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		frac, err := strconv.ParseFloat("0."+m[2], 64)
		if err != nil {
			return 0, false
		}
		secOfDay := float64(secs%86400) + frac
		return secOfDay * 1000, true
	}

	if m := clockStampRe.FindStringSubmatch(line); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		if h > 23 || min > 59 || s > 60 {
			return 0, false
		}
		ms := float64(((h*60+min)*60 + s) * 1000)
		if m[4] != "" {
			frac, err := strconv.ParseFloat("0."+m[4], 64)
			if err == nil {
				ms += frac * 1000
			}
		}
		return ms, true
	}

	return 0, false
}

// ExtractSetupLatency measures the delay between the first INVITE and the
// first subsequent provisional or final answer (180, 183, 200) whose
// timestamp is not before the INVITE. Returns nil when the trace carries
// no usable pair.
func ExtractSetupLatency(traceText string) *int {
	inviteTs := -1.0
	for _, line := range strings.Split(traceText, "\n") {
		if inviteTs < 0 {
			if strings.Contains(line, "INVITE sip:") {
				ts, ok := lineTimestampMs(line)
				if !ok {
					return nil
				}
				inviteTs = ts
			}
			continue
		}

		if !strings.Contains(line, "SIP/2.0 180") &&
			!strings.Contains(line, "SIP/2.0 183") &&
			!strings.Contains(line, "SIP/2.0 200") {
			continue
		}
		ts, ok := lineTimestampMs(line)
		if !ok || ts < inviteTs {
			continue
		}
		delta := int(math.Round(ts - inviteTs))
		return &delta
	}
	return nil
}

// FallbackSetupLatency derives latency from the stage wall time minus the
// hold period, for traces with no usable timestamps. Absent and zero are
// distinct: a non-positive result means nothing measurable happened, so
// the value is omitted entirely.
func FallbackSetupLatency(totalDurationMs, holdSeconds int) *int {
	v := totalDurationMs - holdSeconds*1000
	if v <= 0 {
		return nil
	}
	return &v
}
