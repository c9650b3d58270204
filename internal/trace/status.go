package trace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/btafoya/pbxprobe/internal/models"
)

var statusLineRe = regexp.MustCompile(`SIP/2\.0[ \t]+(\d{3})[ \t]*([^\r\n]*)`)

type statusMatch struct {
	code   int
	reason string
}

// SelectStatusCode picks the SIP final code for a stage from all status
// lines in encounter order.
//
// For invite traces a cancel-flow heuristic applies: when the tool itself
// cancels a call that already reached ringing, the trace ends in 487 (and
// a 200 for the CANCEL transaction), but the probe made progress and the
// progress code is the honest answer. Otherwise 200 wins, then 183, then
// 180, then whatever came last. Any other stage takes the last code seen.
func SelectStatusCode(traceText string, stage models.Stage) (*int, *string) {
	var seen []statusMatch
	for _, m := range statusLineRe.FindAllStringSubmatch(traceText, -1) {
		code, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seen = append(seen, statusMatch{code: code, reason: strings.TrimSpace(m[2])})
	}
	if len(seen) == 0 {
		return nil, nil
	}

	if stage == models.StageInvite {
		if pick := selectInviteCode(seen); pick != nil {
			return normalize(*pick)
		}
	}
	return normalize(seen[len(seen)-1])
}

func selectInviteCode(seen []statusMatch) *statusMatch {
	byCode := func(code int) *statusMatch {
		for i := range seen {
			if seen[i].code == code {
				return &seen[i]
			}
		}
		return nil
	}

	if byCode(487) != nil {
		if m := byCode(183); m != nil {
			return m
		}
		if m := byCode(180); m != nil {
			return m
		}
	}
	if m := byCode(200); m != nil {
		return m
	}
	if m := byCode(183); m != nil {
		return m
	}
	if m := byCode(180); m != nil {
		return m
	}
	return nil
}

// normalize renders the "CODE reason" status text alongside the code.
func normalize(m statusMatch) (*int, *string) {
	code := m.code
	text := strconv.Itoa(m.code)
	if m.reason != "" {
		text = fmt.Sprintf("%d %s", m.code, m.reason)
	}
	return &code, &text
}
