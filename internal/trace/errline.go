package trace

import (
	"fmt"
	"regexp"
	"strings"
)

const maxErrorLen = 300

// SIP header lines that leak into stderr around a failure; pure noise for
// error reporting.
var headerNoiseRe = regexp.MustCompile(`(?i)^\s*(Via|From|To|Call-ID|CSeq|Contact|Max-Forwards|Content-Length|Content-Type|User-Agent|Allow|Supported|Route|Record-Route|Subject|Expires|Authorization|WWW-Authenticate|Proxy-Authenticate)\s*:`)

// Low-signal tool stats lines such as "Failed call | 0 | 0".
var boilerplateRe = regexp.MustCompile(`(?i)^\s*Failed call\s*\|`)

var resolvingRe = regexp.MustCompile(`(?i)Resolving remote host`)

var technicalKeywords = []string{
	"authentication",
	"error",
	"failed",
	"invalid",
	"unable",
	"cannot",
	"timeout",
	"unreachable",
	"refused",
	"forbidden",
	"aborting",
	"unexpected",
}

var abortingRe = regexp.MustCompile(`(?i)Aborting call on unexpected message.*expecting\s+'([^']+)'.*received\s+'([^']+)`)

// ExtractErrorLine picks the most informative line out of concatenated
// stderr and stdout after a failed stage. Most recent wins within each
// tier: technical-keyword lines, then any non-boilerplate line that is not
// the host-resolution banner, then the last line of any kind.
func ExtractErrorLine(output string) string {
	lines := strings.Split(output, "\n")

	var keywordLine, fallbackLine, lastLine string
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if lastLine == "" {
			lastLine = line
		}
		if headerNoiseRe.MatchString(line) || boilerplateRe.MatchString(line) {
			continue
		}
		if fallbackLine == "" && !resolvingRe.MatchString(line) {
			fallbackLine = line
		}
		if keywordLine == "" && hasTechnicalKeyword(line) {
			keywordLine = line
			break
		}
	}

	chosen := keywordLine
	if chosen == "" {
		chosen = fallbackLine
	}
	if chosen == "" {
		chosen = lastLine
	}
	if chosen == "" {
		return ""
	}

	chosen = rewriteAborting(chosen)
	chosen = strings.Join(strings.Fields(chosen), " ")
	if len(chosen) > maxErrorLen {
		chosen = chosen[:maxErrorLen]
	}
	return chosen
}

// rewriteAborting turns the tool's scenario-abort message into a compact
// statement of the SIP exchange mismatch.
func rewriteAborting(line string) string {
	m := abortingRe.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	return fmt.Sprintf("Unexpected SIP response: received %s while expecting %s", m[2], m[1])
}

func hasTechnicalKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
