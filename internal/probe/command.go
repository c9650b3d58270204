package probe

import (
	"fmt"
	"strconv"

	"github.com/btafoya/pbxprobe/internal/config"
)

// transportFlag maps the configured transport to the tool's -t mode:
// one UDP socket, one TCP connection, one TLS connection.
func transportFlag(transport string) string {
	switch transport {
	case "tcp":
		return "t1"
	case "tls":
		return "l1"
	default:
		return "u1"
	}
}

// buildArgs assembles the tool invocation for one stage against one
// destination. The scenario is always rendered fresh into the stage's
// working directory, so the path is local to it.
func buildArgs(cfg *config.Config, scenarioPath, destination string) []string {
	timeoutMs := cfg.CallTimeoutSec * 1000
	args := []string{
		fmt.Sprintf("%s:%d", cfg.SIPServer, cfg.SIPPort),
		"-sf", scenarioPath,
		"-m", "1",
		"-s", destination,
		"-t", transportFlag(cfg.SIPTransport),
		"-recv_timeout", strconv.Itoa(timeoutMs),
		"-timeout", strconv.Itoa(timeoutMs),
		"-trace_msg",
		"-trace_err",
		"-trace_shortmsg",
		"-trace_logs",
	}
	if cfg.SIPLogin != "" {
		args = append(args, "-au", cfg.SIPLogin)
	}
	if cfg.SIPPassword != "" {
		args = append(args, "-ap", cfg.SIPPassword)
	}
	return args
}
