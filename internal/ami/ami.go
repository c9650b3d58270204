// Package ami speaks the Asterisk Manager Interface to enumerate SIP peers.
//
// Two transports are supported: a raw TCP (optionally TLS) socket and an
// HTTP "rawman" gateway. Both drive the same three actions (Login,
// SIPpeers, Logoff) and share the block grammar parser.
package ami

import (
	"context"
	"fmt"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/models"
)

// AmiError is the typed error for all protocol-level failures: timeouts,
// closed connections, login rejections and failed actions.
type AmiError struct {
	Message string
	Err     error
}

func (e *AmiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ami: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("ami: %s", e.Message)
}

func (e *AmiError) Unwrap() error {
	return e.Err
}

func amiErrorf(err error, format string, args ...interface{}) *AmiError {
	return &AmiError{Message: fmt.Sprintf(format, args...), Err: err}
}

// Client enumerates the SIP peers registered on the PBX.
type Client interface {
	SIPPeers(ctx context.Context) ([]models.PeerEntry, error)
}

// New selects the transport from configuration: a configured rawman URL
// picks the HTTP gateway, otherwise the TCP socket is used.
func New(cfg *config.Config) Client {
	if cfg.AMIRawmanURL != "" {
		return NewRawmanClient(cfg)
	}
	return NewTCPClient(cfg)
}
