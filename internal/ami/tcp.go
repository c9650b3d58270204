package ami

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/models"
)

// TCPClient speaks AMI over the raw manager socket, optionally wrapped in
// TLS. Certificate verification is disabled on purpose: manager ports are
// near-universally fronted by self-signed certificates.
type TCPClient struct {
	addr        string
	username    string
	secret      string
	useTLS      bool
	timeout     time.Duration
	peerPattern *regexp.Regexp
}

// NewTCPClient builds a TCP transport from validated configuration.
func NewTCPClient(cfg *config.Config) *TCPClient {
	return &TCPClient{
		addr:        net.JoinHostPort(cfg.AMIHost, strconv.Itoa(cfg.AMIPort)),
		username:    cfg.AMIUsername,
		secret:      cfg.AMISecret,
		useTLS:      cfg.AMITLS,
		timeout:     cfg.AMITimeout(),
		peerPattern: cfg.PeerNamePattern,
	}
}

// SIPPeers logs in, enumerates peers and logs off. Logoff and close are
// best-effort on every exit path.
func (c *TCPClient) SIPPeers(ctx context.Context) ([]models.PeerEntry, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = writeAction(conn, c.timeout, "Logoff", nil)
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)

	// The manager greets with a protocol banner before any block.
	if _, err := readLine(conn, r, c.timeout); err != nil {
		return nil, amiErrorf(err, "no greeting from %s", c.addr)
	}

	if err := c.login(conn, r); err != nil {
		return nil, err
	}

	entries, err := c.enumerate(conn, r)
	if err != nil {
		return nil, err
	}
	return buildPeers(entries, c.peerPattern), nil
}

func (c *TCPClient) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		if isTimeout(err) {
			return nil, amiErrorf(err, "connection timeout to %s", c.addr)
		}
		return nil, amiErrorf(err, "connect to %s failed", c.addr)
	}
	if !c.useTLS {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
	if err := tlsConn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		conn.Close()
		return nil, amiErrorf(err, "set handshake deadline")
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		if isTimeout(err) {
			return nil, amiErrorf(err, "tls handshake timeout with %s", c.addr)
		}
		return nil, amiErrorf(err, "tls handshake with %s failed", c.addr)
	}
	if err := tlsConn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, amiErrorf(err, "clear handshake deadline")
	}
	return tlsConn, nil
}

func (c *TCPClient) login(conn net.Conn, r *bufio.Reader) error {
	actionID := uuid.NewString()
	fields := [][2]string{
		{"Username", c.username},
		{"Secret", c.secret},
		{"Events", "off"},
		{"ActionID", actionID},
	}
	if err := writeAction(conn, c.timeout, "Login", fields); err != nil {
		return amiErrorf(err, "send login")
	}

	for {
		b, err := readBlock(conn, r, c.timeout)
		if errors.Is(err, io.EOF) {
			return &AmiError{Message: "connection closed before login response"}
		}
		if err != nil {
			return err
		}
		if !b.has("response") {
			continue
		}
		if id := b.get("actionid"); id != "" && id != actionID {
			continue
		}
		if b.get("response") != "Success" {
			return &AmiError{Message: fmt.Sprintf("login failed: %s", b.get("message"))}
		}
		return nil
	}
}

func (c *TCPClient) enumerate(conn net.Conn, r *bufio.Reader) ([]block, error) {
	actionID := uuid.NewString()
	if err := writeAction(conn, c.timeout, "SIPpeers", [][2]string{{"ActionID", actionID}}); err != nil {
		return nil, amiErrorf(err, "send SIPpeers")
	}

	var entries []block
	acked := false
	for {
		b, err := readBlock(conn, r, c.timeout)
		if errors.Is(err, io.EOF) {
			if !acked {
				return nil, &AmiError{Message: "connection closed: empty SIPpeers response"}
			}
			// Peer closed after sending data; accept what was collected.
			return entries, nil
		}
		if err != nil {
			return nil, err
		}

		if !acked && b.has("response") && !b.has("event") {
			if b.get("response") != "Success" {
				return nil, &AmiError{Message: fmt.Sprintf("SIPpeers failed: %s", b.get("message"))}
			}
			acked = true
			continue
		}

		switch b.get("event") {
		case "PeerEntry":
			entries = append(entries, b)
		case "PeerlistComplete":
			return entries, nil
		}
	}
}

// writeAction sends one action block. A nil fields slice sends the bare
// action, which is all Logoff needs.
func writeAction(conn net.Conn, timeout time.Duration, action string, fields [][2]string) error {
	var sb strings.Builder
	sb.WriteString("Action: ")
	sb.WriteString(action)
	sb.WriteString("\r\n")
	for _, f := range fields {
		sb.WriteString(f[0])
		sb.WriteString(": ")
		sb.WriteString(f[1])
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	_, err := io.WriteString(conn, sb.String())
	return err
}

// readLine reads one CRLF-terminated line under a per-read deadline so a
// hung manager cannot block the caller indefinitely.
func readLine(conn net.Conn, r *bufio.Reader, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", amiErrorf(err, "set read deadline")
	}
	line, err := r.ReadString('\n')
	if err != nil {
		if isTimeout(err) {
			return "", amiErrorf(err, "read timeout")
		}
		if errors.Is(err, io.EOF) {
			return line, io.EOF
		}
		return "", amiErrorf(err, "read failed")
	}
	return line, nil
}

// readBlock collects lines until the blank separator. A connection closed
// mid-block still yields the collected lines; a close on a block boundary
// surfaces as io.EOF for the caller to judge.
func readBlock(conn net.Conn, r *bufio.Reader, timeout time.Duration) (block, error) {
	var lines []string
	for {
		line, err := readLine(conn, r, timeout)
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
			if len(lines) == 0 {
				return nil, io.EOF
			}
			return parseBlock(lines), nil
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			if len(lines) == 0 {
				continue
			}
			return parseBlock(lines), nil
		}
		lines = append(lines, line)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
