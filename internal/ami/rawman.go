package ami

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/models"
)

// RawmanClient drives AMI through the HTTP rawman gateway: each action is
// a GET with query parameters, each body carries one or more blocks in the
// same grammar as the socket transport. The gateway tracks the login in a
// session cookie, so the client keeps a cookie jar.
type RawmanClient struct {
	baseURL     string
	username    string
	secret      string
	httpClient  *http.Client
	peerPattern *regexp.Regexp
}

// NewRawmanClient builds an HTTP gateway transport from validated
// configuration.
func NewRawmanClient(cfg *config.Config) *RawmanClient {
	jar, _ := cookiejar.New(nil)
	return &RawmanClient{
		baseURL:  cfg.AMIRawmanURL,
		username: cfg.AMIUsername,
		secret:   cfg.AMISecret,
		httpClient: &http.Client{
			Timeout: cfg.AMITimeout(),
			Jar:     jar,
			Transport: &http.Transport{
				// Self-signed PBX certificates, same trade-off as the
				// socket transport.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		peerPattern: cfg.PeerNamePattern,
	}
}

// SIPPeers performs login, sippeers and logoff as three gateway requests.
func (c *RawmanClient) SIPPeers(ctx context.Context) ([]models.PeerEntry, error) {
	defer func() {
		// Best-effort logoff with a fresh short-lived context; the caller's
		// context may already be done.
		logoffCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = c.request(logoffCtx, url.Values{"action": {"logoff"}})
	}()

	loginBlocks, err := c.request(ctx, url.Values{
		"action":   {"login"},
		"username": {c.username},
		"secret":   {c.secret},
		"events":   {"off"},
	})
	if err != nil {
		return nil, err
	}
	if err := checkResponse(loginBlocks, "login"); err != nil {
		return nil, err
	}

	peerBlocks, err := c.request(ctx, url.Values{"action": {"sippeers"}})
	if err != nil {
		return nil, err
	}

	var entries []block
	acked := false
	for _, b := range peerBlocks {
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
			return buildPeers(entries, c.peerPattern), nil
		}
	}
	if !acked {
		return nil, &AmiError{Message: "malformed SIPpeers response: no acknowledgement block"}
	}
	return buildPeers(entries, c.peerPattern), nil
}

func (c *RawmanClient) request(ctx context.Context, params url.Values) ([]block, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, amiErrorf(err, "build rawman request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, amiErrorf(err, "rawman request timeout")
		}
		return nil, amiErrorf(err, "rawman request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AmiError{Message: fmt.Sprintf("rawman gateway returned HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, amiErrorf(err, "read rawman response")
	}

	blocks := splitBlocks(string(body))
	if len(blocks) == 0 {
		return nil, &AmiError{Message: "empty rawman response"}
	}
	return blocks, nil
}

// checkResponse finds the first block carrying a Response key and
// validates it.
func checkResponse(blocks []block, action string) error {
	for _, b := range blocks {
		if !b.has("response") {
			continue
		}
		if b.get("response") != "Success" {
			return &AmiError{Message: fmt.Sprintf("%s failed: %s", action, b.get("message"))}
		}
		return nil
	}
	return &AmiError{Message: fmt.Sprintf("malformed %s response: no Response key", action)}
}
