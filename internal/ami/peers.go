package ami

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/btafoya/pbxprobe/internal/models"
)

// Sentinel addresses the PBX reports for peers without a live registration.
var noAddressValues = map[string]bool{
	"":        true,
	"0.0.0.0": true,
	"(null)":  true,
	"-none-":  true,
}

// Status substrings that mark a peer offline regardless of its address.
var offlineHints = []string{
	"unreachable",
	"unknown",
	"unmonitored",
	"lagged",
	"timeout",
	"offline",
	"unavail",
}

// buildPeers filters raw PeerEntry blocks down to dynamically-registered
// extensions matching the configured name pattern, derives the online flag
// and returns them in display order.
func buildPeers(entries []block, pattern *regexp.Regexp) []models.PeerEntry {
	peers := make([]models.PeerEntry, 0, len(entries))
	for _, e := range entries {
		if !strings.EqualFold(e.get("dynamic"), "yes") {
			continue
		}
		name := e.get("objectname")
		if pattern != nil && !pattern.MatchString(name) {
			continue
		}

		p := models.PeerEntry{
			Name:    name,
			IP:      e.get("ipaddress"),
			Status:  e.get("status"),
			Dynamic: true,
		}
		if port, err := strconv.Atoi(e.get("ipport")); err == nil && port > 0 {
			p.Port = &port
		}
		p.Online = peerOnline(p.IP, p.Status)
		peers = append(peers, p)
	}
	sortPeers(peers)
	return peers
}

func peerOnline(ip, status string) bool {
	if noAddressValues[strings.TrimSpace(ip)] {
		return false
	}
	lower := strings.ToLower(status)
	for _, hint := range offlineHints {
		if strings.Contains(lower, hint) {
			return false
		}
	}
	return true
}

// sortPeers orders numeric names ascending by value, then non-numeric
// names lexicographically after all numeric ones.
func sortPeers(peers []models.PeerEntry) {
	sort.SliceStable(peers, func(i, j int) bool {
		ni, errI := strconv.Atoi(peers[i].Name)
		nj, errJ := strconv.Atoi(peers[j].Name)
		switch {
		case errI == nil && errJ == nil:
			return ni < nj
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return peers[i].Name < peers[j].Name
		}
	})
}
