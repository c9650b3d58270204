package ami

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/btafoya/pbxprobe/internal/models"
)

var numericNames = regexp.MustCompile(`^\d+$`)

func entry(fields map[string]string) block {
	b := make(block, len(fields))
	for k, v := range fields {
		b[k] = v
	}
	return b
}

func TestBuildPeersFiltersDynamicAndName(t *testing.T) {
	entries := []block{
		entry(map[string]string{"objectname": "1001", "dynamic": "yes", "ipaddress": "10.0.0.5", "status": "OK (12 ms)"}),
		entry(map[string]string{"objectname": "trunk-out", "dynamic": "yes", "ipaddress": "10.0.0.9", "status": "OK (3 ms)"}),
		entry(map[string]string{"objectname": "1002", "dynamic": "no", "ipaddress": "10.0.0.6", "status": "OK (8 ms)"}),
	}

	peers := buildPeers(entries, numericNames)
	if len(peers) != 1 {
		t.Fatalf("Expected only the dynamic numeric peer, got %d peers", len(peers))
	}
	if peers[0].Name != "1001" {
		t.Errorf("Expected peer 1001, got %s", peers[0].Name)
	}
	if !peers[0].Online {
		t.Error("Expected peer with address and OK status to be online")
	}
}

func TestBuildPeersOnlineDerivation(t *testing.T) {
	tests := []struct {
		name   string
		ip     string
		status string
		online bool
	}{
		{"registered", "192.168.1.20", "OK (15 ms)", true},
		{"zero address", "0.0.0.0", "OK (15 ms)", false},
		{"null address", "(null)", "OK (15 ms)", false},
		{"none address", "-none-", "OK (15 ms)", false},
		{"empty address", "", "OK (15 ms)", false},
		{"unreachable", "192.168.1.20", "UNREACHABLE", false},
		{"lagged", "192.168.1.20", "LAGGED (2012 ms)", false},
		{"timeout", "192.168.1.20", "Status Timeout", false},
		{"unknown", "192.168.1.20", "Unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := peerOnline(tt.ip, tt.status); got != tt.online {
				t.Errorf("peerOnline(%q, %q) = %v, want %v", tt.ip, tt.status, got, tt.online)
			}
		})
	}
}

func TestBuildPeersSortOrder(t *testing.T) {
	entries := []block{
		entry(map[string]string{"objectname": "200", "dynamic": "yes", "ipaddress": "10.0.0.2", "status": "OK"}),
		entry(map[string]string{"objectname": "30", "dynamic": "yes", "ipaddress": "10.0.0.3", "status": "OK"}),
		entry(map[string]string{"objectname": "1001", "dynamic": "yes", "ipaddress": "10.0.0.1", "status": "OK"}),
	}

	peers := buildPeers(entries, numericNames)

	var names []string
	for _, p := range peers {
		names = append(names, p.Name)
	}
	want := []string{"30", "200", "1001"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Peer sort order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortPeersNonNumericAfterNumeric(t *testing.T) {
	peers := []models.PeerEntry{
		{Name: "zulu"},
		{Name: "42"},
		{Name: "alpha"},
		{Name: "7"},
	}
	sortPeers(peers)

	var names []string
	for _, p := range peers {
		names = append(names, p.Name)
	}
	want := []string{"7", "42", "alpha", "zulu"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Sort order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPeersPort(t *testing.T) {
	entries := []block{
		entry(map[string]string{"objectname": "1001", "dynamic": "yes", "ipaddress": "10.0.0.5", "ipport": "5062", "status": "OK"}),
		entry(map[string]string{"objectname": "1002", "dynamic": "yes", "ipaddress": "10.0.0.6", "ipport": "0", "status": "OK"}),
	}

	peers := buildPeers(entries, numericNames)
	if len(peers) != 2 {
		t.Fatalf("Expected 2 peers, got %d", len(peers))
	}
	if peers[0].Port == nil || *peers[0].Port != 5062 {
		t.Errorf("Expected port 5062, got %v", peers[0].Port)
	}
	if peers[1].Port != nil {
		t.Errorf("Expected zero port to be absent, got %v", *peers[1].Port)
	}
}
