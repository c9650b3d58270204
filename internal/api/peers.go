package api

import (
	"net/http"

	"github.com/btafoya/pbxprobe/internal/models"
)

// PeerHandler enumerates registered SIP peers live from the PBX.
type PeerHandler struct {
	deps *Dependencies
}

// NewPeerHandler creates a new PeerHandler
func NewPeerHandler(deps *Dependencies) *PeerHandler {
	return &PeerHandler{deps: deps}
}

// PeerListResponse wraps the peer list with summary counts.
type PeerListResponse struct {
	Total  int                `json:"total"`
	Online int                `json:"online"`
	Peers  []models.PeerEntry `json:"peers"`
}

// List queries the PBX manager interface for the current peer list. The
// PBX is an upstream dependency, so its failures surface as 502.
func (h *PeerHandler) List(w http.ResponseWriter, r *http.Request) {
	peers, err := h.deps.AMI.SIPPeers(r.Context())
	if err != nil {
		WriteError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
		return
	}

	online := 0
	for _, p := range peers {
		if p.Online {
			online++
		}
	}
	if peers == nil {
		peers = []models.PeerEntry{}
	}
	WriteJSON(w, http.StatusOK, PeerListResponse{
		Total:  len(peers),
		Online: online,
		Peers:  peers,
	})
}
