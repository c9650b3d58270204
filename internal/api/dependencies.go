// Package api provides the read-only REST surface over probe history and
// live peer enumeration.
package api

import (
	"github.com/btafoya/pbxprobe/internal/ami"
	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/history"
)

// Dependencies holds all dependencies for API handlers
type Dependencies struct {
	Config *config.Config
	Store  *history.Store
	AMI    ami.Client
}

// NewDependencies creates a new Dependencies instance
func NewDependencies(cfg *config.Config, store *history.Store, amiClient ami.Client) *Dependencies {
	return &Dependencies{
		Config: cfg,
		Store:  store,
		AMI:    amiClient,
	}
}
