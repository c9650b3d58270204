package probe

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/btafoya/pbxprobe/internal/config"
	"github.com/btafoya/pbxprobe/internal/models"
)

//go:embed scenarios/*.xml
var scenariosFS embed.FS

// scenarioParams feeds the per-stage scenario template. The target number
// itself travels on the tool command line and appears in the scenario via
// the [service] keyword.
type scenarioParams struct {
	Domain   string
	Login    string
	Password string
	CallerID string
	HoldMs   int
}

var scenarioTemplates = template.Must(template.ParseFS(scenariosFS, "scenarios/*.xml"))

// writeScenario renders the stage's scenario into dir and returns its path.
func writeScenario(dir string, stage models.Stage, cfg *config.Config) (string, error) {
	name := string(stage) + ".xml"
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create scenario file: %w", err)
	}
	defer f.Close()

	params := scenarioParams{
		Domain:   cfg.SIPDomain,
		Login:    cfg.SIPLogin,
		Password: cfg.SIPPassword,
		CallerID: cfg.CallerID,
		HoldMs:   cfg.HoldSeconds * 1000,
	}
	if err := scenarioTemplates.ExecuteTemplate(f, name, params); err != nil {
		return "", fmt.Errorf("render scenario %s: %w", name, err)
	}
	return path, nil
}
