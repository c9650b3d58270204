package trace

import (
	"fmt"
	"strings"

	"github.com/btafoya/pbxprobe/internal/models"
)

// BuildReason renders the human-readable, destination-aware failure
// sentence for a classified stage. Sentences stay in the operations
// team's language, matching what the alerting surface shows.
func BuildReason(cat models.Category, dest string, statusText *string, errText string) string {
	status := ""
	if statusText != nil {
		status = *statusText
	}

	switch cat {
	case models.CategoryAuth:
		return withStatus("falha de autenticacao SIP", status)

	case models.CategoryRoute:
		switch {
		case strings.HasPrefix(status, "403"):
			return withStatus(fmt.Sprintf("permissao de discagem para %s negada", dest), status)
		case strings.HasPrefix(status, "404"):
			return withStatus(fmt.Sprintf("rota nao encontrada para %s", dest), status)
		case strings.HasPrefix(status, "488"):
			return withStatus(fmt.Sprintf("incompatibilidade de midia/codec com %s", dest), status)
		default:
			return withStatus(fmt.Sprintf("falha de rota/permissao para %s", dest), status)
		}

	case models.CategoryNetwork:
		if strings.Contains(strings.ToLower(errText), "timeout") {
			return fmt.Sprintf("timeout de rede ao contatar %s", dest)
		}
		return fmt.Sprintf("falha de rede ao contatar %s", dest)

	default:
		return withStatus(fmt.Sprintf("falha desconhecida ao contatar %s", dest), status)
	}
}

func withStatus(sentence, status string) string {
	if status == "" {
		return sentence
	}
	return fmt.Sprintf("%s (%s)", sentence, status)
}
