package trace

import (
	"strings"

	"github.com/btafoya/pbxprobe/internal/models"
)

var networkKeywords = []string{
	"timeout",
	"unreachable",
	"refused",
	"cannot resolve",
	"resolving remote host",
	"network is unreachable",
	"failed to get local ip",
}

var authKeywords = []string{
	"authentication",
	"unauthorized",
	"forbidden by auth",
	"wrong password",
}

// Classify assigns a failure category using ordered precedence: process
// timeout, then network-looking error text, then SIP code semantics, then
// auth-looking error text, then unknown for any remaining error. A stage
// with no error gets no category.
func Classify(timedOut bool, stage models.Stage, sipCode *int, errText string) *models.Category {
	lower := strings.ToLower(errText)

	if timedOut {
		return models.CatPtr(models.CategoryNetwork)
	}
	if containsAny(lower, networkKeywords) {
		return models.CatPtr(models.CategoryNetwork)
	}

	if sipCode != nil {
		switch *sipCode {
		case 401, 407:
			return models.CatPtr(models.CategoryAuth)
		case 403:
			if stage == models.StageRegister || containsAny(lower, []string{"authentication", "unauthorized"}) {
				return models.CatPtr(models.CategoryAuth)
			}
			return models.CatPtr(models.CategoryRoute)
		case 404, 488:
			return models.CatPtr(models.CategoryRoute)
		}
	}

	if containsAny(lower, authKeywords) {
		return models.CatPtr(models.CategoryAuth)
	}
	if errText != "" {
		return models.CatPtr(models.CategoryUnknown)
	}
	return nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
