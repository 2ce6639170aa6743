package core

import (
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
)

// Finalize turns raw discovery output into the authoritative chapter list:
// each reference is kept at its first occurrence only, discovery order is
// preserved, indices are renumbered densely from 1, and the list is
// truncated to the cap when one is set.
func Finalize(discovered []models.Chapter, maxChapters int) []models.Chapter {
	seen := make(map[string]struct{}, len(discovered))
	final := make([]models.Chapter, 0, len(discovered))

	for _, ch := range discovered {
		if ch.Reference == "" {
			continue
		}
		if _, dup := seen[ch.Reference]; dup {
			continue
		}
		seen[ch.Reference] = struct{}{}
		ch.Index = len(final) + 1
		final = append(final, ch)
	}

	if maxChapters > 0 && len(final) > maxChapters {
		final = final[:maxChapters]
	}

	if dropped := len(discovered) - len(final); dropped > 0 {
		utils.Debugf("finalizer dropped %d duplicate or empty entries", dropped)
	}
	return final
}
