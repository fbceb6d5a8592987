// Package scoring converts the set of processed evidence kinds into a trust score.
package scoring

import "voxid/internal/verification/models"

const (
	// Gate is the minimum score for a record to be verified.
	Gate     = 40
	MaxScore = 100
)

var weights = map[models.EvidenceKind]int{
	models.EvidencePrimaryDocument:   40,
	models.EvidenceSecondaryDocument: 30,
	models.EvidenceVoiceSample:       20,
}

// Weight returns the contribution of a single evidence kind.
func Weight(kind models.EvidenceKind) int {
	return weights[kind]
}

// Score sums the weights of the distinct kinds, capped at MaxScore.
func Score(kinds []models.EvidenceKind) int {
	seen := make(map[models.EvidenceKind]struct{}, len(kinds))
	total := 0
	for _, k := range kinds {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		total += Weight(k)
	}
	return min(total, MaxScore)
}

func Passes(score int) bool {
	return score >= Gate
}
