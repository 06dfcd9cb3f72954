package strings

import "github.com/agnivade/levenshtein"

// Suggest returns the candidate closest to value by edit distance when it
// is near enough to be a likely typo: relative distance under 0.4.
func Suggest(value string, candidates []string) (string, bool) {
	value = NormalizeKey(value)
	if value == "" {
		return "", false
	}

	best, bestScore := "", 1.0
	for _, c := range candidates {
		longest := max(len(value), len(c))
		if longest == 0 {
			continue
		}
		score := float64(levenshtein.ComputeDistance(value, NormalizeKey(c))) / float64(longest)
		if score < bestScore {
			best, bestScore = c, score
		}
	}
	if best == "" || bestScore >= 0.4 {
		return "", false
	}
	return best, true
}
