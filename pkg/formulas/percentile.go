package formulas

import "sort"

// PercentileRank converts a map of raw scores to 0-100 percentiles via
// average rank (ties share rank), the conversion the factor calculator
// applies to every raw factor before weighting.
func PercentileRank(raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	n := len(raw)
	if n == 0 {
		return out
	}
	if n == 1 {
		for k := range raw {
			out[k] = 50
		}
		return out
	}

	keys := make([]string, 0, n)
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return raw[keys[i]] < raw[keys[j]] })

	// Assign average rank to tied groups, then scale rank to [0, 100].
	i := 0
	for i < n {
		j := i
		for j+1 < n && raw[keys[j+1]] == raw[keys[i]] {
			j++
		}
		avgRank := float64(i+j) / 2 // 0-indexed average position of the tied group
		percentile := avgRank / float64(n-1) * 100
		for k := i; k <= j; k++ {
			out[keys[k]] = percentile
		}
		i = j + 1
	}
	return out
}

// InvertPercentile flips a percentile so that a lower raw value scores
// higher, used for inverted factors like P/E, P/B, and volatility.
func InvertPercentile(p float64) float64 {
	return 100 - p
}
