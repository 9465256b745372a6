package vector

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b. Zero
// vectors and vectors of different length score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SortResults orders results by descending score. seq reports each result's
// insertion position and breaks ties.
func SortResults(results []QueryResult, seq func(i int) int64) {
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := results[idx[a]], results[idx[b]]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		return seq(idx[a]) < seq(idx[b])
	})

	sorted := make([]QueryResult, len(results))
	for i, j := range idx {
		sorted[i] = results[j]
	}
	copy(results, sorted)
}

// Truncate returns at most k results.
func Truncate(results []QueryResult, k int) []QueryResult {
	if k < 0 {
		k = 0
	}
	if len(results) > k {
		return results[:k]
	}
	return results
}
