package fuzzy

import "strings"

// SimilarityRatio returns a normalized similarity in [0, 1] between two
// strings, case-insensitive. It sums the lengths of the matching blocks found
// by recursively locating the longest common substring (the classic
// sequence-matcher ratio: 2*M / (len(a)+len(b))), so a reworded sentence that
// keeps most of its characters in order still scores high. The checklist
// reconciler treats >= 0.75 as "same item".
func SimilarityRatio(a, b string) float64 {
	ra := []rune(normalizeString(a))
	rb := []rune(normalizeString(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	matched := matchingLength(ra, rb)
	return 2.0 * float64(matched) / float64(total)
}

// matchingLength sums matching-block lengths by splitting both sequences
// around their longest common substring and recursing into the two sides.
func matchingLength(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingLength(a[:ai], b[:bi])
	total += matchingLength(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch finds the longest common substring of a and b, returning the
// start offsets in each plus the length. Earliest match in a wins ties.
func longestMatch(a, b []rune) (bestA, bestB, bestSize int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// positions of each rune in b
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	// lengths[j] = length of the match ending at a[i], b[j]
	lengths := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int, len(b2j[r]))
		for _, j := range b2j[r] {
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestA = i - k + 1
				bestB = j - k + 1
				bestSize = k
			}
		}
		lengths = next
	}
	return bestA, bestB, bestSize
}

// LevenshteinDistance calculates the edit distance between two strings: how
// many single-character insertions, deletions, or substitutions are required
// to change one into the other. Inputs are normalized first.
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(normalizeString(s1))
	r2 := []rune(normalizeString(s2))

	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	m := len(r1)
	n := len(r2)
	d := make([][]int, m+1)
	for i := range d {
		d[i] = make([]int, n+1)
	}
	for i := 0; i <= m; i++ {
		d[i][0] = i
	}
	for j := 0; j <= n; j++ {
		d[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			d[i][j] = min3(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)
		}
	}

	return d[m][n]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}

// normalizeString lowercases and collapses whitespace
func normalizeString(s string) string {
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
