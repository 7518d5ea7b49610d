// Package levenshtein measures edit distance between domain names.
package levenshtein

// Distance returns the Levenshtein edit distance between a and b, counted
// in runes. It keeps a single row of the distance table.
func Distance(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	row := make([]int, len(br)+1)
	for j := range row {
		row[j] = j
	}
	for i, ca := range ar {
		diag := row[0]
		row[0] = i + 1
		for j, cb := range br {
			up := row[j+1]
			cost := 1
			if ca == cb {
				cost = 0
			}
			row[j+1] = min(up+1, row[j]+1, diag+cost)
			diag = up
		}
	}
	return row[len(br)]
}

// Closest returns the candidate nearest to s within limit edits, or "" when
// s is itself a candidate or nothing is close enough. Ties go to the
// earlier candidate.
func Closest(s string, candidates []string, limit int) string {
	best, bestDist := "", limit+1
	for _, c := range candidates {
		if c == s {
			return ""
		}
		if d := Distance(s, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
