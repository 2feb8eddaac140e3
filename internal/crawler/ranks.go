package crawler

// MissingRanks returns, in ascending order, every rank in [1, maxRank] that is
// absent from observed. Duplicates and out-of-range values in observed are ignored.
func MissingRanks(observed []int, maxRank int) []int {
	missing := []int{}
	if maxRank <= 0 {
		return missing
	}
	seen := make(map[int]struct{}, len(observed))
	for _, r := range observed {
		seen[r] = struct{}{}
	}
	for r := 1; r <= maxRank; r++ {
		if _, ok := seen[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// MaxRank returns the highest rank among records, or 0 for none.
func MaxRank(records []RawRecord) int {
	highest := 0
	for _, r := range records {
		if r.Rank > highest {
			highest = r.Rank
		}
	}
	return highest
}

// Ranks extracts the rank of every record.
func Ranks(records []RawRecord) []int {
	out := make([]int, 0, len(records))
	for _, r := range records {
		out = append(out, r.Rank)
	}
	return out
}
