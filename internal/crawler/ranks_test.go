package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMissingRanks(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		observed []int
		max      int
		want     []int
	}{
		{"gap in the middle", []int{1, 2, 4}, 4, []int{3}},
		{"contiguous", []int{1, 2, 3}, 3, []int{}},
		{"empty", []int{}, 0, []int{}},
		{"unordered with duplicates", []int{5, 1, 5, 3}, 5, []int{2, 4}},
		{"nothing observed", nil, 3, []int{1, 2, 3}},
		{"out of range values ignored", []int{0, -1, 7, 2}, 2, []int{1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, MissingRanks(tc.observed, tc.max))
		})
	}
}

func TestMaxRankAndRanks(t *testing.T) {
	t.Parallel()

	records := []RawRecord{{Rank: 2}, {Rank: 9}, {Rank: 4}}
	require.Equal(t, 9, MaxRank(records))
	require.Equal(t, []int{2, 9, 4}, Ranks(records))
	require.Equal(t, 0, MaxRank(nil))
}
