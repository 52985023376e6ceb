package louvain

import "sort"

// Normalize remaps community ids to the dense range 0..C-1, ranked by the
// sorted order of the original ids. It does not modify its argument.
func Normalize(assignment map[int64]int) map[int64]int {
	seen := make(map[int]struct{})
	for _, c := range assignment {
		seen[c] = struct{}{}
	}

	ids := make([]int, 0, len(seen))
	for c := range seen {
		ids = append(ids, c)
	}
	sort.Ints(ids)

	remap := make(map[int]int, len(ids))
	for rank, c := range ids {
		remap[c] = rank
	}

	normalized := make(map[int64]int, len(assignment))
	for node, c := range assignment {
		normalized[node] = remap[c]
	}
	return normalized
}
