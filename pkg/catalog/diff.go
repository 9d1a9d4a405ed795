package catalog

// DiffResult partitions the title prefixes of two sorted index sequences.
// The three sets are deduplicated and pairwise disjoint; matching is by
// title only, so listings with equal titles but different native ids are
// indistinguishable here.
type DiffResult struct {
	Common    []string
	LeftOnly  []string
	RightOnly []string
}

// DiffByTitle computes the ordered intersection and per-side remainders of
// two title indices. Inputs must already be in lexical order (as produced by
// Store.TitleIndex). Runs in O(n+m).
func DiffByTitle(left, right []string) DiffResult {
	common := make([]string, 0)
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		lt, rt := TitlePrefix(left[i]), TitlePrefix(right[j])
		switch {
		case lt == rt:
			if len(common) == 0 || common[len(common)-1] != lt {
				common = append(common, lt)
			}
			i++
			j++
		case lt < rt:
			i++
		default:
			j++
		}
	}
	return DiffResult{
		Common:    common,
		LeftOnly:  onlyTitles(left, common),
		RightOnly: onlyTitles(right, common),
	}
}

// onlyTitles re-walks one original sequence against the computed common set:
// every prefix not present in common belongs to that side's "only" set.
// Duplicate titles collapse to a single output entry.
func onlyTitles(entries, common []string) []string {
	out := make([]string, 0)
	k := 0
	for _, entry := range entries {
		t := TitlePrefix(entry)
		for k < len(common) && common[k] < t {
			k++
		}
		if k < len(common) && common[k] == t {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != t {
			out = append(out, t)
		}
	}
	return out
}
