package assignment

import "sort"

// enforceMinGroupSize merges groups smaller than minSize into compatible
// groups with room, preferring partners that are also too small, then by
// gain. Riders left in groups that are still too small become unassigned.
func enforceMinGroupSize(scores PairScores, p *partition, capacity, minSize int) {
	if minSize <= 1 {
		return
	}

	groups := p.groups
	for {
		sortGroups(groups)
		merged := false
		for i, small := range groups {
			if len(small) >= minSize {
				continue
			}

			target, targetSmall, best := -1, false, 0.0
			for j, other := range groups {
				if j == i || len(small)+len(other) > capacity || !crossCompatible(scores, small, other) {
					continue
				}
				isSmall := len(other) < minSize
				gain := crossUtility(scores, small, other)
				if target == -1 || (isSmall && !targetSmall) || (isSmall == targetSmall && gain > best+eps) {
					target, targetSmall, best = j, isSmall, gain
				}
			}
			if target == -1 {
				continue
			}

			groups[target] = append(groups[target], small...)
			sort.Ints(groups[target])
			groups = append(groups[:i], groups[i+1:]...)
			merged = true
			break
		}
		if !merged {
			break
		}
	}

	kept := groups[:0]
	for _, g := range groups {
		if len(g) < minSize {
			p.unassigned = append(p.unassigned, g...)
			continue
		}
		kept = append(kept, g)
	}
	p.groups = kept
	sort.Ints(p.unassigned)
}

// sortGroups orders groups by their lowest rider, each group sorted
func sortGroups(groups [][]int) {
	for _, g := range groups {
		sort.Ints(g)
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a][0] < groups[b][0]
	})
}
