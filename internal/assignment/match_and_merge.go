package assignment

import (
	"context"
	"sort"
)

// matchAndMergeSolver implements Match and Merge (Levinger, Hazon and
// Azaria, 2022). Round 1 pairs riders with a maximum matching over the
// beneficial pairs. Each later round matches the groups formed in the round
// before with riders still alone and merges every matched pair, so after
// k-1 rounds no group exceeds k riders. On friendship graphs the result is
// within a factor 1/(k-1) of the optimum.
type matchAndMergeSolver struct {
	scores   PairScores
	capacity int
}

func (s *matchAndMergeSolver) solve(ctx context.Context) (*partition, error) {
	n := s.scores.Len()
	if n == 0 {
		return &partition{}, nil
	}

	alone := make([]bool, n)
	for i := range alone {
		alone[i] = true
	}
	if s.capacity < 2 {
		return &partition{groups: singletons(alone)}, nil
	}

	var settled, fresh [][]int

	// round 1
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && s.scores.Compatible(i, j) && s.scores.Utility(i, j) > eps {
				adj[i] = append(adj[i], j)
			}
		}
		byPreference(adj[i], false, func(j int) float64 { return s.scores.Utility(i, j) })
	}
	match := maxMatching(adj)
	for i, j := range match {
		if j > i {
			fresh = append(fresh, []int{i, j})
			alone[i], alone[j] = false, false
		}
	}

	for round := 2; round < s.capacity && len(fresh) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var lone []int
		for i, ok := range alone {
			if ok {
				lone = append(lone, i)
			}
		}
		if len(lone) == 0 {
			break
		}

		left := make([][]int, len(fresh))
		for g, members := range fresh {
			for r, rider := range lone {
				if crossCompatible(s.scores, members, []int{rider}) && crossUtility(s.scores, members, []int{rider}) > eps {
					left[g] = append(left[g], r)
				}
			}
			members := members
			// equal offers go to the rider latest in ID order
			byPreference(left[g], true, func(r int) float64 {
				return crossUtility(s.scores, members, []int{lone[r]})
			})
		}

		matched := bipartiteMatching(left, len(lone))
		var next [][]int
		for g, r := range matched {
			if r == -1 {
				settled = append(settled, fresh[g])
				continue
			}
			rider := lone[r]
			alone[rider] = false
			next = append(next, append(append([]int{}, fresh[g]...), rider))
		}
		fresh = next
	}

	groups := append(settled, fresh...)
	groups = append(groups, singletons(alone)...)
	for _, g := range groups {
		sort.Ints(g)
	}
	return &partition{groups: groups}, nil
}

// byPreference orders candidates by descending value. Ties go to the lower
// position, or to the higher one when preferHigh is set.
func byPreference(candidates []int, preferHigh bool, value func(int) float64) {
	sort.SliceStable(candidates, func(a, b int) bool {
		va, vb := value(candidates[a]), value(candidates[b])
		if va != vb {
			return va > vb
		}
		if preferHigh {
			return candidates[a] > candidates[b]
		}
		return candidates[a] < candidates[b]
	})
}

func singletons(alone []bool) [][]int {
	var groups [][]int
	for i, ok := range alone {
		if ok {
			groups = append(groups, []int{i})
		}
	}
	return groups
}
