package assignment

import (
	"context"
	"sort"
)

// greedySolver grows groups by repeatedly merging the two groups with the
// highest positive gain, then polishes the result with local search
type greedySolver struct {
	scores   PairScores
	capacity int
	minSize  int
	rounds   int
}

func (s *greedySolver) solve(ctx context.Context) (*partition, error) {
	groups, err := s.merge(ctx)
	if err != nil {
		return nil, err
	}
	if groups, err = s.localSearch(ctx, groups); err != nil {
		return nil, err
	}
	return &partition{groups: groups}, nil
}

// merge starts from singletons. A group is identified by its lowest rider,
// which never changes since the surviving side of a merge is the lower one.
func (s *greedySolver) merge(ctx context.Context) ([][]int, error) {
	n := s.scores.Len()
	members := make([][]int, n)
	gain := make([][]float64, n)
	ok := make([][]bool, n)
	for i := 0; i < n; i++ {
		members[i] = []int{i}
		gain[i] = make([]float64, n)
		ok[i] = make([]bool, n)
		for j := 0; j < n; j++ {
			if i != j {
				gain[i][j] = s.scores.Utility(i, j)
				ok[i][j] = s.scores.Compatible(i, j)
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bx, by := -1, -1
		best := eps
		for x := 0; x < n; x++ {
			if members[x] == nil || len(members[x]) >= s.capacity {
				continue
			}
			for y := x + 1; y < n; y++ {
				if members[y] == nil || !ok[x][y] || len(members[x])+len(members[y]) > s.capacity {
					continue
				}
				if gain[x][y] > best {
					best, bx, by = gain[x][y], x, y
				}
			}
		}
		if bx < 0 {
			break
		}

		members[bx] = append(members[bx], members[by]...)
		members[by] = nil
		for k := 0; k < n; k++ {
			if k == bx || k == by {
				continue
			}
			gain[bx][k] += gain[by][k]
			gain[k][bx] = gain[bx][k]
			ok[bx][k] = ok[bx][k] && ok[by][k]
			ok[k][bx] = ok[bx][k]
		}
	}

	groups := make([][]int, 0, n)
	for _, m := range members {
		if m != nil {
			sort.Ints(m)
			groups = append(groups, m)
		}
	}
	return groups, nil
}

// localSearch applies single rider moves and pairwise swaps that strictly
// raise utility, for at most s.rounds passes
func (s *greedySolver) localSearch(ctx context.Context, groups [][]int) ([][]int, error) {
	n := s.scores.Len()
	where := make([]int, n)
	for g, members := range groups {
		for _, r := range members {
			where[r] = g
		}
	}

	for round := 0; round < s.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		improved := false
		for r := 0; r < n; r++ {
			if s.tryMove(r, &groups, where) || s.trySwap(r, groups, where) {
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			sort.Ints(g)
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *greedySolver) tryMove(r int, groups *[][]int, where []int) bool {
	gs := *groups
	from := where[r]
	if len(gs[from]) > 1 && s.minSize > 1 && len(gs[from])-1 < s.minSize {
		return false
	}
	lose := s.affinity(r, gs[from], -1)

	best, target := eps, -1
	for h := range gs {
		if h == from || len(gs[h]) == 0 || len(gs[h]) >= s.capacity || !s.fits(r, gs[h], -1) {
			continue
		}
		if d := s.affinity(r, gs[h], -1) - lose; d > best {
			best, target = d, h
		}
	}
	alone := s.minSize <= 1 && len(gs[from]) > 1 && -lose > best

	switch {
	case alone:
		gs[from] = without(gs[from], r)
		*groups = append(gs, []int{r})
		where[r] = len(*groups) - 1
	case target >= 0:
		gs[from] = without(gs[from], r)
		gs[target] = append(gs[target], r)
		where[r] = target
	default:
		return false
	}
	return true
}

func (s *greedySolver) trySwap(r int, groups [][]int, where []int) bool {
	g := where[r]
	lose := s.affinity(r, groups[g], -1)
	for q := r + 1; q < len(where); q++ {
		h := where[q]
		if h == g || !s.fits(r, groups[h], q) || !s.fits(q, groups[g], r) {
			continue
		}
		d := s.affinity(r, groups[h], q) - lose + s.affinity(q, groups[g], r) - s.affinity(q, groups[h], -1)
		if d > eps {
			groups[g] = append(without(groups[g], r), q)
			groups[h] = append(without(groups[h], q), r)
			where[r], where[q] = h, g
			return true
		}
	}
	return false
}

// affinity sums r's utility with every member of group except r and skip
func (s *greedySolver) affinity(r int, group []int, skip int) float64 {
	total := 0.0
	for _, m := range group {
		if m != r && m != skip {
			total += s.scores.Utility(r, m)
		}
	}
	return total
}

// fits reports whether r is compatible with every member of group except skip
func (s *greedySolver) fits(r int, group []int, skip int) bool {
	for _, m := range group {
		if m != r && m != skip && !s.scores.Compatible(r, m) {
			return false
		}
	}
	return true
}

func without(group []int, r int) []int {
	out := make([]int, 0, len(group))
	for _, m := range group {
		if m != r {
			out = append(out, m)
		}
	}
	return out
}
