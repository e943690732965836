package assignment

import (
	"context"
	"fmt"
	"math/bits"
	"time"
)

// eps separates a real improvement from floating point noise
const eps = 1e-9

// checkEvery is how many enumeration steps pass between budget checks
const checkEvery = 1 << 12

// errBudgetExceeded reports that the exact tier gave up
type errBudgetExceeded struct {
	steps  int64
	reason string
}

func (e *errBudgetExceeded) Error() string {
	return fmt.Sprintf("exact search %s after %d steps", e.reason, e.steps)
}

// exactSolver finds the optimal partition by dynamic programming over
// subsets. Each subset is solved by choosing the group of its lowest
// rider, so every partition is enumerated exactly once.
type exactSolver struct {
	scores   PairScores
	capacity int
	minSize  int
	maxSteps int64
	deadline time.Time
	steps    int64
}

func (s *exactSolver) solve(ctx context.Context) (*partition, error) {
	n := s.scores.Len()
	if n == 0 {
		return &partition{}, nil
	}
	if n > exactHardLimit {
		return nil, fmt.Errorf("exact search supports at most %d riders, got %d", exactHardLimit, n)
	}

	size := 1 << n
	compatMask := make([]uint32, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && s.scores.Compatible(i, j) {
				compatMask[i] |= 1 << j
			}
		}
	}

	// utility and pairwise compatibility of every subset taken as one group
	groupUtil := make([]float64, size)
	valid := make([]bool, size)
	valid[0] = true
	for mask := 1; mask < size; mask++ {
		m := uint32(mask)
		low := bits.TrailingZeros32(m)
		rest := m & (m - 1)
		if !valid[rest] || rest&^compatMask[low] != 0 {
			continue
		}
		valid[mask] = true
		u := groupUtil[rest]
		for r := rest; r != 0; r &= r - 1 {
			u += s.scores.Utility(low, bits.TrailingZeros32(r))
		}
		groupUtil[mask] = u
	}

	bestUnassigned := make([]int32, size)
	bestUtil := make([]float64, size)
	choice := make([]uint32, size)

	for mask := 1; mask < size; mask++ {
		m := uint32(mask)
		low := bits.TrailingZeros32(m)
		bit := uint32(1) << low
		rest := m ^ bit
		avail := rest & compatMask[low]

		found := false
		var bu int32
		var bv float64
		var bc uint32

		for sub := avail; ; sub = (sub - 1) & avail {
			s.steps++
			if s.steps%checkEvery == 0 {
				if err := s.checkBudget(ctx); err != nil {
					return nil, err
				}
			}

			group := sub | bit
			k := bits.OnesCount32(group)
			if k <= s.capacity && k >= s.minSize && valid[group] {
				left := m ^ group
				u := bestUnassigned[left]
				v := groupUtil[group] + bestUtil[left]
				if !found || u < bu || (u == bu && v > bv+eps) {
					found, bu, bv, bc = true, u, v, group
				}
			}
			if sub == 0 {
				break
			}
		}

		if s.minSize > 1 {
			u := bestUnassigned[rest] + 1
			v := bestUtil[rest]
			if !found || u < bu || (u == bu && v > bv+eps) {
				found, bu, bv, bc = true, u, v, 0
			}
		}

		bestUnassigned[mask], bestUtil[mask], choice[mask] = bu, bv, bc
	}

	if err := s.checkBudget(ctx); err != nil {
		return nil, err
	}

	p := &partition{}
	for m := uint32(size - 1); m != 0; {
		c := choice[m]
		if c == 0 {
			low := bits.TrailingZeros32(m)
			p.unassigned = append(p.unassigned, low)
			m ^= 1 << low
			continue
		}
		p.groups = append(p.groups, maskMembers(c))
		m ^= c
	}
	return p, nil
}

func (s *exactSolver) checkBudget(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxSteps > 0 && s.steps > s.maxSteps {
		return &errBudgetExceeded{steps: s.steps, reason: "step budget exceeded"}
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return &errBudgetExceeded{steps: s.steps, reason: "time budget exceeded"}
	}
	return nil
}

func maskMembers(mask uint32) []int {
	members := make([]int, 0, bits.OnesCount32(mask))
	for m := mask; m != 0; m &= m - 1 {
		members = append(members, bits.TrailingZeros32(m))
	}
	return members
}
