package scoring

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the rider count above which rows are scored
// concurrently
const parallelThreshold = 64

// Matrix is a dense symmetric table of pair costs and compatibility
type Matrix struct {
	n           int
	shareReward float64
	cost        []float64
	compatible  []bool
}

// NewMatrix returns an n×n matrix where every pair costs 0 and is compatible
func NewMatrix(n int, shareReward float64) *Matrix {
	m := &Matrix{
		n:           n,
		shareReward: shareReward,
		cost:        make([]float64, n*n),
		compatible:  make([]bool, n*n),
	}
	for i := range m.compatible {
		m.compatible[i] = true
	}
	return m
}

// Set records both orientations of a pair
func (m *Matrix) Set(i, j int, cost float64, compatible bool) {
	m.cost[i*m.n+j] = cost
	m.cost[j*m.n+i] = cost
	m.compatible[i*m.n+j] = compatible
	m.compatible[j*m.n+i] = compatible
}

// Len returns the number of riders
func (m *Matrix) Len() int {
	return m.n
}

// ShareReward returns the reward a pair earns before costs
func (m *Matrix) ShareReward() float64 {
	return m.shareReward
}

func (m *Matrix) Cost(i, j int) float64 {
	return m.cost[i*m.n+j]
}

// Utility returns ShareReward minus the pair's cost, or 0 for i == j
func (m *Matrix) Utility(i, j int) float64 {
	if i == j {
		return 0
	}
	return m.shareReward - m.cost[i*m.n+j]
}

func (m *Matrix) Compatible(i, j int) bool {
	return m.compatible[i*m.n+j]
}

// GroupCost sums the cost over every pair of members
func (m *Matrix) GroupCost(members []int) float64 {
	total := 0.0
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			total += m.Cost(members[x], members[y])
		}
	}
	return total
}

// GroupUtility sums the utility over every pair of members
func (m *Matrix) GroupUtility(members []int) float64 {
	total := 0.0
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			total += m.Utility(members[x], members[y])
		}
	}
	return total
}

// BuildMatrix scores every pair once. Large graphs are scored on all CPUs,
// each worker owning the upper-triangle cells of its rows.
func BuildMatrix(ctx context.Context, s *Scorer) (*Matrix, error) {
	n := s.Len()
	m := NewMatrix(n, s.ShareReward())

	fillRow := func(i int) {
		for j := i + 1; j < n; j++ {
			m.Set(i, j, s.Cost(i, j), s.Compatible(i, j))
		}
	}

	if n < parallelThreshold {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fillRow(i)
		}
		return m, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fillRow(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}
