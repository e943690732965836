package assignment

import (
	"context"
	"fmt"
	"strings"

	"social-rideshare/internal/models"
)

// Algorithm selects how riders are partitioned
type Algorithm string

const (
	AlgorithmAuto          Algorithm = "auto"            // exact when small enough, greedy otherwise
	AlgorithmExact         Algorithm = "exact"           // subset dynamic programming, global optimum
	AlgorithmGreedy        Algorithm = "greedy"          // merge by best gain, then local search
	AlgorithmMatchAndMerge Algorithm = "match_and_merge" // k-1 rounds of matching and merging
)

// ParseAlgorithm maps a user supplied name to an Algorithm. An empty name
// selects AlgorithmAuto.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case "":
		return AlgorithmAuto, nil
	case AlgorithmAuto, AlgorithmExact, AlgorithmGreedy, AlgorithmMatchAndMerge:
		return a, nil
	case "mnm", "match-and-merge":
		return AlgorithmMatchAndMerge, nil
	}
	verr := &models.ValidationError{}
	verr.Add("algorithm", "unknown algorithm %q, expected one of auto, exact, greedy, match_and_merge", name)
	return "", verr
}

// PairScores is the pairwise view of a rider graph the engine optimizes over
type PairScores interface {
	Len() int
	Cost(i, j int) float64
	Utility(i, j int) float64
	Compatible(i, j int) bool
}

// Request contains the input for one assignment
type Request struct {
	// IDs names riders in the order Scores addresses them
	IDs       []string
	Scores    PairScores
	Capacity  int
	Algorithm Algorithm
}

// Assigner partitions riders into shared rides
type Assigner interface {
	Assign(ctx context.Context, req *Request) (*models.Assignment, error)
}

// partition is a solution in rider positions
type partition struct {
	groups     [][]int
	unassigned []int
}

func (p *partition) utility(scores PairScores) float64 {
	total := 0.0
	for _, g := range p.groups {
		total += groupUtility(scores, g)
	}
	return total
}

func groupUtility(scores PairScores, members []int) float64 {
	total := 0.0
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			total += scores.Utility(members[x], members[y])
		}
	}
	return total
}

func groupCost(scores PairScores, members []int) float64 {
	total := 0.0
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			total += scores.Cost(members[x], members[y])
		}
	}
	return total
}

// crossUtility sums the utility of every pair with one rider in a and one in b
func crossUtility(scores PairScores, a, b []int) float64 {
	total := 0.0
	for _, x := range a {
		for _, y := range b {
			total += scores.Utility(x, y)
		}
	}
	return total
}

func crossCompatible(scores PairScores, a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if !scores.Compatible(x, y) {
				return false
			}
		}
	}
	return true
}

func errUnknownAlgorithm(a Algorithm) error {
	return fmt.Errorf("unknown algorithm %q", a)
}
