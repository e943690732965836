package assignment

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-rideshare/internal/models"
	"social-rideshare/internal/scoring"
)

type outcome struct {
	unassigned int
	utility    float64
}

// bruteForce tries every way of placing riders into groups
func bruteForce(scores PairScores, capacity, minSize int) outcome {
	n := scores.Len()
	best := outcome{unassigned: n + 1}
	var groups [][]int

	var place func(r, unassigned int)
	place = func(r, unassigned int) {
		if r == n {
			total := 0.0
			for _, g := range groups {
				if len(g) < minSize {
					return
				}
				total += groupUtility(scores, g)
			}
			if unassigned < best.unassigned || (unassigned == best.unassigned && total > best.utility) {
				best = outcome{unassigned: unassigned, utility: total}
			}
			return
		}
		for gi := range groups {
			if len(groups[gi]) >= capacity || !crossCompatible(scores, groups[gi], []int{r}) {
				continue
			}
			groups[gi] = append(groups[gi], r)
			place(r+1, unassigned)
			groups[gi] = groups[gi][:len(groups[gi])-1]
		}
		groups = append(groups, []int{r})
		place(r+1, unassigned)
		groups = groups[:len(groups)-1]
		if minSize > 1 {
			place(r+1, unassigned+1)
		}
	}
	place(0, 0)
	return best
}

func TestExactMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 40; trial++ {
		n := 2 + rng.Intn(7)
		capacity := 1 + rng.Intn(4)
		minSize := 1
		if trial%3 == 0 && capacity > 1 {
			minSize = 2
		}
		scores := randomScores(rng, n, 0.25)

		solver := &exactSolver{scores: scores, capacity: capacity, minSize: minSize}
		p, err := solver.solve(context.Background())
		require.NoError(t, err)

		want := bruteForce(scores, capacity, minSize)
		assert.Equal(t, want.unassigned, len(p.unassigned), "trial %d n=%d capacity=%d", trial, n, capacity)
		assert.InDelta(t, want.utility, p.utility(scores), 1e-6, "trial %d n=%d capacity=%d", trial, n, capacity)
	}
}

func TestExactMatchesBruteForceAtTwelveRiders(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	scores := randomScores(rng, 12, 0.3)

	solver := &exactSolver{scores: scores, capacity: 3, minSize: 1}
	p, err := solver.solve(context.Background())
	require.NoError(t, err)

	want := bruteForce(scores, 3, 1)
	assert.InDelta(t, want.utility, p.utility(scores), 1e-6)
}

func TestHeuristicsNeverBeatExact(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	for trial := 0; trial < 30; trial++ {
		n := 4 + rng.Intn(6)
		capacity := 2 + rng.Intn(3)
		scores := randomScores(rng, n, 0.2)

		exact, err := (&exactSolver{scores: scores, capacity: capacity, minSize: 1}).solve(context.Background())
		require.NoError(t, err)
		greedy, err := (&greedySolver{scores: scores, capacity: capacity, minSize: 1, rounds: 50}).solve(context.Background())
		require.NoError(t, err)
		mnm, err := (&matchAndMergeSolver{scores: scores, capacity: capacity}).solve(context.Background())
		require.NoError(t, err)

		best := exact.utility(scores)
		assert.LessOrEqual(t, greedy.utility(scores), best+1e-6)
		assert.LessOrEqual(t, mnm.utility(scores), best+1e-6)
	}
}

func TestGreedyMergesBestPairFirst(t *testing.T) {
	ids := []string{"a", "b", "c"}
	scores := namedScores(ids, map[[2]string]float64{{"a", "b"}: 1, {"b", "c"}: 2})

	p, err := (&greedySolver{scores: scores, capacity: 2, minSize: 1, rounds: 50}).solve(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]int{{0, 1}, {2}}, p.groups)
}

func TestGreedyBreaksTiesByLowestRider(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	scores := namedScores(ids, map[[2]string]float64{{"a", "b"}: 5, {"c", "d"}: 5, {"a", "c"}: 5})

	groups, err := (&greedySolver{scores: scores, capacity: 2, minSize: 1}).merge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, groups)
}

func TestLocalSearchRepairsPoorPartition(t *testing.T) {
	// utility 9 for 0-1 and 2-3, -5 for the pairs the search starts from
	scores := scoring.NewMatrix(4, 10)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			scores.Set(i, j, 10, true)
		}
	}
	scores.Set(0, 1, 1, true)
	scores.Set(2, 3, 1, true)
	scores.Set(0, 3, 15, true)
	scores.Set(1, 2, 15, true)

	s := &greedySolver{scores: scores, capacity: 2, minSize: 1, rounds: 50}
	groups, err := s.localSearch(context.Background(), [][]int{{0, 3}, {1, 2}})
	require.NoError(t, err)

	assert.ElementsMatch(t, [][]int{{0, 1}, {2, 3}}, groups)
	assert.Equal(t, 18.0, (&partition{groups: groups}).utility(scores))
}

func TestLocalSearchRespectsRoundLimit(t *testing.T) {
	scores := scoring.NewMatrix(2, 10)
	scores.Set(0, 1, 15, true)

	s := &greedySolver{scores: scores, capacity: 2, minSize: 1, rounds: 0}
	groups, err := s.localSearch(context.Background(), [][]int{{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1}}, groups)
}

// friendshipGraph builds the pairwise scores of a plain friendship graph,
// where friends have utility 5 and everyone else 0
func friendshipGraph(t *testing.T, ids []string, friends [][2]string) ([]string, *scoring.Matrix) {
	t.Helper()
	riders := make([]models.Rider, len(ids))
	for i, id := range ids {
		riders[i] = models.Rider{ID: id}
	}
	edges := make([]models.Edge, len(friends))
	for i, f := range friends {
		edges[i] = models.Edge{From: f[0], To: f[1]}
	}
	g := models.NewGraph(riders, edges)
	m, err := scoring.BuildMatrix(context.Background(), scoring.NewScorer(scoring.DefaultConfig(), g, nil))
	require.NoError(t, err)
	return g.IDs(), m
}

func TestMatchAndMergeReproducesPublishedExamples(t *testing.T) {
	ids, scores := friendshipGraph(t,
		[]string{"1", "2", "3", "4", "5", "6"},
		[][2]string{{"4", "6"}, {"4", "5"}, {"3", "4"}, {"2", "3"}, {"1", "2"}},
	)
	engine := NewEngine(DefaultConfig(), nil)

	tests := []struct {
		k    int
		want [][]string
	}{
		{1, [][]string{{"1"}, {"2"}, {"3"}, {"4"}, {"5"}, {"6"}}},
		{2, [][]string{{"1", "2"}, {"3", "4"}, {"5"}, {"6"}}},
		{3, [][]string{{"1", "2"}, {"3", "4", "6"}, {"5"}}},
		{4, [][]string{{"1", "2"}, {"3", "4", "5", "6"}}},
	}
	for _, tt := range tests {
		a, err := engine.Assign(context.Background(), &Request{
			IDs: ids, Scores: scores, Capacity: tt.k, Algorithm: AlgorithmMatchAndMerge,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, memberLists(a), "k=%d", tt.k)
		assert.Equal(t, "match_and_merge", a.Tier)
	}
}

func TestByPreference(t *testing.T) {
	value := map[int]float64{0: 1, 1: 5, 2: 5, 3: 2}
	get := func(i int) float64 { return value[i] }

	low := []int{0, 1, 2, 3}
	byPreference(low, false, get)
	assert.Equal(t, []int{1, 2, 3, 0}, low)

	high := []int{0, 1, 2, 3}
	byPreference(high, true, get)
	assert.Equal(t, []int{2, 1, 3, 0}, high)
}

func TestMatchAndMergeSkipsIncompatiblePairs(t *testing.T) {
	ids := []string{"a", "b", "c"}
	scores := namedScores(ids, map[[2]string]float64{{"a", "b"}: 1, {"b", "c"}: 1}, [2]string{"a", "b"})

	p, err := (&matchAndMergeSolver{scores: scores, capacity: 3}).solve(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]int{{0}, {1, 2}}, p.groups)
}

// bruteMatchingSize is the size of a maximum matching found by exhaustion
func bruteMatchingSize(adj [][]int) int {
	n := len(adj)
	used := make([]bool, n)
	var best func(v int) int
	best = func(v int) int {
		for v < n && used[v] {
			v++
		}
		if v >= n {
			return 0
		}
		used[v] = true
		result := best(v + 1)
		for _, u := range adj[v] {
			if !used[u] {
				used[u] = true
				if r := 1 + best(v+1); r > result {
					result = r
				}
				used[u] = false
			}
		}
		used[v] = false
		return result
	}
	return best(0)
}

func TestMaxMatchingIsMaximum(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(9)
		density := 0.2 + rng.Float64()*0.5
		adj := make([][]int, n)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Float64() < density {
					adj[i] = append(adj[i], j)
					adj[j] = append(adj[j], i)
				}
			}
		}
		for i := range adj {
			rng.Shuffle(len(adj[i]), func(a, b int) { adj[i][a], adj[i][b] = adj[i][b], adj[i][a] })
		}

		match := maxMatching(adj)
		size := 0
		for v, u := range match {
			if u == -1 {
				continue
			}
			require.Equal(t, v, match[u], "trial %d: matching must be symmetric", trial)
			require.Contains(t, adj[v], u, "trial %d: matched pair must be an edge", trial)
			if u > v {
				size++
			}
		}
		require.Equal(t, bruteMatchingSize(adj), size, "trial %d: %v", trial, adj)
	}
}

func TestMaxMatchingAugmentsGreedyStart(t *testing.T) {
	// greedy pairs 0 with 2 first; the maximum is 0-1 and 2-3
	adj := [][]int{{2, 1}, {0}, {0, 3}, {2}}
	assert.Equal(t, []int{1, 0, 3, 2}, maxMatching(adj))
}

func TestMaxMatchingShrinksBlossom(t *testing.T) {
	// a triangle with a stem: 3-0, and the odd cycle 0-1-2, plus 2-4
	adj := [][]int{{1, 2, 3}, {0, 2}, {1, 0, 4}, {0}, {2}}
	match := maxMatching(adj)

	size := 0
	for v, u := range match {
		if u > v {
			size++
		}
	}
	assert.Equal(t, 2, size)
}

func TestBipartiteMatching(t *testing.T) {
	left := [][]int{{0, 1}, {0}, {}}
	assert.Equal(t, []int{1, 0, -1}, bipartiteMatching(left, 2))
}
