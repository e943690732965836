// Package scoring computes the pairwise cost of two riders sharing a ride
// and whether they may share one at all.
//
// The cost of a pair is Alpha*detourKm + Beta*socialDistance unless the
// graph carries an explicit weight for the pair, in which case the weight
// is the cost. The utility of a pair is the share reward minus its cost.
//
// Explicit weights carry the graph's own scale. When the largest of them
// reaches ShareReward, the reward for that graph is raised to the largest
// weight plus ShareReward, so the cheapest pairings still win over riding
// alone.
package scoring

import (
	"math"

	"social-rideshare/internal/models"
)

// Scorer evaluates pairs of riders of one graph, addressed by their
// position in graph order
type Scorer struct {
	cfg         Config
	graph       *models.Graph
	table       DistanceTable
	weights     map[[2]int]float64
	friends     map[[2]int]bool
	friendships bool
	reward      float64
}

// NewScorer prepares a scorer for g. table may be nil, in which case
// straight-line distances are used.
func NewScorer(cfg Config, g *models.Graph, table DistanceTable) *Scorer {
	s := &Scorer{
		cfg:     cfg,
		graph:   g,
		table:   table,
		weights: make(map[[2]int]float64),
		friends: make(map[[2]int]bool),
		reward:  cfg.ShareReward,
	}
	maxWeight := math.Inf(-1)
	for i := range g.Edges {
		e := &g.Edges[i]
		a, okA := g.Index(e.From)
		b, okB := g.Index(e.To)
		if !okA || !okB {
			continue
		}
		key := pairKey(a, b)
		if e.IsFriendship() {
			s.friends[key] = true
			s.friendships = true
		} else {
			s.weights[key] = *e.Weight
			maxWeight = math.Max(maxWeight, *e.Weight)
		}
	}
	if maxWeight >= cfg.ShareReward {
		s.reward = maxWeight + cfg.ShareReward
	}
	return s
}

// ShareReward returns the reward a pair of this graph earns before costs
func (s *Scorer) ShareReward() float64 {
	return s.reward
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// Config returns the weights the scorer was built with
func (s *Scorer) Config() Config {
	return s.cfg
}

// Len returns the number of riders being scored
func (s *Scorer) Len() int {
	return s.graph.Len()
}

// Cost returns the cost of riders i and j sharing a ride
func (s *Scorer) Cost(i, j int) float64 {
	if i == j {
		return 0
	}
	if w, ok := s.weights[pairKey(i, j)]; ok {
		return w
	}
	return s.cfg.Alpha*s.Detour(i, j) + s.cfg.Beta*s.SocialDistance(i, j)
}

// Utility returns the share reward minus the pair's cost
func (s *Scorer) Utility(i, j int) float64 {
	return s.reward - s.Cost(i, j)
}

// Compatible reports whether i and j may share a ride
func (s *Scorer) Compatible(i, j int) bool {
	if i == j {
		return true
	}
	a, b := &s.graph.Riders[i], &s.graph.Riders[j]

	if s.cfg.HardTimeWindows && a.Window != nil && b.Window != nil && !a.Window.Overlaps(*b.Window) {
		return false
	}
	if s.cfg.MaxDetourKm > 0 && a.HasTrip() && b.HasTrip() && s.Detour(i, j) > s.cfg.MaxDetourKm {
		return false
	}
	return true
}

// Detour returns how many extra kilometres a shared ride adds over the
// longer of the two solo trips
func (s *Scorer) Detour(i, j int) float64 {
	a, b := &s.graph.Riders[i], &s.graph.Riders[j]
	if !a.HasTrip() || !b.HasTrip() {
		return s.cfg.DefaultDetourKm
	}

	oa, da := *a.Origin, *a.Destination
	ob, db := *b.Origin, *b.Destination

	soloA := s.distance(oa, da)
	soloB := s.distance(ob, db)

	pooled := math.Inf(1)
	for _, route := range [][4]models.Coordinates{
		{oa, ob, da, db},
		{oa, ob, db, da},
		{ob, oa, da, db},
		{ob, oa, db, da},
	} {
		d := s.distance(route[0], route[1]) + s.distance(route[1], route[2]) + s.distance(route[2], route[3])
		if d < pooled {
			pooled = d
		}
	}

	return math.Max(0, pooled-math.Max(soloA, soloB))
}

// SocialDistance returns 0 for a close pair and 1 for strangers
func (s *Scorer) SocialDistance(i, j int) float64 {
	a, b := &s.graph.Riders[i], &s.graph.Riders[j]
	if len(a.Tags) > 0 || len(b.Tags) > 0 {
		return jaccardDistance(a.Tags, b.Tags)
	}
	if s.friendships {
		if s.friends[pairKey(i, j)] {
			return 0
		}
		return 1
	}
	return s.cfg.DefaultSocialDistance
}

// GroupCost sums the cost over every pair of members
func (s *Scorer) GroupCost(members []int) float64 {
	total := 0.0
	for x := 0; x < len(members); x++ {
		for y := x + 1; y < len(members); y++ {
			total += s.Cost(members[x], members[y])
		}
	}
	return total
}

func (s *Scorer) distance(a, b models.Coordinates) float64 {
	if s.table != nil {
		if d, ok := s.table.DistanceKm(a, b); ok {
			return d
		}
	}
	return HaversineKm(a, b)
}

// jaccardDistance expects both tag lists sorted and free of duplicates
func jaccardDistance(a, b []string) float64 {
	var shared, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			shared++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return 1 - float64(shared)/float64(union)
}
