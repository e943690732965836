package models

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is finite and inside lat/lng ranges
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// RoundCoordinate rounds to 5 decimal places (~1m precision), the precision used for cache keys
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// TimeWindow bounds when a rider is able to depart
type TimeWindow struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Overlaps reports whether two windows share at least one instant
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return !w.Earliest.After(o.Latest) && !o.Earliest.After(w.Latest)
}

// Rider is a person waiting to be placed into a shared ride
type Rider struct {
	ID                 string       `json:"id"`
	Origin             *Coordinates `json:"origin,omitempty"`
	Destination        *Coordinates `json:"destination,omitempty"`
	OriginAddress      string       `json:"origin_address,omitempty"`
	DestinationAddress string       `json:"destination_address,omitempty"`
	Window             *TimeWindow  `json:"window,omitempty"`
	Tags               []string     `json:"tags,omitempty"`
}

// HasTrip reports whether both ends of the rider's trip are known
func (r *Rider) HasTrip() bool {
	return r.Origin != nil && r.Destination != nil
}

// Edge links two riders. A nil Weight marks a friendship link, a set Weight
// is an explicit pairwise cost for the pair.
type Edge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Weight *float64 `json:"weight,omitempty"`
}

// IsFriendship reports whether the edge carries no explicit cost
func (e *Edge) IsFriendship() bool {
	return e.Weight == nil
}

// Graph holds the riders of a single request, ordered by ID
type Graph struct {
	Riders []Rider `json:"riders"`
	Edges  []Edge  `json:"edges"`

	index map[string]int
}

// NewGraph orders riders by ID and indexes them. It does not validate.
func NewGraph(riders []Rider, edges []Edge) *Graph {
	sorted := make([]Rider, len(riders))
	copy(sorted, riders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return LessID(sorted[i].ID, sorted[j].ID)
	})

	g := &Graph{
		Riders: sorted,
		Edges:  edges,
		index:  make(map[string]int, len(sorted)),
	}
	for i, r := range sorted {
		g.index[r.ID] = i
	}
	return g
}

// Len returns the number of riders
func (g *Graph) Len() int {
	return len(g.Riders)
}

// Index returns the position of a rider ID
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// IDs returns rider IDs in graph order
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.Riders))
	for i, r := range g.Riders {
		ids[i] = r.ID
	}
	return ids
}

// HasFriendships reports whether any edge is a friendship link
func (g *Graph) HasFriendships() bool {
	for i := range g.Edges {
		if g.Edges[i].IsFriendship() {
			return true
		}
	}
	return false
}

// LessID orders rider IDs. Integer IDs compare numerically and sort before
// other IDs, everything else compares lexically. Distinct IDs of equal
// value ("01" and "1") fall back to lexical order.
func LessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na == nb {
			return a < b
		}
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// SortIDs sorts rider IDs in place using LessID
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return LessID(ids[i], ids[j]) })
}

// Group is one shared ride
type Group struct {
	Members []string `json:"members"`
	Cost    float64  `json:"cost"`
	Utility float64  `json:"utility"`
}

// Assignment is the partition produced for a single request
type Assignment struct {
	Capacity   int      `json:"capacity"`
	Groups     []Group  `json:"groups"`
	Unassigned []string `json:"unassigned"`
	TotalCost  float64  `json:"total_cost"`
	Utility    float64  `json:"utility"`
	Tier       string   `json:"tier"`
	Warnings   []string `json:"warnings"`
}

// RiderCount returns how many riders the assignment covers
func (a *Assignment) RiderCount() int {
	n := len(a.Unassigned)
	for _, g := range a.Groups {
		n += len(g.Members)
	}
	return n
}

// DistanceCacheEntry represents a cached distance lookup
type DistanceCacheEntry struct {
	Origin         Coordinates `json:"origin"`
	Destination    Coordinates `json:"destination"`
	DistanceMeters float64     `json:"distance_meters"`
	DurationSecs   float64     `json:"duration_secs"`
}
