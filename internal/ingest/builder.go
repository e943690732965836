package ingest

import (
	"math"

	"social-rideshare/internal/models"
)

// builder accumulates riders and edges while collecting every violated
// constraint, so callers see all problems at once
type builder struct {
	verr    models.ValidationError
	riders  []models.Rider
	seen    map[string]int
	edges   []models.Edge
	pairs   map[[2]string]int
	autoAdd bool
}

func newBuilder(autoAdd bool) *builder {
	return &builder{
		seen:    make(map[string]int),
		pairs:   make(map[[2]string]int),
		autoAdd: autoAdd,
	}
}

func (b *builder) addRider(field string, r models.Rider) {
	if r.ID == "" {
		b.verr.Add(field+".id", "node id must not be empty")
		return
	}
	if _, dup := b.seen[r.ID]; dup {
		b.verr.Add(field+".id", "duplicate node id %q", r.ID)
		return
	}
	if r.Origin != nil && !r.Origin.Valid() {
		b.verr.Add(field+".origin", "coordinates out of range")
	}
	if r.Destination != nil && !r.Destination.Valid() {
		b.verr.Add(field+".destination", "coordinates out of range")
	}
	if r.Window != nil && r.Window.Earliest.After(r.Window.Latest) {
		b.verr.Add(field, "earliest must not be after latest")
	}

	b.seen[r.ID] = len(b.riders)
	b.riders = append(b.riders, r)
}

// ensureRider declares a rider implicitly, as adjacency forms do
func (b *builder) ensureRider(id string) {
	if _, ok := b.seen[id]; ok {
		return
	}
	b.seen[id] = len(b.riders)
	b.riders = append(b.riders, models.Rider{ID: id})
}

func (b *builder) addEdge(field, from, to string, weight *float64) {
	if from == "" || to == "" {
		b.verr.Add(field, "edge endpoints must not be empty")
		return
	}
	if from == to {
		b.verr.Add(field, "self-loop on %q is not allowed", from)
		return
	}
	if weight != nil && (math.IsNaN(*weight) || math.IsInf(*weight, 0) || *weight < 0) {
		b.verr.Add(field+".weight", "must be a non-negative number, got %g", *weight)
		return
	}

	for _, id := range []string{from, to} {
		if _, ok := b.seen[id]; ok {
			continue
		}
		if !b.autoAdd {
			b.verr.Add(field, "unknown node %q", id)
			return
		}
		b.ensureRider(id)
	}

	key := [2]string{from, to}
	if models.LessID(to, from) {
		key = [2]string{to, from}
	}
	if i, ok := b.pairs[key]; ok {
		if !sameWeight(b.edges[i].Weight, weight) {
			b.verr.Add(field, "conflicting weights for pair %q-%q", key[0], key[1])
		}
		return
	}

	b.pairs[key] = len(b.edges)
	b.edges = append(b.edges, models.Edge{From: key[0], To: key[1], Weight: weight})
}

func (b *builder) graph() (*models.Graph, error) {
	if err := b.verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return models.NewGraph(b.riders, b.edges), nil
}

func sameWeight(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
