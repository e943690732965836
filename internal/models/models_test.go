package models

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphOrdersRiders(t *testing.T) {
	g := NewGraph([]Rider{{ID: "10"}, {ID: "b"}, {ID: "2"}, {ID: "a"}}, nil)

	assert.Equal(t, []string{"2", "10", "a", "b"}, g.IDs())

	i, ok := g.Index("a")
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = g.Index("missing")
	assert.False(t, ok)
}

func TestLessID(t *testing.T) {
	assert.True(t, LessID("2", "10"))
	assert.True(t, LessID("10", "a"))
	assert.True(t, LessID("A", "B"))
	assert.False(t, LessID("b", "a"))
	assert.False(t, LessID("x", "7"))
}

func TestLessIDEqualValues(t *testing.T) {
	assert.True(t, LessID("01", "1"))
	assert.False(t, LessID("1", "01"))
	assert.False(t, LessID("1", "1"))

	ids := []string{"1", "2", "01"}
	SortIDs(ids)
	assert.Equal(t, []string{"01", "1", "2"}, ids)

	reversed := []string{"01", "2", "1"}
	SortIDs(reversed)
	assert.Equal(t, ids, reversed, "order does not depend on input order")
}

func TestTimeWindowOverlaps(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	morning := TimeWindow{Earliest: base, Latest: base.Add(time.Hour)}
	touching := TimeWindow{Earliest: base.Add(time.Hour), Latest: base.Add(2 * time.Hour)}
	evening := TimeWindow{Earliest: base.Add(10 * time.Hour), Latest: base.Add(11 * time.Hour)}

	assert.True(t, morning.Overlaps(touching))
	assert.True(t, touching.Overlaps(morning))
	assert.False(t, morning.Overlaps(evening))
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 35.6762, Lng: 139.6503}.Valid())
	assert.False(t, Coordinates{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Coordinates{Lat: 0, Lng: -181}.Valid())
	assert.False(t, Coordinates{Lat: math.NaN(), Lng: 0}.Valid())
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 40.71235, RoundCoordinate(40.712345678))
	assert.Equal(t, -74.00601, RoundCoordinate(-74.006012345))
}

func TestGraphHasFriendships(t *testing.T) {
	w := 3.0
	weighted := NewGraph([]Rider{{ID: "a"}, {ID: "b"}}, []Edge{{From: "a", To: "b", Weight: &w}})
	assert.False(t, weighted.HasFriendships())

	friends := NewGraph([]Rider{{ID: "a"}, {ID: "b"}}, []Edge{{From: "a", To: "b"}})
	assert.True(t, friends.HasFriendships())
}

func TestValidationErrorListsEveryProblem(t *testing.T) {
	verr := &ValidationError{}
	require.NoError(t, verr.ErrOrNil())

	verr.Add("nodes[1].id", "duplicate node id %q", "a")
	verr.Add("edges[0].weight", "must be non-negative, got %g", -1.0)

	err := verr.ErrOrNil()
	require.Error(t, err)
	assert.Equal(t, "nodes[1].id", verr.Field())
	assert.Contains(t, err.Error(), `duplicate node id "a"`)
	assert.Contains(t, err.Error(), "must be non-negative")

	var target *ValidationError
	assert.True(t, errors.As(err, &target))
}

func TestAssignmentRiderCount(t *testing.T) {
	a := Assignment{
		Groups:     []Group{{Members: []string{"a", "b"}}, {Members: []string{"c"}}},
		Unassigned: []string{"d"},
	}
	assert.Equal(t, 4, a.RiderCount())
}
