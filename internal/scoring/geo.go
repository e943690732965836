package scoring

import (
	"math"

	"social-rideshare/internal/models"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points
func HaversineKm(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceTable serves precomputed road distances
type DistanceTable interface {
	// DistanceKm reports the distance from a to b, or false when unknown
	DistanceKm(a, b models.Coordinates) (float64, bool)
}

type pointKey struct {
	lat, lng float64
}

func keyOf(c models.Coordinates) pointKey {
	return pointKey{lat: models.RoundCoordinate(c.Lat), lng: models.RoundCoordinate(c.Lng)}
}

type matrixTable struct {
	km map[[2]pointKey]float64
}

// NewTable indexes a distance matrix in kilometres, where km[i][j] is the
// distance from points[i] to points[j]. Negative or non-finite entries are
// treated as unknown.
func NewTable(points []models.Coordinates, km [][]float64) DistanceTable {
	t := &matrixTable{km: make(map[[2]pointKey]float64, len(points)*len(points))}
	for i := range points {
		if i >= len(km) {
			break
		}
		for j := range points {
			if j >= len(km[i]) {
				break
			}
			d := km[i][j]
			if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
				continue
			}
			t.km[[2]pointKey{keyOf(points[i]), keyOf(points[j])}] = d
		}
	}
	return t
}

func (t *matrixTable) DistanceKm(a, b models.Coordinates) (float64, bool) {
	d, ok := t.km[[2]pointKey{keyOf(a), keyOf(b)}]
	return d, ok
}
