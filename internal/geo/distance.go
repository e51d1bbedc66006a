package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	earthRadiusM = 6371000.0
	deg2rad      = math.Pi / 180.0

	// meters per degree of latitude, used for meter<->degree conversions
	metersPerDegree = earthRadiusM * deg2rad
)

// EquirectM returns the equirectangular-approximation distance between two
// lng/lat points in meters, using the mean latitude for the longitude scale.
// Adequate for regional extents; not a geodesic.
func EquirectM(a, b orb.Point) float64 {
	latA := a[1] * deg2rad
	latB := b[1] * deg2rad
	meanLat := (latA + latB) / 2

	dx := (b[0] - a[0]) * deg2rad * math.Cos(meanLat)
	dy := latB - latA

	return math.Sqrt(dx*dx+dy*dy) * earthRadiusM
}

// EquirectKm is EquirectM in kilometers
func EquirectKm(a, b orb.Point) float64 {
	return EquirectM(a, b) / 1000.0
}

// HaversineM calculates the great-circle distance between two coordinates in
// meters
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * deg2rad
	lat2Rad := lat2 * deg2rad
	deltaLat := (lat2 - lat1) * deg2rad
	deltaLon := (lon2 - lon1) * deg2rad

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// LineLengthM returns the summed equirectangular length of a linestring in
// meters
func LineLengthM(ls orb.LineString) float64 {
	total := 0.0
	for i := 0; i < len(ls)-1; i++ {
		total += EquirectM(ls[i], ls[i+1])
	}
	return total
}

// LineLengthKm is LineLengthM in kilometers
func LineLengthKm(ls orb.LineString) float64 {
	return LineLengthM(ls) / 1000.0
}

// MetersToDegrees converts a tolerance in meters to an approximate degree
// span at the given latitude. Used to size grid cells and bbox padding.
func MetersToDegrees(m, atLat float64) float64 {
	scale := math.Cos(atLat * deg2rad)
	if scale < 0.01 {
		scale = 0.01
	}
	return m / (metersPerDegree * scale)
}

// PadBound expands a bounding box by the given number of meters on all sides
func PadBound(b orb.Bound, padM float64) orb.Bound {
	midLat := (b.Min[1] + b.Max[1]) / 2
	d := MetersToDegrees(padM, midLat)
	return orb.Bound{
		Min: orb.Point{b.Min[0] - d, b.Min[1] - d},
		Max: orb.Point{b.Max[0] + d, b.Max[1] + d},
	}
}

// FiniteCoords reports whether every coordinate of the linestring is finite
func FiniteCoords(ls orb.LineString) bool {
	for _, p := range ls {
		if math.IsNaN(p[0]) || math.IsInf(p[0], 0) || math.IsNaN(p[1]) || math.IsInf(p[1], 0) {
			return false
		}
	}
	return true
}
