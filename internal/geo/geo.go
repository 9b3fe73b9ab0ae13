package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Min(1, math.Sqrt(a)))
	return EarthRadiusKm * c
}

// Line builds the straight two-point geometry between two stops, in
// (lon, lat) order.
func Line(lat1, lon1, lat2, lon2 float64) orb.LineString {
	return orb.LineString{{lon1, lat1}, {lon2, lat2}}
}
