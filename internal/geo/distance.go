// Package geo has the great-circle helpers used by the location check.
package geo

import (
	"math"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm is the haversine distance between a and b.
func DistanceKm(a, b models.GeoPoint) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(b.Lat - a.Lat)
	dLon := rad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
