// Package geo provides great-circle distance math for geofence checks.
package geo

import "math"

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000

// DistanceM returns the haversine distance in meters between two WGS84
// coordinate pairs.
func DistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// WithinRadius reports whether the point (lat, lon) lies within radiusM
// meters of the center (centerLat, centerLon).
func WithinRadius(lat, lon, centerLat, centerLon, radiusM float64) bool {
	return DistanceM(lat, lon, centerLat, centerLon) <= radiusM
}
