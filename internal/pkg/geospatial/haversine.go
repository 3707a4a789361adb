package geospatial

import "math"

const (
	earthRadiusMeters = 6371008.8
	metersPerDegree   = 111320.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Diagonal returns the corner-to-corner distance of a box in meters.
func Diagonal(minLat, minLon, maxLat, maxLon float64) float64 {
	return Haversine(minLat, minLon, maxLat, maxLon)
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegree
	cos := math.Cos(toRad(lat))
	if cos < 1e-6 {
		// At the poles every longitude is within reach.
		return lat - latDelta, -180, lat + latDelta, 180
	}
	lonDelta := radiusMeters / (metersPerDegree * cos)

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
