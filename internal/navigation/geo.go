// Package navigation turns stored routes into spoken guidance: route
// selection for a free-text destination, turn-by-turn steps, and proximity
// announcements while a visitor walks.
package navigation

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000

// Point is a WGS84 position.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle (haversine) distance in meters.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Bearing returns the initial bearing from a to b in degrees, in [0, 360).
func Bearing(a, b Point) float64 {
	lat1Rad := toRadians(a.Lat)
	lat2Rad := toRadians(b.Lat)
	deltaLon := toRadians(b.Lng - a.Lng)

	y := math.Sin(deltaLon) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) -
		math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

// HeadingToText buckets a bearing into one of eight compass points. Each
// point owns the 45 degree sector centred on it.
func HeadingToText(heading float64) string {
	switch {
	case heading >= 337.5 || heading < 22.5:
		return "north"
	case heading < 67.5:
		return "northeast"
	case heading < 112.5:
		return "east"
	case heading < 157.5:
		return "southeast"
	case heading < 202.5:
		return "south"
	case heading < 247.5:
		return "southwest"
	case heading < 292.5:
		return "west"
	default:
		return "northwest"
	}
}

// NormalizeLng wraps a longitude into [-180, 180).
func NormalizeLng(lng float64) float64 {
	if lng >= -180 && lng < 180 {
		return lng
	}
	n := math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return lng
	}
	return n
}

// FormatMeters renders a distance the way it is read out: whole meters below
// one kilometer, kilometers with two decimals above.
func FormatMeters(distance float64) string {
	if distance < 1000 {
		return fmt.Sprintf("%.0f m", distance)
	}
	return fmt.Sprintf("%.2f km", distance/1000)
}

// toRadians converts an angle from degrees to radians.
func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// toDegrees converts an angle from radians to degrees.
func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
