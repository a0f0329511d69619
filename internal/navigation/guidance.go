package navigation

import (
	"fmt"
	"math"
	"sort"

	"campus_nav/internal/models"
)

// turnThresholdDegrees is the smallest change of heading read out as a turn.
const turnThresholdDegrees = 25

// SortedWaypoints returns a copy of the route's waypoints in walking order.
func SortedWaypoints(route *models.Route) []models.RouteWaypoint {
	if route == nil {
		return nil
	}
	sorted := make([]models.RouteWaypoint, len(route.Waypoints))
	copy(sorted, route.Waypoints)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	return sorted
}

func waypointPoint(wp models.RouteWaypoint) Point {
	return Point{Lat: wp.Lat, Lng: wp.Lng}
}

// TurnDelta is the signed change of heading from prev to next, in
// [-180, 180). Positive means the walker turns right.
func TurnDelta(prev, next float64) float64 {
	return math.Mod(next-prev+540, 360) - 180
}

// Guidance narrates a route leg by leg, e.g.
// "Go 120 m south to Innovation Hub then turn left.", and closes with an
// arrival line when the destination pin is known.
func Guidance(route *models.Route) []string {
	sorted := SortedWaypoints(route)
	if len(sorted) == 0 {
		return []string{}
	}

	steps := make([]string, 0, len(sorted))
	var prevBearing *float64
	for i := 1; i < len(sorted); i++ {
		from, to := waypointPoint(sorted[i-1]), waypointPoint(sorted[i])
		dist := Distance(from, to)
		bearing := Bearing(from, to)

		target := fmt.Sprintf("waypoint %d", i+1)
		if sorted[i].Location != nil {
			target = sorted[i].Location.Name
		}

		turn := ""
		if prevBearing != nil {
			delta := TurnDelta(*prevBearing, bearing)
			if math.Abs(delta) > turnThresholdDegrees {
				if delta > 0 {
					turn = " then turn right"
				} else {
					turn = " then turn left"
				}
			}
		}

		steps = append(steps, fmt.Sprintf("Go %s %s to %s%s.", FormatMeters(dist), HeadingToText(bearing), target, turn))
		b := bearing
		prevBearing = &b
	}

	if name := destinationName(route, sorted); name != "" {
		steps = append(steps, fmt.Sprintf("Arrive at %s.", name))
	}
	return steps
}

func destinationName(route *models.Route, sorted []models.RouteWaypoint) string {
	if route.EndLocation != nil {
		return route.EndLocation.Name
	}
	if n := len(sorted); n > 0 && sorted[n-1].Location != nil {
		return sorted[n-1].Location.Name
	}
	return ""
}

// Summary is read once when guidance for a route begins.
func Summary(route *models.Route) string {
	startName, endName := "start", "your destination"
	if route.StartLocation != nil {
		startName = route.StartLocation.Name
	}
	if route.EndLocation != nil {
		endName = route.EndLocation.Name
	}
	return fmt.Sprintf("Starting guidance from %s to %s. Follow the highlighted path.", startName, endName)
}

// Polyline is the route as [lat, lng] pairs in walking order, with
// longitudes normalised for the map renderer.
func Polyline(route *models.Route) [][2]float64 {
	sorted := SortedWaypoints(route)
	line := make([][2]float64, 0, len(sorted))
	for _, wp := range sorted {
		line = append(line, [2]float64{wp.Lat, NormalizeLng(wp.Lng)})
	}
	return line
}
