package navigation

import (
	"fmt"

	"campus_nav/internal/models"
)

// ArrivalRadiusMeters is how close a visitor must be for a waypoint to count
// as reached.
const ArrivalRadiusMeters = 35

// Announcement is a line to speak when the visitor reaches a waypoint.
type Announcement struct {
	Text          string              `json:"text"`
	WaypointOrder int                 `json:"waypoint_order"`
	Final         bool                `json:"final"`
	Pin           *models.LocationPin `json:"pin,omitempty"`
	DistanceM     float64             `json:"distance_m"`
}

// Tracker follows one visitor along one route and announces each waypoint
// at most once. Not safe for concurrent use; one per session.
type Tracker struct {
	route     *models.Route
	waypoints []models.RouteWaypoint
	spoken    map[int]bool
}

func NewTracker(route *models.Route) *Tracker {
	return &Tracker{
		route:     route,
		waypoints: SortedWaypoints(route),
		spoken:    make(map[int]bool),
	}
}

func (t *Tracker) Route() *models.Route {
	return t.route
}

// Update feeds a new position. It returns an announcement when the closest
// waypoint is within ArrivalRadiusMeters and has not been announced yet.
func (t *Tracker) Update(pos Point) (Announcement, bool) {
	closestIdx := -1
	closestDist := 0.0
	for idx, wp := range t.waypoints {
		d := Distance(pos, waypointPoint(wp))
		if closestIdx == -1 || d < closestDist {
			closestIdx, closestDist = idx, d
		}
	}
	if closestIdx == -1 || closestDist > ArrivalRadiusMeters {
		return Announcement{}, false
	}
	if t.spoken[closestIdx] {
		return Announcement{}, false
	}
	t.spoken[closestIdx] = true

	wp := t.waypoints[closestIdx]
	final := closestIdx == len(t.waypoints)-1
	return Announcement{
		Text:          t.line(wp, closestIdx, final),
		WaypointOrder: wp.Order,
		Final:         final,
		Pin:           wp.Location,
		DistanceM:     closestDist,
	}, true
}

func (t *Tracker) line(wp models.RouteWaypoint, idx int, final bool) string {
	if final {
		name := "your destination"
		if t.route.EndLocation != nil {
			name = t.route.EndLocation.Name
		}
		return fmt.Sprintf("You have arrived at %s.", name)
	}
	if wp.Location != nil && wp.Location.AudioText != "" {
		return wp.Location.AudioText
	}
	if wp.Instruction != "" {
		return wp.Instruction
	}
	name := fmt.Sprintf("waypoint %d", idx+1)
	if wp.Location != nil {
		name = wp.Location.Name
	}
	return fmt.Sprintf("Approaching %s. Keep following the path.", name)
}

// Reset forgets which waypoints were announced.
func (t *Tracker) Reset() {
	t.spoken = make(map[int]bool)
}
