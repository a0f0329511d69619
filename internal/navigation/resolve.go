package navigation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"

	"campus_nav/internal/models"
)

// Query is what a visitor asked for. Both fields are optional.
type Query struct {
	Destination string
	RouteID     uint
}

const CampusTourSlug = "campus-tour"

var (
	tourPattern     = regexp.MustCompile(`(?i)tour`)
	gatePattern     = regexp.MustCompile(`(?i)gate`)
	entrancePattern = regexp.MustCompile(`(?i)entrance|welcome`)
)

// Resolve picks the route to guide along on m. The map must be loaded with
// its pins and its routes' waypoints and end pins. Returns nil when the map
// has no routes and no tour can be built.
//
// Order of preference: a tour when the destination asks for one, an explicit
// route id, a route whose end pin or name matches the destination, a tour
// route when nothing was asked, then the default route and finally the first.
func Resolve(m *models.Map, q Query) *models.Route {
	if m == nil {
		return nil
	}
	destination := strings.TrimSpace(q.Destination)
	tourRoute := findRoute(m.Routes, func(r *models.Route) bool { return tourPattern.MatchString(r.Name) })

	if destination != "" && tourPattern.MatchString(destination) {
		if tourRoute != nil {
			return tourRoute
		}
		if tour := CampusTour(m); tour != nil {
			return tour
		}
		return longestRoute(m.Routes)
	}

	if q.RouteID != 0 {
		if byID := findRoute(m.Routes, func(r *models.Route) bool { return r.ID == q.RouteID }); byID != nil {
			return byID
		}
	}

	if destination != "" {
		if match := matchDestination(m.Routes, Fold(destination)); match != nil {
			return match
		}
	}

	if destination == "" && tourRoute != nil {
		return tourRoute
	}

	if def := findRoute(m.Routes, func(r *models.Route) bool { return r.IsDefault }); def != nil {
		return def
	}
	if len(m.Routes) > 0 {
		return &m.Routes[0]
	}
	return nil
}

// matchDestination finds the route for a folded request. Any route whose end
// pin or name contains the request wins over one whose end pin name merely
// appears inside the request. Among those, the longest pin name wins, so
// "take me to the innovation hub" prefers "Innovation Hub" to "Hub".
func matchDestination(routes []models.Route, target string) *models.Route {
	if target == "" {
		return nil
	}
	forward := findRoute(routes, func(r *models.Route) bool {
		if r.EndLocation != nil && strings.Contains(Fold(r.EndLocation.Name), target) {
			return true
		}
		return strings.Contains(Fold(r.Name), target)
	})
	if forward != nil {
		return forward
	}

	var best *models.Route
	longest := 0
	for i := range routes {
		if routes[i].EndLocation == nil {
			continue
		}
		name := Fold(routes[i].EndLocation.Name)
		if len(name) > longest && strings.Contains(target, name) {
			best, longest = &routes[i], len(name)
		}
	}
	return best
}

func findRoute(routes []models.Route, pred func(*models.Route) bool) *models.Route {
	for i := range routes {
		if pred(&routes[i]) {
			return &routes[i]
		}
	}
	return nil
}

func longestRoute(routes []models.Route) *models.Route {
	var best *models.Route
	for i := range routes {
		if best == nil || len(routes[i].Waypoints) > len(best.Waypoints) {
			best = &routes[i]
		}
	}
	return best
}

// CampusTour builds an unsaved route that starts at the main gate, visits
// every other pin in map order and returns to the gate. Needs at least two
// pins.
func CampusTour(m *models.Map) *models.Route {
	if m == nil || len(m.LocationPins) < 2 {
		return nil
	}
	pins := m.LocationPins

	gate := &pins[0]
	if p := findPin(pins, gatePattern); p != nil {
		gate = p
	} else if p := findPin(pins, entrancePattern); p != nil {
		gate = p
	}

	ordered := make([]*models.LocationPin, 0, len(pins)+1)
	ordered = append(ordered, gate)
	for i := range pins {
		if pins[i].ID != gate.ID {
			ordered = append(ordered, &pins[i])
		}
	}
	ordered = append(ordered, gate)

	waypoints := make([]models.RouteWaypoint, len(ordered))
	for idx, p := range ordered {
		var instruction string
		switch idx {
		case 0:
			instruction = "Start at the main gate."
		case len(ordered) - 1:
			instruction = "Return to the main gate."
		default:
			instruction = fmt.Sprintf("Proceed to %s.", p.Name)
		}
		locationID := p.ID
		waypoints[idx] = models.RouteWaypoint{
			Order:       idx,
			Lat:         p.Lat,
			Lng:         p.Lng,
			LocationID:  &locationID,
			Location:    p,
			Instruction: instruction,
		}
	}

	minutes := 3 * len(ordered)
	if minutes < 10 {
		minutes = 10
	}

	return &models.Route{
		MapID:            m.ID,
		Slug:             CampusTourSlug,
		Name:             "Campus Tour",
		Description:      "Visit all locations and return to the main gate.",
		EstimatedMinutes: &minutes,
		StartLocationID:  gate.ID,
		EndLocationID:    gate.ID,
		StartLocation:    gate,
		EndLocation:      gate,
		Instructions:     "Follow the highlighted path through all locations.",
		Metadata:         datatypes.JSON(`{"virtual":true}`),
		Waypoints:        waypoints,
	}
}

func findPin(pins []models.LocationPin, pattern *regexp.Regexp) *models.LocationPin {
	for i := range pins {
		if pattern.MatchString(pins[i].Name) {
			return &pins[i]
		}
	}
	return nil
}

// Fold lowercases s and strips accents so "Café" and "cafe" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
