package navigation

import (
	"encoding/json"

	"github.com/paulmach/orb"

	"campus_nav/internal/models"
)

// campusPadding widens the pin bounds, in degrees, before deciding whether a
// visitor is on campus.
const campusPadding = 0.01

const (
	StatusAwaitingGPS  = "Awaiting GPS"
	StatusLiveGuidance = "Live guidance"
	StatusOffCampus    = "Off campus"
)

// Viewport modes for FitBounds.
const (
	ViewCombined = "combined"
	ViewCampus   = "campus"
	ViewUser     = "user"
)

// Campus is the area covered by a map's pins. Bound holds lng/lat (x/y).
type Campus struct {
	Bound  orb.Bound
	Center Point
}

// CampusOf returns the bounds of the map's pins, or false when it has none.
func CampusOf(m *models.Map) (Campus, bool) {
	if m == nil || len(m.LocationPins) == 0 {
		return Campus{}, false
	}
	mp := make(orb.MultiPoint, 0, len(m.LocationPins))
	for _, pin := range m.LocationPins {
		mp = append(mp, orb.Point{NormalizeLng(pin.Lng), pin.Lat})
	}
	b := mp.Bound()
	c := b.Center()
	return Campus{Bound: b, Center: Point{Lat: c.Lat(), Lng: c.Lon()}}, true
}

// Contains reports whether pos lies inside the padded campus bounds.
func (c Campus) Contains(pos Point) bool {
	return c.Bound.Pad(campusPadding).Contains(orb.Point{NormalizeLng(pos.Lng), pos.Lat})
}

// DistanceKm is the distance from pos to the campus centre in kilometres.
func (c Campus) DistanceKm(pos Point) float64 {
	return Distance(Point{Lat: pos.Lat, Lng: NormalizeLng(pos.Lng)}, c.Center) / 1000
}

// CampusStatus describes where the visitor is relative to the campus.
type CampusStatus struct {
	Status         string   `json:"status"`
	WithinCampus   bool     `json:"within_campus"`
	DistanceFromKm *float64 `json:"distance_from_campus_km,omitempty"`
	AccuracyMeters float64  `json:"accuracy_m,omitempty"`
}

// StatusFor labels a position. pos may be nil when no fix arrived yet.
func StatusFor(m *models.Map, pos *Point) CampusStatus {
	if pos == nil {
		return CampusStatus{Status: StatusAwaitingGPS}
	}
	campus, ok := CampusOf(m)
	if !ok {
		return CampusStatus{Status: StatusOffCampus}
	}
	dist := campus.DistanceKm(*pos)
	st := CampusStatus{Status: StatusOffCampus, DistanceFromKm: &dist}
	if campus.Contains(*pos) {
		st.Status = StatusLiveGuidance
		st.WithinCampus = true
	}
	return st
}

// LatLngBounds is [[south, west], [north, east]], the order map widgets take.
type LatLngBounds [2][2]float64

func toLatLng(b orb.Bound) *LatLngBounds {
	return &LatLngBounds{{b.Min.Lat(), b.Min.Lon()}, {b.Max.Lat(), b.Max.Lon()}}
}

// FitBounds chooses what the map should show for a viewport mode. It falls
// back to whichever of campus and user is known; nil when neither is.
func FitBounds(mode string, m *models.Map, user *Point) *LatLngBounds {
	var userBound *orb.Bound
	if user != nil {
		p := orb.Point{NormalizeLng(user.Lng), user.Lat}
		b := p.Bound()
		userBound = &b
	}
	var campusBound *orb.Bound
	if campus, ok := CampusOf(m); ok {
		campusBound = &campus.Bound
	}

	pick := func(first, second *orb.Bound) *LatLngBounds {
		if first != nil {
			return toLatLng(*first)
		}
		if second != nil {
			return toLatLng(*second)
		}
		return nil
	}

	switch mode {
	case ViewUser:
		return pick(userBound, campusBound)
	case ViewCampus:
		return pick(campusBound, userBound)
	default:
		if campusBound != nil && userBound != nil {
			return toLatLng(campusBound.Union(*userBound))
		}
		return pick(campusBound, userBound)
	}
}

// ParseImageBounds reads an image overlay's corners. Both
// [[lat,lng],[lat,lng]] and {"southWest":{lat,lng},"northEast":{lat,lng}}
// are accepted.
func ParseImageBounds(raw []byte) (*LatLngBounds, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err == nil {
		if len(pairs) == 2 && len(pairs[0]) >= 2 && len(pairs[1]) >= 2 {
			return &LatLngBounds{{pairs[0][0], pairs[0][1]}, {pairs[1][0], pairs[1][1]}}, true
		}
		return nil, false
	}

	type corner struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	var obj struct {
		SouthWest *corner `json:"southWest"`
		NorthEast *corner `json:"northEast"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	sw, ne := obj.SouthWest, obj.NorthEast
	if sw == nil || ne == nil || sw.Lat == nil || sw.Lng == nil || ne.Lat == nil || ne.Lng == nil {
		return nil, false
	}
	return &LatLngBounds{{*sw.Lat, *sw.Lng}, {*ne.Lat, *ne.Lng}}, true
}
