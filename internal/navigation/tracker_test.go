package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus_nav/internal/models"
)

func TestTracker_AnnouncesEachWaypointOnce(t *testing.T) {
	m := campusMap()
	tr := NewTracker(&m.Routes[0])

	_, ok := tr.Update(Point{Lat: 37.43, Lng: -122.08})
	assert.False(t, ok, "far away")

	a, ok := tr.Update(Point{Lat: 37.4221, Lng: -122.0841})
	require.True(t, ok)
	assert.Equal(t, "Head south toward the main quad.", a.Text)
	assert.Equal(t, 1, a.WaypointOrder)
	assert.False(t, a.Final)

	_, ok = tr.Update(Point{Lat: 37.42211, Lng: -122.0841})
	assert.False(t, ok, "already announced")

	a, ok = tr.Update(Point{Lat: 37.4212, Lng: -122.085})
	require.True(t, ok)
	assert.Equal(t, "The Innovation Hub is where students build prototypes.", a.Text)
	require.NotNil(t, a.Pin)
	assert.Equal(t, "Innovation Hub", a.Pin.Name)

	a, ok = tr.Update(Point{Lat: 37.4204, Lng: -122.0838})
	require.True(t, ok)
	assert.True(t, a.Final)
	assert.Equal(t, "You have arrived at Knowledge Library.", a.Text)

	tr.Reset()
	_, ok = tr.Update(Point{Lat: 37.4204, Lng: -122.0838})
	assert.True(t, ok)
}

func TestTracker_Radius(t *testing.T) {
	route := &models.Route{Waypoints: []models.RouteWaypoint{
		{Order: 0, Lat: 0, Lng: 0},
		{Order: 1, Lat: 0.01, Lng: 0},
	}}
	tr := NewTracker(route)

	// ~33 m north of the first waypoint
	a, ok := tr.Update(Point{Lat: 0.0003, Lng: 0})
	require.True(t, ok)
	assert.Equal(t, "Approaching waypoint 1. Keep following the path.", a.Text)
	assert.InDelta(t, 33.36, a.DistanceM, 0.01)

	// ~39 m short of the last waypoint
	_, ok = tr.Update(Point{Lat: 0.00965, Lng: 0})
	assert.False(t, ok)

	a, ok = tr.Update(Point{Lat: 0.0099, Lng: 0})
	require.True(t, ok)
	assert.Equal(t, "You have arrived at your destination.", a.Text)
}

func TestTracker_EmptyRoute(t *testing.T) {
	_, ok := NewTracker(&models.Route{}).Update(Point{})
	assert.False(t, ok)
}
