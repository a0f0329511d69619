package navigation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus_nav/internal/models"
)

func TestRouteWKB_RoundTrip(t *testing.T) {
	m := campusMap()
	b, err := RouteWKB(&m.Routes[0])
	require.NoError(t, err)
	require.NotEmpty(t, b)

	gj, err := WKBToGeoJSON(b)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"LineString","coordinates":[[-122.0841,37.4221],[-122.085,37.4212],[-122.0838,37.4204]]}`,
		gj)
}

func TestRouteWKB_TooShort(t *testing.T) {
	b, err := RouteWKB(&models.Route{Waypoints: []models.RouteWaypoint{{Order: 0}}})
	require.NoError(t, err)
	assert.Nil(t, b)

	gj, err := WKBToGeoJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, gj)
}

func TestMapFeatures(t *testing.T) {
	raw, err := MapFeatures(campusMap())
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string                 `json:"id"`
			Geometry   map[string]interface{} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 4)

	assert.Equal(t, "pin-1", fc.Features[0].ID)
	assert.Equal(t, "Point", fc.Features[0].Geometry["type"])
	assert.Equal(t, "Welcome Center", fc.Features[0].Properties["name"])

	route := fc.Features[3]
	assert.Equal(t, "route-10", route.ID)
	assert.Equal(t, "LineString", route.Geometry["type"])
	assert.Equal(t, true, route.Properties["is_default"])
	assert.Len(t, route.Properties["steps"], 3)
}
