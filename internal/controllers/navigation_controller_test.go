package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus_nav/internal/models"
	"campus_nav/internal/navigation"
)

type planBody struct {
	Plan struct {
		MapID       uint   `json:"map_id"`
		MapName     string `json:"map_name"`
		Destination string `json:"destination"`
		User        string `json:"user"`
		Route       struct {
			ID    uint     `json:"ID"`
			Name  string   `json:"name"`
			Slug  string   `json:"slug"`
			Steps []string `json:"steps"`
		} `json:"route"`
		Virtual      bool                     `json:"virtual"`
		Polyline     [][2]float64             `json:"polyline"`
		CampusCenter *navigation.Point        `json:"campus_center"`
		Viewport     *navigation.LatLngBounds `json:"viewport"`
		Status       navigation.CampusStatus  `json:"status"`
	} `json:"plan"`
}

func TestNavigate_ByDestination(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	f := createCampus(t, db)

	w := doJSON(r, http.MethodGet, "/api/navigate?destination=library&user=Likith", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body planBody
	decode(t, w, &body)
	assert.Equal(t, f.Map.ID, body.Plan.MapID)
	assert.Equal(t, "Central Innovation Campus", body.Plan.MapName)
	assert.Equal(t, "Likith", body.Plan.User)
	assert.Equal(t, f.Route.ID, body.Plan.Route.ID)
	assert.False(t, body.Plan.Virtual)
	assert.Len(t, body.Plan.Polyline, 3)
	assert.NotEmpty(t, body.Plan.Route.Steps)
	require.NotNil(t, body.Plan.CampusCenter)
	assert.Equal(t, navigation.StatusAwaitingGPS, body.Plan.Status.Status)
	assert.Equal(t, &navigation.LatLngBounds{{37.4204, -122.085}, {37.4221, -122.0838}}, body.Plan.Viewport)
}

func TestNavigate_Tour(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	createCampus(t, db)

	w := doJSON(r, http.MethodGet, "/api/navigate?destination=campus+tour", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body planBody
	decode(t, w, &body)
	assert.True(t, body.Plan.Virtual)
	assert.Equal(t, navigation.CampusTourSlug, body.Plan.Route.Slug)
	// Welcome Center, Innovation Hub, Knowledge Library and back.
	assert.Len(t, body.Plan.Polyline, 4)
}

func TestNavigate_WithPosition(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	f := createCampus(t, db)

	w := doJSON(r, http.MethodGet, fmt.Sprintf("/api/navigate?map_id=%d&route_id=%d&lat=37.4215&lng=-122.0845", f.Map.ID, f.Route.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body planBody
	decode(t, w, &body)
	assert.Equal(t, navigation.StatusLiveGuidance, body.Plan.Status.Status)
	assert.True(t, body.Plan.Status.WithinCampus)

	w = doJSON(r, http.MethodGet, "/api/navigate?lat=40.7128&lng=-74.006&view=user", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &body)
	assert.Equal(t, navigation.StatusOffCampus, body.Plan.Status.Status)
	require.NotNil(t, body.Plan.Status.DistanceFromKm)
	assert.Greater(t, *body.Plan.Status.DistanceFromKm, 4000.0)
	assert.Equal(t, &navigation.LatLngBounds{{40.7128, -74.006}, {40.7128, -74.006}}, body.Plan.Viewport)
}

func TestNavigate_Errors(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()

	w := doJSON(r, http.MethodGet, "/api/navigate", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Map not found", errorOf(t, w))

	m := models.Map{Slug: "empty", Name: "Empty", BaseMapType: models.BaseMapTile, IsActive: true}
	require.NoError(t, db.Create(&m).Error)
	w = doJSON(r, http.MethodGet, "/api/navigate", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No route available on this map", errorOf(t, w))

	w = doJSON(r, http.MethodGet, "/api/navigate?lat=91&lng=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/navigate?lat=10", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/navigate?map_id=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNavigate_DefaultMapIsFirstByName(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	zeta := models.Map{Slug: "zeta-annex", Name: "Zeta Annex", BaseMapType: models.BaseMapTile, IsActive: true}
	require.NoError(t, db.Create(&zeta).Error)
	f := createCampus(t, db)
	require.Greater(t, f.Map.ID, zeta.ID)

	for _, path := range []string{
		"/api/navigate?destination=library",
		"/api/navigate?destination=library&map_id=999",
	} {
		w := doJSON(r, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body planBody
		decode(t, w, &body)
		assert.Equal(t, f.Map.ID, body.Plan.MapID, path)
		assert.Equal(t, "Central Innovation Campus", body.Plan.MapName, path)
	}

	// An explicit map is honoured even when it sorts later.
	w := doJSON(r, http.MethodGet, fmt.Sprintf("/api/navigate?map_id=%d", zeta.ID), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No route available on this map", errorOf(t, w))
}
