package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campus_nav/internal/config"
	"campus_nav/internal/middleware"
	"campus_nav/internal/models"
	"campus_nav/internal/navigation"
)

// setupTestDB points config.DB at a fresh in-memory sqlite database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.Open(config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	prev := config.DB
	config.DB = db
	t.Cleanup(func() {
		config.DB = prev
		_ = sqlDB.Close()
	})
	return db
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.POST("/auth/login", Login)
	r.GET("/auth/me", middleware.RequireAuth(), Me)

	api := r.Group("/api")
	api.GET("/maps", ListMaps)
	api.GET("/maps/:id", GetMap)
	api.GET("/maps/:id/geojson", GetMapGeoJSON)
	api.GET("/routes/:id", GetRoute)
	api.GET("/navigate", Navigate)
	api.POST("/intent", ExtractIntent)
	api.POST("/assistant/sessions", StartAssistantSession)
	api.POST("/assistant/sessions/:id/events", AssistantEvent)

	admin := r.Group("/api/admin", middleware.RequireRole(models.RoleSuperAdmin, models.RoleEditor))
	admin.POST("/maps", CreateMap)
	admin.PATCH("/maps/:id", UpdateMap)
	admin.DELETE("/maps/:id", DeleteMap)
	admin.POST("/pins", CreatePin)
	admin.PATCH("/pins/:id", UpdatePin)
	admin.DELETE("/pins/:id", DeletePin)
	admin.POST("/routes", CreateRoute)
	admin.PATCH("/routes/:id", UpdateRoute)
	admin.DELETE("/routes/:id", DeleteRoute)

	r.GET("/ws/navigate", HandleNavigateWebSocket)
	r.GET("/ws/admin/maps/:id/visitors", HandleVisitorFeed)
	return r
}

func editorToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.GenerateToken(1, models.RoleEditor, "editor")
	require.NoError(t, err)
	return token
}

func doJSON(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Unscoped().Model(model).Count(&n).Error)
	return n
}

type campusFixture struct {
	Map     models.Map
	Welcome models.LocationPin
	Hub     models.LocationPin
	Library models.LocationPin
	Route   models.Route
}

// createCampus stores the demo campus: three pins and the default route
// from the Welcome Center to the Library through the Innovation Hub.
func createCampus(t *testing.T, db *gorm.DB) campusFixture {
	t.Helper()
	f := campusFixture{
		Map: models.Map{Slug: "central-campus", Name: "Central Innovation Campus", BaseMapType: models.BaseMapTile, IsActive: true},
	}
	require.NoError(t, db.Create(&f.Map).Error)

	f.Welcome = models.LocationPin{MapID: f.Map.ID, Slug: "welcome-center", Name: "Welcome Center", Lat: 37.4221, Lng: -122.0841,
		AudioText: "You are at the Welcome Center."}
	f.Hub = models.LocationPin{MapID: f.Map.ID, Slug: "innovation-hub", Name: "Innovation Hub", Lat: 37.4212, Lng: -122.085,
		AudioText: "The Innovation Hub is where students build prototypes."}
	f.Library = models.LocationPin{MapID: f.Map.ID, Slug: "knowledge-library", Name: "Knowledge Library", Lat: 37.4204, Lng: -122.0838}
	for _, p := range []*models.LocationPin{&f.Welcome, &f.Hub, &f.Library} {
		require.NoError(t, db.Create(p).Error)
	}

	hubID, libraryID := f.Hub.ID, f.Library.ID
	f.Route = models.Route{
		MapID:           f.Map.ID,
		Slug:            "welcome-to-library",
		Name:            "Welcome Center to Library",
		IsDefault:       true,
		StartLocationID: f.Welcome.ID,
		EndLocationID:   f.Library.ID,
		Waypoints: []models.RouteWaypoint{
			{Order: 1, Lat: f.Welcome.Lat, Lng: f.Welcome.Lng, Instruction: "Head south toward the main quad."},
			{Order: 2, Lat: f.Hub.Lat, Lng: f.Hub.Lng, LocationID: &hubID, Instruction: "Pass by the Innovation Hub on your left."},
			{Order: 3, Lat: f.Library.Lat, Lng: f.Library.Lng, LocationID: &libraryID, Instruction: "Arrive at the Library entrance."},
		},
	}
	geometry, err := navigation.RouteWKB(&f.Route)
	require.NoError(t, err)
	f.Route.Geometry = geometry
	require.NoError(t, db.Create(&f.Route).Error)
	return f
}
