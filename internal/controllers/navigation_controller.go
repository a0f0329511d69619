package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campus_nav/internal/config"
	"campus_nav/internal/models"
	"campus_nav/internal/navigation"
)

// NavigationPlan is everything the navigation page needs to start guiding.
type NavigationPlan struct {
	MapID        uint                     `json:"map_id"`
	MapName      string                   `json:"map_name"`
	Destination  string                   `json:"destination,omitempty"`
	User         string                   `json:"user,omitempty"`
	Route        RouteResponse            `json:"route"`
	Virtual      bool                     `json:"virtual"`
	Polyline     [][2]float64             `json:"polyline"`
	CampusCenter *navigation.Point        `json:"campus_center,omitempty"`
	ImageBounds  *navigation.LatLngBounds `json:"image_bounds,omitempty"`
	Viewport     *navigation.LatLngBounds `json:"viewport,omitempty"`
	Status       navigation.CampusStatus  `json:"status"`
}

// firstActiveMap loads the map visitors land on when none is chosen: the
// first active map by name, matching the order of ListMaps.
func firstActiveMap(q *gorm.DB, m *models.Map) error {
	return q.Where("is_active = ?", true).Order("name ASC").First(m).Error
}

// loadNavigationMap loads a map with everything Resolve needs. With no id,
// or an id that does not exist, it takes the first active map.
func loadNavigationMap(db *gorm.DB, mapID uint) (*models.Map, error) {
	var m models.Map
	if mapID != 0 {
		err := withMapDetails(db).First(&m, mapID).Error
		if err == nil {
			return &m, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		logrus.WithField("map_id", mapID).Debug("Unknown map requested, using the first active map")
		m = models.Map{}
	}
	if err := firstActiveMap(withMapDetails(db), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func buildPlan(m *models.Map, route *models.Route, destination, user string, pos *navigation.Point, view string) NavigationPlan {
	plan := NavigationPlan{
		MapID:       m.ID,
		MapName:     m.Name,
		Destination: destination,
		User:        user,
		Route:       toRouteResponse(*route),
		Virtual:     route.ID == 0,
		Polyline:    navigation.Polyline(route),
		Viewport:    navigation.FitBounds(view, m, pos),
		Status:      navigation.StatusFor(m, pos),
	}
	if campus, ok := navigation.CampusOf(m); ok {
		center := campus.Center
		plan.CampusCenter = &center
	}
	if m.BaseMapType == models.BaseMapImageOverlay {
		plan.ImageBounds, _ = navigation.ParseImageBounds(m.ImageBounds)
	}
	return plan
}

// parsePosition reads optional lat/lng query values. Both or neither.
func parsePosition(c *gin.Context) (*navigation.Point, bool) {
	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw == "" && lngRaw == "" {
		return nil, true
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lng, errLng := strconv.ParseFloat(lngRaw, 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 {
		return nil, false
	}
	return &navigation.Point{Lat: lat, Lng: navigation.NormalizeLng(lng)}, true
}

// Navigate resolves a destination or route id to a route and returns the
// guidance plan for it.
func Navigate(c *gin.Context) {
	mapID, err := parseOptionalID(c.Query("map_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid map ID"})
		return
	}
	routeID, err := parseOptionalID(c.Query("route_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}
	pos, ok := parsePosition(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid position"})
		return
	}
	view := c.DefaultQuery("view", navigation.ViewCombined)

	m, err := loadNavigationMap(config.DB, mapID)
	if err != nil {
		writeError(c, err, "Map not found", "Failed to load map")
		return
	}

	destination := c.Query("destination")
	route := navigation.Resolve(m, navigation.Query{Destination: destination, RouteID: routeID})
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No route available on this map"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": buildPlan(m, route, destination, c.Query("user"), pos, view)})
}
