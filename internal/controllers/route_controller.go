package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus_nav/internal/config"
	"campus_nav/internal/models"
	"campus_nav/internal/navigation"
)

// RouteResponse is a route as the clients draw it: the stored WKB path is
// rendered as a GeoJSON geometry and the narration is attached.
type RouteResponse struct {
	models.Route
	Geometry json.RawMessage `json:"geometry,omitempty"`
	Summary  string          `json:"summary"`
	Steps    []string        `json:"steps"`
}

func toRouteResponse(route models.Route) RouteResponse {
	wkbGeom := route.Geometry
	if len(wkbGeom) == 0 {
		wkbGeom, _ = navigation.RouteWKB(&route)
	}
	jsonGeom, err := navigation.WKBToGeoJSON(wkbGeom)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("Stored route geometry could not be decoded")
	}

	resp := RouteResponse{
		Route:   route,
		Summary: navigation.Summary(&route),
		Steps:   navigation.Guidance(&route),
	}
	resp.Route.Waypoints = navigation.SortedWaypoints(&route)
	if jsonGeom != "" {
		resp.Geometry = json.RawMessage(jsonGeom)
	}
	return resp
}

type waypointInput struct {
	Order       *int     `json:"order" binding:"required,gte=0"`
	Lat         *float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lng         *float64 `json:"lng" binding:"required,gte=-180,lte=180"`
	LocationID  *uint    `json:"location_id"`
	Instruction string   `json:"instruction"`
}

type routeInput struct {
	MapID            uint            `json:"map_id" binding:"required"`
	Slug             string          `json:"slug" binding:"required,min=2"`
	Name             string          `json:"name" binding:"required,min=2"`
	Description      string          `json:"description"`
	IsDefault        bool            `json:"is_default"`
	EstimatedMinutes *int            `json:"estimated_minutes"`
	StartLocationID  uint            `json:"start_location_id" binding:"required"`
	EndLocationID    uint            `json:"end_location_id" binding:"required"`
	Instructions     string          `json:"instructions"`
	Metadata         datatypes.JSON  `json:"metadata"`
	Waypoints        []waypointInput `json:"waypoints" binding:"dive"`
}

// Waypoints, when present, replace the whole list.
type routeUpdateInput struct {
	Slug             *string          `json:"slug" binding:"omitempty,min=2"`
	Name             *string          `json:"name" binding:"omitempty,min=2"`
	Description      *string          `json:"description"`
	IsDefault        *bool            `json:"is_default"`
	EstimatedMinutes *int             `json:"estimated_minutes"`
	StartLocationID  *uint            `json:"start_location_id"`
	EndLocationID    *uint            `json:"end_location_id"`
	Instructions     *string          `json:"instructions"`
	Metadata         datatypes.JSON   `json:"metadata"`
	Waypoints        *[]waypointInput `json:"waypoints" binding:"omitempty,dive"`
}

func checkEstimatedMinutes(minutes *int) error {
	if minutes != nil && *minutes <= 0 {
		return invalid("estimated_minutes must be a positive number")
	}
	return nil
}

// toWaypoints converts the payload and rejects repeated order values.
func toWaypoints(input []waypointInput) ([]models.RouteWaypoint, error) {
	seen := make(map[int]bool, len(input))
	waypoints := make([]models.RouteWaypoint, 0, len(input))
	for _, wp := range input {
		if seen[*wp.Order] {
			return nil, invalid("Waypoint order values must be unique")
		}
		seen[*wp.Order] = true
		waypoints = append(waypoints, models.RouteWaypoint{
			Order:       *wp.Order,
			Lat:         *wp.Lat,
			Lng:         *wp.Lng,
			LocationID:  wp.LocationID,
			Instruction: wp.Instruction,
		})
	}
	return waypoints, nil
}

// checkRoutePins makes sure the map exists and that the start, end and every
// linked waypoint pin sit on it.
func checkRoutePins(tx *gorm.DB, mapID, startID, endID uint, waypoints []models.RouteWaypoint) error {
	if err := mapExists(tx, mapID); err != nil {
		return err
	}

	ids := map[uint]bool{startID: true, endID: true}
	for _, wp := range waypoints {
		if wp.LocationID != nil {
			ids[*wp.LocationID] = true
		}
	}
	list := make([]uint, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}

	var count int64
	if err := tx.Model(&models.LocationPin{}).
		Where("map_id = ? AND id IN ?", mapID, list).
		Count(&count).Error; err != nil {
		return err
	}
	if int(count) != len(list) {
		return invalid("Start, end and waypoint locations must belong to the route's map")
	}
	return nil
}

// clearOtherDefaults keeps at most one default route per map.
func clearOtherDefaults(tx *gorm.DB, mapID, keepID uint) error {
	return tx.Model(&models.Route{}).
		Where("map_id = ? AND id <> ? AND is_default = ?", mapID, keepID, true).
		Update("is_default", false).Error
}

func loadRoute(db *gorm.DB, id uint) (models.Route, error) {
	var route models.Route
	err := withRouteDetails(db, "").First(&route, id).Error
	return route, err
}

// GetRoute returns a route with ordered waypoints, geometry and guidance.
func GetRoute(c *gin.Context) {
	id, ok := parseID(c, "id", "route")
	if !ok {
		return
	}
	route, err := loadRoute(config.DB, id)
	if err != nil {
		writeError(c, err, "Route not found", "Failed to load route")
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// CreateRoute stores a route and its waypoints in one transaction.
func CreateRoute(c *gin.Context) {
	var input routeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateRoute: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	waypoints, err := toWaypoints(input.Waypoints)
	if err == nil {
		err = checkEstimatedMinutes(input.EstimatedMinutes)
	}
	if err == nil {
		err = checkMetadata(input.Metadata)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route := models.Route{
		MapID:            input.MapID,
		Slug:             input.Slug,
		Name:             input.Name,
		Description:      input.Description,
		IsDefault:        input.IsDefault,
		EstimatedMinutes: input.EstimatedMinutes,
		StartLocationID:  input.StartLocationID,
		EndLocationID:    input.EndLocationID,
		Instructions:     input.Instructions,
		Metadata:         jsonOrNil(input.Metadata),
		Waypoints:        waypoints,
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := checkRoutePins(tx, route.MapID, route.StartLocationID, route.EndLocationID, route.Waypoints); err != nil {
			return err
		}
		wkbGeom, err := navigation.RouteWKB(&route)
		if err != nil {
			return err
		}
		route.Geometry = wkbGeom
		if err := tx.Create(&route).Error; err != nil {
			return err
		}
		if route.IsDefault {
			return clearOtherDefaults(tx, route.MapID, route.ID)
		}
		return nil
	})
	if err != nil {
		writeError(c, err, "Map not found", "Failed to create route")
		return
	}

	created, err := loadRoute(config.DB, route.ID)
	if err != nil {
		writeError(c, err, "Route not found", "Failed to load route")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"route": toRouteResponse(created)})
}

// UpdateRoute patches a route. A waypoints field replaces every waypoint.
func UpdateRoute(c *gin.Context) {
	id, ok := parseID(c, "id", "route")
	if !ok {
		return
	}

	var input routeUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("UpdateRoute: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	var replacement []models.RouteWaypoint
	var err error
	if input.Waypoints != nil {
		replacement, err = toWaypoints(*input.Waypoints)
	}
	if err == nil {
		err = checkEstimatedMinutes(input.EstimatedMinutes)
	}
	if err == nil && len(input.Metadata) > 0 {
		err = checkMetadata(input.Metadata)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var route models.Route
		if err := tx.Preload("Waypoints", orderBySeq).First(&route, id).Error; err != nil {
			return err
		}
		applyRouteUpdates(&route, &input)
		if input.Waypoints != nil {
			route.Waypoints = replacement
		}

		if err := checkRoutePins(tx, route.MapID, route.StartLocationID, route.EndLocationID, route.Waypoints); err != nil {
			return err
		}
		wkbGeom, err := navigation.RouteWKB(&route)
		if err != nil {
			return err
		}
		route.Geometry = wkbGeom

		if err := tx.Omit(clause.Associations).Save(&route).Error; err != nil {
			return err
		}
		if input.Waypoints != nil {
			if err := tx.Unscoped().Where("route_id = ?", route.ID).Delete(&models.RouteWaypoint{}).Error; err != nil {
				return err
			}
			for i := range replacement {
				replacement[i].RouteID = route.ID
			}
			if len(replacement) > 0 {
				if err := tx.Create(&replacement).Error; err != nil {
					return err
				}
			}
		}
		if route.IsDefault {
			return clearOtherDefaults(tx, route.MapID, route.ID)
		}
		return nil
	})
	if err != nil {
		writeError(c, err, "Route not found", "Failed to update route")
		return
	}

	updated, err := loadRoute(config.DB, id)
	if err != nil {
		writeError(c, err, "Route not found", "Failed to load route")
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(updated)})
}

func applyRouteUpdates(route *models.Route, input *routeUpdateInput) {
	if input.Slug != nil {
		route.Slug = *input.Slug
	}
	if input.Name != nil {
		route.Name = *input.Name
	}
	if input.Description != nil {
		route.Description = *input.Description
	}
	if input.IsDefault != nil {
		route.IsDefault = *input.IsDefault
	}
	if input.EstimatedMinutes != nil {
		route.EstimatedMinutes = input.EstimatedMinutes
	}
	if input.StartLocationID != nil {
		route.StartLocationID = *input.StartLocationID
	}
	if input.EndLocationID != nil {
		route.EndLocationID = *input.EndLocationID
	}
	if input.Instructions != nil {
		route.Instructions = *input.Instructions
	}
	if len(input.Metadata) > 0 {
		route.Metadata = jsonOrNil(input.Metadata)
	}
}

// DeleteRoute removes a route and its waypoints.
func DeleteRoute(c *gin.Context) {
	id, ok := parseID(c, "id", "route")
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var route models.Route
		if err := tx.Select("id").First(&route, id).Error; err != nil {
			return err
		}
		return deleteRoutes(tx, []uint{route.ID})
	})
	if err != nil {
		writeError(c, err, "Route not found", "Failed to delete route")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted successfully"})
}
