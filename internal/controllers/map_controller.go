package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus_nav/internal/config"
	"campus_nav/internal/models"
	"campus_nav/internal/navigation"
)

type mapInput struct {
	Slug            string         `json:"slug" binding:"required,min=2"`
	Name            string         `json:"name" binding:"required,min=2"`
	Description     string         `json:"description"`
	BaseMapType     string         `json:"base_map_type" binding:"omitempty,oneof=TILE IMAGE_OVERLAY"`
	TileURL         string         `json:"tile_url" binding:"omitempty,url"`
	TileAttribution string         `json:"tile_attribution"`
	ImageOverlayURL string         `json:"image_overlay_url" binding:"omitempty,url"`
	ImageBounds     datatypes.JSON `json:"image_bounds"`
	Metadata        datatypes.JSON `json:"metadata"`
	IsActive        *bool          `json:"is_active"`
}

type mapUpdateInput struct {
	Slug            *string        `json:"slug" binding:"omitempty,min=2"`
	Name            *string        `json:"name" binding:"omitempty,min=2"`
	Description     *string        `json:"description"`
	BaseMapType     *string        `json:"base_map_type" binding:"omitempty,oneof=TILE IMAGE_OVERLAY"`
	TileURL         *string        `json:"tile_url" binding:"omitempty,url"`
	TileAttribution *string        `json:"tile_attribution"`
	ImageOverlayURL *string        `json:"image_overlay_url" binding:"omitempty,url"`
	ImageBounds     datatypes.JSON `json:"image_bounds"`
	Metadata        datatypes.JSON `json:"metadata"`
	IsActive        *bool          `json:"is_active"`
}

// checkImageBounds accepts an absent or null value, or one of the two
// corner layouts the map widgets understand.
func checkImageBounds(raw datatypes.JSON) error {
	if isNullJSON(raw) {
		return nil
	}
	if _, ok := navigation.ParseImageBounds(raw); !ok {
		return invalid("image_bounds must be [[lat,lng],[lat,lng]] or {southWest,northEast}")
	}
	return nil
}

// checkMetadata accepts an absent or null value or a JSON object.
func checkMetadata(raw datatypes.JSON) error {
	if isNullJSON(raw) {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return invalid("metadata must be a JSON object")
	}
	return nil
}

// jsonOrNil keeps a JSON column empty instead of storing a literal null.
func jsonOrNil(raw datatypes.JSON) datatypes.JSON {
	if isNullJSON(raw) {
		return nil
	}
	return raw
}

func orderByName(db *gorm.DB) *gorm.DB {
	return db.Order("name ASC")
}

func orderBySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

// withRouteDetails preloads what guidance needs: ordered waypoints with
// their pins, and the start and end pins. prefix is "" for a route query and
// "Routes." for a map query.
func withRouteDetails(db *gorm.DB, prefix string) *gorm.DB {
	return db.
		Preload(prefix+"Waypoints", orderBySeq).
		Preload(prefix + "Waypoints.Location").
		Preload(prefix + "StartLocation").
		Preload(prefix + "EndLocation")
}

func withMapDetails(db *gorm.DB) *gorm.DB {
	return withRouteDetails(
		db.Preload("LocationPins", orderByName).Preload("Routes", orderByName),
		"Routes.",
	)
}

// ListMaps returns every map by name. ?include=full embeds pins and routes.
func ListMaps(c *gin.Context) {
	q := config.DB.Order("name ASC")
	if c.Query("include") == "full" {
		q = withMapDetails(q)
	}

	var maps []models.Map
	if err := q.Find(&maps).Error; err != nil {
		writeError(c, err, "Map not found", "Failed to list maps")
		return
	}
	c.JSON(http.StatusOK, gin.H{"maps": maps})
}

// GetMap returns one map with its pins and routes.
func GetMap(c *gin.Context) {
	id, ok := parseID(c, "id", "map")
	if !ok {
		return
	}

	var m models.Map
	if err := withMapDetails(config.DB).First(&m, id).Error; err != nil {
		writeError(c, err, "Map not found", "Failed to load map")
		return
	}
	c.JSON(http.StatusOK, gin.H{"map": m})
}

// GetMapGeoJSON renders a map's pins and route paths as a FeatureCollection.
func GetMapGeoJSON(c *gin.Context) {
	id, ok := parseID(c, "id", "map")
	if !ok {
		return
	}

	var m models.Map
	if err := withMapDetails(config.DB).First(&m, id).Error; err != nil {
		writeError(c, err, "Map not found", "Failed to load map")
		return
	}
	body, err := navigation.MapFeatures(&m)
	if err != nil {
		writeError(c, err, "Map not found", "Failed to render map geometry")
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

func CreateMap(c *gin.Context) {
	var input mapInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := checkImageBounds(input.ImageBounds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := checkMetadata(input.Metadata); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := models.Map{
		Slug:            input.Slug,
		Name:            input.Name,
		Description:     input.Description,
		BaseMapType:     input.BaseMapType,
		TileURL:         input.TileURL,
		TileAttribution: input.TileAttribution,
		ImageOverlayURL: input.ImageOverlayURL,
		ImageBounds:     jsonOrNil(input.ImageBounds),
		Metadata:        jsonOrNil(input.Metadata),
		IsActive:        input.IsActive == nil || *input.IsActive,
	}
	if m.BaseMapType == "" {
		m.BaseMapType = models.BaseMapTile
	}

	if err := config.DB.Create(&m).Error; err != nil {
		writeError(c, err, "Map not found", "Failed to create map")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"map": m})
}

func UpdateMap(c *gin.Context) {
	id, ok := parseID(c, "id", "map")
	if !ok {
		return
	}

	var input mapUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var m models.Map
	if err := config.DB.First(&m, id).Error; err != nil {
		writeError(c, err, "Map not found", "Failed to load map")
		return
	}

	if err := applyMapUpdates(&m, &input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := config.DB.Omit(clause.Associations).Save(&m).Error; err != nil {
		writeError(c, err, "Map not found", "Failed to update map")
		return
	}
	c.JSON(http.StatusOK, gin.H{"map": m})
}

func applyMapUpdates(m *models.Map, input *mapUpdateInput) error {
	if len(input.ImageBounds) > 0 {
		if err := checkImageBounds(input.ImageBounds); err != nil {
			return err
		}
		m.ImageBounds = jsonOrNil(input.ImageBounds)
	}
	if len(input.Metadata) > 0 {
		if err := checkMetadata(input.Metadata); err != nil {
			return err
		}
		m.Metadata = jsonOrNil(input.Metadata)
	}
	if input.Slug != nil {
		m.Slug = *input.Slug
	}
	if input.Name != nil {
		m.Name = *input.Name
	}
	if input.Description != nil {
		m.Description = *input.Description
	}
	if input.BaseMapType != nil {
		m.BaseMapType = *input.BaseMapType
	}
	if input.TileURL != nil {
		m.TileURL = *input.TileURL
	}
	if input.TileAttribution != nil {
		m.TileAttribution = *input.TileAttribution
	}
	if input.ImageOverlayURL != nil {
		m.ImageOverlayURL = *input.ImageOverlayURL
	}
	if input.IsActive != nil {
		m.IsActive = *input.IsActive
	}
	return nil
}

// DeleteMap removes a map together with its routes, waypoints and pins.
func DeleteMap(c *gin.Context) {
	id, ok := parseID(c, "id", "map")
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var m models.Map
		if err := tx.First(&m, id).Error; err != nil {
			return err
		}

		var routeIDs []uint
		if err := tx.Model(&models.Route{}).Where("map_id = ?", m.ID).Pluck("id", &routeIDs).Error; err != nil {
			return err
		}
		if err := deleteRoutes(tx, routeIDs); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("map_id = ?", m.ID).Delete(&models.LocationPin{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&m).Error
	})
	if err != nil {
		writeError(c, err, "Map not found", "Failed to delete map")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Map deleted successfully"})
}

// deleteRoutes removes routes and their waypoints, waypoints first.
func deleteRoutes(tx *gorm.DB, routeIDs []uint) error {
	if len(routeIDs) == 0 {
		return nil
	}
	if err := tx.Unscoped().Where("route_id IN ?", routeIDs).Delete(&models.RouteWaypoint{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("id IN ?", routeIDs).Delete(&models.Route{}).Error
}
