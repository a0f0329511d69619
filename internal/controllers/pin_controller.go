package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus_nav/internal/config"
	"campus_nav/internal/models"
)

type pinInput struct {
	MapID       uint           `json:"map_id" binding:"required"`
	Slug        string         `json:"slug" binding:"required,min=2"`
	Name        string         `json:"name" binding:"required,min=2"`
	Description string         `json:"description"`
	Lat         *float64       `json:"lat" binding:"required,gte=-90,lte=90"`
	Lng         *float64       `json:"lng" binding:"required,gte=-180,lte=180"`
	Floor       string         `json:"floor"`
	Category    string         `json:"category"`
	AudioText   string         `json:"audio_text"`
	ImageURL    string         `json:"image_url" binding:"omitempty,url"`
	VideoURL    string         `json:"video_url" binding:"omitempty,url"`
	Metadata    datatypes.JSON `json:"metadata"`
}

// Pins cannot move between maps; routes on the old map would point at them.
type pinUpdateInput struct {
	Slug        *string        `json:"slug" binding:"omitempty,min=2"`
	Name        *string        `json:"name" binding:"omitempty,min=2"`
	Description *string        `json:"description"`
	Lat         *float64       `json:"lat" binding:"omitempty,gte=-90,lte=90"`
	Lng         *float64       `json:"lng" binding:"omitempty,gte=-180,lte=180"`
	Floor       *string        `json:"floor"`
	Category    *string        `json:"category"`
	AudioText   *string        `json:"audio_text"`
	ImageURL    *string        `json:"image_url" binding:"omitempty,url"`
	VideoURL    *string        `json:"video_url" binding:"omitempty,url"`
	Metadata    datatypes.JSON `json:"metadata"`
}

// mapExists reports a missing map as a validation error.
func mapExists(tx *gorm.DB, mapID uint) error {
	var m models.Map
	err := tx.Select("id").First(&m, mapID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid("Map does not exist")
	}
	return err
}

func CreatePin(c *gin.Context) {
	var input pinInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := checkMetadata(input.Metadata); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pin := models.LocationPin{
		MapID:       input.MapID,
		Slug:        input.Slug,
		Name:        input.Name,
		Description: input.Description,
		Lat:         *input.Lat,
		Lng:         *input.Lng,
		Floor:       input.Floor,
		Category:    input.Category,
		AudioText:   input.AudioText,
		ImageURL:    input.ImageURL,
		VideoURL:    input.VideoURL,
		Metadata:    jsonOrNil(input.Metadata),
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := mapExists(tx, input.MapID); err != nil {
			return err
		}
		return tx.Create(&pin).Error
	})
	if err != nil {
		writeError(c, err, "Map not found", "Failed to create location")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pin": pin})
}

func UpdatePin(c *gin.Context) {
	id, ok := parseID(c, "id", "location")
	if !ok {
		return
	}

	var input pinUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var pin models.LocationPin
	if err := config.DB.First(&pin, id).Error; err != nil {
		writeError(c, err, "Location not found", "Failed to load location")
		return
	}

	if len(input.Metadata) > 0 {
		if err := checkMetadata(input.Metadata); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		pin.Metadata = jsonOrNil(input.Metadata)
	}
	applyPinUpdates(&pin, &input)

	if err := config.DB.Omit(clause.Associations).Save(&pin).Error; err != nil {
		writeError(c, err, "Location not found", "Failed to update location")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pin": pin})
}

func applyPinUpdates(pin *models.LocationPin, input *pinUpdateInput) {
	if input.Slug != nil {
		pin.Slug = *input.Slug
	}
	if input.Name != nil {
		pin.Name = *input.Name
	}
	if input.Description != nil {
		pin.Description = *input.Description
	}
	if input.Lat != nil {
		pin.Lat = *input.Lat
	}
	if input.Lng != nil {
		pin.Lng = *input.Lng
	}
	if input.Floor != nil {
		pin.Floor = *input.Floor
	}
	if input.Category != nil {
		pin.Category = *input.Category
	}
	if input.AudioText != nil {
		pin.AudioText = *input.AudioText
	}
	if input.ImageURL != nil {
		pin.ImageURL = *input.ImageURL
	}
	if input.VideoURL != nil {
		pin.VideoURL = *input.VideoURL
	}
}

// DeletePin removes a pin. Routes that start or end there go with it; other
// waypoints that pointed at it keep their coordinates but lose the link.
func DeletePin(c *gin.Context) {
	id, ok := parseID(c, "id", "location")
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var pin models.LocationPin
		if err := tx.First(&pin, id).Error; err != nil {
			return err
		}

		var routeIDs []uint
		if err := tx.Model(&models.Route{}).
			Where("start_location_id = ? OR end_location_id = ?", pin.ID, pin.ID).
			Pluck("id", &routeIDs).Error; err != nil {
			return err
		}
		if err := deleteRoutes(tx, routeIDs); err != nil {
			return err
		}
		if err := tx.Model(&models.RouteWaypoint{}).
			Where("location_id = ?", pin.ID).
			Update("location_id", nil).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&pin).Error
	})
	if err != nil {
		writeError(c, err, "Location not found", "Failed to delete location")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Location deleted successfully"})
}
