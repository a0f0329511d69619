package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	BaseMapTile         = "TILE"
	BaseMapImageOverlay = "IMAGE_OVERLAY"
)

// Map is a campus drawn either from a tile server or a single image overlay.
// Pins and routes always belong to exactly one map.
type Map struct {
	gorm.Model

	Slug            string         `json:"slug" gorm:"uniqueIndex;not null"`
	Name            string         `json:"name" gorm:"not null"`
	Description     string         `json:"description"`
	BaseMapType     string         `json:"base_map_type" gorm:"default:TILE;not null"`
	TileURL         string         `json:"tile_url"`
	TileAttribution string         `json:"tile_attribution"`
	ImageOverlayURL string         `json:"image_overlay_url"`
	ImageBounds     datatypes.JSON `json:"image_bounds,omitempty"`
	Metadata        datatypes.JSON `json:"metadata,omitempty"`
	IsActive        bool           `json:"is_active" gorm:"not null"`

	LocationPins []LocationPin `gorm:"foreignKey:MapID" json:"location_pins,omitempty"`
	Routes       []Route       `gorm:"foreignKey:MapID" json:"routes,omitempty"`
}
