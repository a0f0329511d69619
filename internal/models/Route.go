package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Route is an ordered walk between two pins of the same map.
type Route struct {
	gorm.Model

	MapID            uint           `json:"map_id" gorm:"not null;uniqueIndex:idx_route_map_slug"`
	Slug             string         `json:"slug" gorm:"not null;uniqueIndex:idx_route_map_slug"`
	Name             string         `json:"name" gorm:"not null"`
	Description      string         `json:"description"`
	IsDefault        bool           `json:"is_default" gorm:"default:false"`
	EstimatedMinutes *int           `json:"estimated_minutes,omitempty"`
	StartLocationID  uint           `json:"start_location_id" gorm:"not null"`
	EndLocationID    uint           `json:"end_location_id" gorm:"not null"`
	Instructions     string         `json:"instructions"`
	Metadata         datatypes.JSON `json:"metadata,omitempty"`

	// Path through the waypoints as a WKB LINESTRING (SRID 4326, lng/lat order).
	// Rebuilt every time the waypoints are written.
	Geometry []byte `json:"-"`

	// Associations
	StartLocation *LocationPin    `gorm:"foreignKey:StartLocationID" json:"start_location,omitempty"`
	EndLocation   *LocationPin    `gorm:"foreignKey:EndLocationID" json:"end_location,omitempty"`
	Waypoints     []RouteWaypoint `gorm:"foreignKey:RouteID" json:"waypoints"`
}
