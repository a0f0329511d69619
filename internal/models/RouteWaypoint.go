package models

import (
	"gorm.io/gorm"
)

// RouteWaypoint is one stop along a route.
// Order is unique within the route and defines the walking sequence.
type RouteWaypoint struct {
	gorm.Model

	RouteID     uint         `json:"route_id" gorm:"not null;uniqueIndex:idx_waypoint_route_seq"`
	Order       int          `json:"order" gorm:"column:seq;not null;uniqueIndex:idx_waypoint_route_seq"`
	Lat         float64      `json:"lat"`
	Lng         float64      `json:"lng"`
	LocationID  *uint        `json:"location_id,omitempty"`
	Location    *LocationPin `gorm:"foreignKey:LocationID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"location,omitempty"`
	Instruction string       `json:"instruction"`
}
