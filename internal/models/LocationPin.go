package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LocationPin is a named point of interest on a map.
// AudioText is what the guide reads out when a visitor reaches the pin.
type LocationPin struct {
	gorm.Model

	MapID       uint           `json:"map_id" gorm:"not null;uniqueIndex:idx_pin_map_slug"`
	Slug        string         `json:"slug" gorm:"not null;uniqueIndex:idx_pin_map_slug"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	Floor       string         `json:"floor"`
	Category    string         `json:"category"`
	AudioText   string         `json:"audio_text"`
	ImageURL    string         `json:"image_url"`
	VideoURL    string         `json:"video_url"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}
