package navigation

import (
	"gorm.io/gorm"

	"campus_nav/internal/models"
)

func pin(id uint, name string, lat, lng float64) models.LocationPin {
	return models.LocationPin{Model: gorm.Model{ID: id}, MapID: 1, Name: name, Lat: lat, Lng: lng}
}

func uintPtr(v uint) *uint { return &v }

// campusMap mirrors the demo campus: three pins and the default
// Welcome Center -> Library route.
func campusMap() *models.Map {
	welcome := pin(1, "Welcome Center", 37.4221, -122.0841)
	welcome.AudioText = "You are at the Welcome Center."
	hub := pin(2, "Innovation Hub", 37.4212, -122.085)
	hub.AudioText = "The Innovation Hub is where students build prototypes."
	library := pin(3, "Knowledge Library", 37.4204, -122.0838)

	route := models.Route{
		Model:           gorm.Model{ID: 10},
		MapID:           1,
		Slug:            "welcome-to-library",
		Name:            "Welcome Center to Library",
		IsDefault:       true,
		StartLocationID: welcome.ID,
		EndLocationID:   library.ID,
		StartLocation:   &welcome,
		EndLocation:     &library,
		// Stored out of order on purpose.
		Waypoints: []models.RouteWaypoint{
			{Order: 3, Lat: library.Lat, Lng: library.Lng, LocationID: uintPtr(3), Location: &library, Instruction: "Arrive at the Library entrance."},
			{Order: 1, Lat: welcome.Lat, Lng: welcome.Lng, Instruction: "Head south toward the main quad."},
			{Order: 2, Lat: hub.Lat, Lng: hub.Lng, LocationID: uintPtr(2), Location: &hub, Instruction: "Pass by the Innovation Hub on your left."},
		},
	}

	return &models.Map{
		Model:        gorm.Model{ID: 1},
		Slug:         "central-campus",
		Name:         "Central Innovation Campus",
		LocationPins: []models.LocationPin{welcome, hub, library},
		Routes:       []models.Route{route},
	}
}
