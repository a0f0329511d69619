// Package seed loads maps, pins, routes and admins from YAML into the
// database. Loading is idempotent: records are matched by slug (email for
// admins) and updated in place.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus_nav/internal/models"
	"campus_nav/internal/navigation"
)

//go:embed campus.yaml
var defaultSeed []byte

// PasswordCost is the bcrypt cost for seeded admin passwords.
const PasswordCost = 12

type File struct {
	Maps   []MapSeed   `yaml:"maps"`
	Admins []AdminSeed `yaml:"admins"`
}

type MapSeed struct {
	Slug            string                 `yaml:"slug"`
	Name            string                 `yaml:"name"`
	Description     string                 `yaml:"description"`
	BaseMapType     string                 `yaml:"base_map_type"`
	TileURL         string                 `yaml:"tile_url"`
	TileAttribution string                 `yaml:"tile_attribution"`
	ImageOverlayURL string                 `yaml:"image_overlay_url"`
	ImageBounds     interface{}            `yaml:"image_bounds"`
	Metadata        map[string]interface{} `yaml:"metadata"`
	Inactive        bool                   `yaml:"inactive"`
	Pins            []PinSeed              `yaml:"pins"`
	Routes          []RouteSeed            `yaml:"routes"`
}

type PinSeed struct {
	Slug        string  `yaml:"slug"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Lat         float64 `yaml:"lat"`
	Lng         float64 `yaml:"lng"`
	Floor       string  `yaml:"floor"`
	Category    string  `yaml:"category"`
	AudioText   string  `yaml:"audio_text"`
	ImageURL    string  `yaml:"image_url"`
	VideoURL    string  `yaml:"video_url"`
}

// RouteSeed refers to pins by slug.
type RouteSeed struct {
	Slug             string         `yaml:"slug"`
	Name             string         `yaml:"name"`
	Description      string         `yaml:"description"`
	IsDefault        bool           `yaml:"is_default"`
	EstimatedMinutes *int           `yaml:"estimated_minutes"`
	Start            string         `yaml:"start"`
	End              string         `yaml:"end"`
	Instructions     string         `yaml:"instructions"`
	Waypoints        []WaypointSeed `yaml:"waypoints"`
}

// WaypointSeed takes its coordinates from Pin unless Lat and Lng are given.
type WaypointSeed struct {
	Order       int      `yaml:"order"`
	Pin         string   `yaml:"pin"`
	Lat         *float64 `yaml:"lat"`
	Lng         *float64 `yaml:"lng"`
	Instruction string   `yaml:"instruction"`
}

type AdminSeed struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Result counts what a seed run wrote.
type Result struct {
	Maps   int
	Pins   int
	Routes int
	Admins int
}

// Parse decodes seed YAML. Unknown keys are rejected so typos surface.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

// Default is the embedded demo campus.
func Default() (*File, error) {
	return Parse(defaultSeed)
}

// Load reads a seed file from disk, or the embedded one when path is empty.
func Load(path string) (*File, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Apply writes f in one transaction. A non-empty adminPassword replaces the
// password of every seeded admin.
func Apply(ctx context.Context, db *gorm.DB, f *File, adminPassword string) (Result, error) {
	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ms := range f.Maps {
			if err := applyMap(tx, ms, &res); err != nil {
				return fmt.Errorf("map %q: %w", ms.Slug, err)
			}
		}
		for _, as := range f.Admins {
			if err := applyAdmin(tx, as, adminPassword); err != nil {
				return fmt.Errorf("admin %q: %w", as.Username, err)
			}
			res.Admins++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	logrus.WithFields(logrus.Fields{
		"maps":   res.Maps,
		"pins":   res.Pins,
		"routes": res.Routes,
		"admins": res.Admins,
	}).Info("Database seeded")
	return res, nil
}

// firstBy loads the record matching the condition into dest, leaving dest
// zeroed when there is none.
func firstBy(tx *gorm.DB, dest interface{}, query string, args ...interface{}) error {
	err := tx.Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func applyMap(tx *gorm.DB, ms MapSeed, res *Result) error {
	var m models.Map
	if err := firstBy(tx, &m, "slug = ?", ms.Slug); err != nil {
		return err
	}

	var metadata datatypes.JSON
	if len(ms.Metadata) > 0 {
		var err error
		if metadata, err = toJSON(ms.Metadata); err != nil {
			return err
		}
	}
	bounds, err := toJSON(ms.ImageBounds)
	if err != nil {
		return err
	}
	m.Slug = ms.Slug
	m.Name = ms.Name
	m.Description = ms.Description
	m.BaseMapType = ms.BaseMapType
	if m.BaseMapType == "" {
		m.BaseMapType = models.BaseMapTile
	}
	m.TileURL = ms.TileURL
	m.TileAttribution = ms.TileAttribution
	m.ImageOverlayURL = ms.ImageOverlayURL
	m.ImageBounds = bounds
	m.Metadata = metadata
	m.IsActive = !ms.Inactive
	if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
		return err
	}
	res.Maps++

	pins := make(map[string]models.LocationPin, len(ms.Pins))
	for _, ps := range ms.Pins {
		pin, err := applyPin(tx, m.ID, ps)
		if err != nil {
			return fmt.Errorf("pin %q: %w", ps.Slug, err)
		}
		pins[pin.Slug] = pin
		res.Pins++
	}

	for _, rs := range ms.Routes {
		if err := applyRoute(tx, m.ID, rs, pins); err != nil {
			return fmt.Errorf("route %q: %w", rs.Slug, err)
		}
		res.Routes++
	}
	return nil
}

func applyPin(tx *gorm.DB, mapID uint, ps PinSeed) (models.LocationPin, error) {
	var pin models.LocationPin
	if err := firstBy(tx, &pin, "map_id = ? AND slug = ?", mapID, ps.Slug); err != nil {
		return pin, err
	}
	pin.MapID = mapID
	pin.Slug = ps.Slug
	pin.Name = ps.Name
	pin.Description = ps.Description
	pin.Lat = ps.Lat
	pin.Lng = ps.Lng
	pin.Floor = ps.Floor
	pin.Category = ps.Category
	pin.AudioText = ps.AudioText
	pin.ImageURL = ps.ImageURL
	pin.VideoURL = ps.VideoURL
	err := tx.Omit(clause.Associations).Save(&pin).Error
	return pin, err
}

func applyRoute(tx *gorm.DB, mapID uint, rs RouteSeed, pins map[string]models.LocationPin) error {
	start, ok := pins[rs.Start]
	if !ok {
		return fmt.Errorf("unknown start pin %q", rs.Start)
	}
	end, ok := pins[rs.End]
	if !ok {
		return fmt.Errorf("unknown end pin %q", rs.End)
	}

	waypoints := make([]models.RouteWaypoint, 0, len(rs.Waypoints))
	for _, ws := range rs.Waypoints {
		wp := models.RouteWaypoint{Order: ws.Order, Instruction: ws.Instruction}
		if ws.Pin != "" {
			pin, ok := pins[ws.Pin]
			if !ok {
				return fmt.Errorf("waypoint %d: unknown pin %q", ws.Order, ws.Pin)
			}
			id := pin.ID
			wp.LocationID = &id
			wp.Lat, wp.Lng = pin.Lat, pin.Lng
		}
		if ws.Lat != nil && ws.Lng != nil {
			wp.Lat, wp.Lng = *ws.Lat, *ws.Lng
		} else if ws.Pin == "" {
			return fmt.Errorf("waypoint %d: needs a pin or lat/lng", ws.Order)
		}
		waypoints = append(waypoints, wp)
	}

	var route models.Route
	if err := firstBy(tx, &route, "map_id = ? AND slug = ?", mapID, rs.Slug); err != nil {
		return err
	}
	route.MapID = mapID
	route.Slug = rs.Slug
	route.Name = rs.Name
	route.Description = rs.Description
	route.IsDefault = rs.IsDefault
	route.EstimatedMinutes = rs.EstimatedMinutes
	route.StartLocationID = start.ID
	route.EndLocationID = end.ID
	route.Instructions = rs.Instructions
	route.Waypoints = waypoints

	wkbGeom, err := navigation.RouteWKB(&route)
	if err != nil {
		return err
	}
	route.Geometry = wkbGeom
	if err := tx.Omit(clause.Associations).Save(&route).Error; err != nil {
		return err
	}

	if err := tx.Unscoped().Where("route_id = ?", route.ID).Delete(&models.RouteWaypoint{}).Error; err != nil {
		return err
	}
	for i := range waypoints {
		waypoints[i].RouteID = route.ID
	}
	if len(waypoints) > 0 {
		if err := tx.Create(&waypoints).Error; err != nil {
			return err
		}
	}

	if route.IsDefault {
		return tx.Model(&models.Route{}).
			Where("map_id = ? AND id <> ?", mapID, route.ID).
			Update("is_default", false).Error
	}
	return nil
}

func applyAdmin(tx *gorm.DB, as AdminSeed, passwordOverride string) error {
	password := as.Password
	if passwordOverride != "" {
		password = passwordOverride
	}
	if password == "" {
		return errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}

	var admin models.AdminUser
	if err := firstBy(tx, &admin, "email = ?", as.Email); err != nil {
		return err
	}
	if admin.ID == 0 {
		admin.Role = as.Role
		if admin.Role == "" {
			admin.Role = models.RoleEditor
		}
	}
	admin.Email = as.Email
	admin.Username = strings.ToLower(strings.TrimSpace(as.Username))
	admin.Name = as.Name
	admin.PasswordHash = string(hash)
	return tx.Omit(clause.Associations).Save(&admin).Error
}
