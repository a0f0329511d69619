package navigation

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"

	"campus_nav/internal/models"
)

// RouteLineString builds the walking path as a LINESTRING in lng/lat order.
// Routes with fewer than two waypoints have no line and return nil.
func RouteLineString(route *models.Route) (*geom.LineString, error) {
	sorted := SortedWaypoints(route)
	if len(sorted) < 2 {
		return nil, nil
	}
	coords := make([]geom.Coord, 0, len(sorted))
	for _, wp := range sorted {
		coords = append(coords, geom.Coord{NormalizeLng(wp.Lng), wp.Lat})
	}
	ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, fmt.Errorf("build route line: %w", err)
	}
	return ls.SetSRID(4326), nil
}

// RouteWKB encodes the route path for the geometry column.
func RouteWKB(route *models.Route) ([]byte, error) {
	ls, err := RouteLineString(route)
	if err != nil || ls == nil {
		return nil, err
	}
	return wkb.Marshal(ls, wkb.NDR)
}

// WKBToGeoJSON converts WKB bytes into a GeoJSON geometry string.
func WKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MapFeatures renders a map as a FeatureCollection: one Point per pin and one
// LineString per route that has a path.
func MapFeatures(m *models.Map) ([]byte, error) {
	fc := &gjson.FeatureCollection{Features: []*gjson.Feature{}}

	for _, pin := range m.LocationPins {
		fc.Features = append(fc.Features, &gjson.Feature{
			ID:       "pin-" + strconv.FormatUint(uint64(pin.ID), 10),
			Geometry: geom.NewPointFlat(geom.XY, []float64{NormalizeLng(pin.Lng), pin.Lat}),
			Properties: map[string]interface{}{
				"kind":        "pin",
				"slug":        pin.Slug,
				"name":        pin.Name,
				"description": pin.Description,
				"category":    pin.Category,
				"floor":       pin.Floor,
			},
		})
	}

	for i := range m.Routes {
		route := &m.Routes[i]
		ls, err := RouteLineString(route)
		if err != nil {
			return nil, err
		}
		if ls == nil {
			continue
		}
		props := map[string]interface{}{
			"kind":       "route",
			"slug":       route.Slug,
			"name":       route.Name,
			"is_default": route.IsDefault,
			"steps":      Guidance(route),
		}
		if route.EstimatedMinutes != nil {
			props["estimated_minutes"] = *route.EstimatedMinutes
		}
		fc.Features = append(fc.Features, &gjson.Feature{
			ID:         "route-" + strconv.FormatUint(uint64(route.ID), 10),
			Geometry:   ls,
			Properties: props,
		})
	}

	return json.Marshal(fc)
}
