package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"campus_nav/internal/config"
	"campus_nav/internal/middleware"
	"campus_nav/internal/models"
	"campus_nav/internal/navigation"
)

// upgrader configures the WebSocket connection. The mobile WebView and the
// admin dashboard connect from their own origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait = 5 * time.Second
	// Largest frame a client may send. GPS updates are a few hundred bytes.
	maxMessageSize = 4096
)

// Bridge message types.
const (
	MsgGPSUpdate    = "GPS_UPDATE"
	MsgRoute        = "ROUTE"
	MsgStatus       = "STATUS"
	MsgAnnouncement = "ANNOUNCEMENT"
	MsgError        = "ERROR"
)

// GPSCoords is the coordinate block the mobile shell forwards from the
// device. Timestamp arrives as epoch milliseconds or as an RFC3339 string.
type GPSCoords struct {
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON implements a custom unmarshaler to accept both timestamp forms.
func (g *GPSCoords) UnmarshalJSON(data []byte) error {
	type alias GPSCoords
	aux := &struct {
		Timestamp json.RawMessage `json:"timestamp"`
		*alias
	}{alias: (*alias)(g)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := strings.TrimSpace(string(aux.Timestamp))
	switch {
	case raw == "" || raw == "null":
		g.Timestamp = time.Time{}
	case strings.HasPrefix(raw, `"`):
		var ts string
		if err := json.Unmarshal(aux.Timestamp, &ts); err != nil {
			return err
		}
		// Assume UTC when no zone is given.
		if !(strings.HasSuffix(ts, "Z") || (len(ts) > 6 && strings.ContainsAny(ts[len(ts)-6:], "+-"))) {
			ts += "Z"
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", raw, err)
		}
		g.Timestamp = t
	default:
		var ms float64
		if err := json.Unmarshal(aux.Timestamp, &ms); err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", raw, err)
		}
		g.Timestamp = time.UnixMilli(int64(ms)).UTC()
	}
	return nil
}

type bridgeMessage struct {
	Type   string     `json:"type"`
	Coords *GPSCoords `json:"coords"`
}

// parseGPSUpdate decodes one client message into a position.
func parseGPSUpdate(p []byte) (GPSCoords, error) {
	var msg bridgeMessage
	if err := json.Unmarshal(p, &msg); err != nil {
		return GPSCoords{}, fmt.Errorf("malformed message: %w", err)
	}
	if msg.Type != MsgGPSUpdate {
		return GPSCoords{}, fmt.Errorf("unsupported message type %q", msg.Type)
	}
	if msg.Coords == nil || msg.Coords.Latitude == nil || msg.Coords.Longitude == nil {
		return GPSCoords{}, errors.New("coords.latitude and coords.longitude are required")
	}
	lat := *msg.Coords.Latitude
	if lat < -90 || lat > 90 {
		return GPSCoords{}, errors.New("latitude out of range")
	}
	if msg.Coords.Timestamp.IsZero() {
		msg.Coords.Timestamp = time.Now().UTC()
	}
	return *msg.Coords, nil
}

// bridgeReply is every message the server sends on /ws/navigate.
type bridgeReply struct {
	Type         string                   `json:"type"`
	SessionID    string                   `json:"session_id,omitempty"`
	Route        *RouteResponse           `json:"route,omitempty"`
	Summary      string                   `json:"summary,omitempty"`
	Steps        []string                 `json:"steps,omitempty"`
	Status       *navigation.CampusStatus `json:"status,omitempty"`
	Position     *navigation.Point        `json:"position,omitempty"`
	Announcement *navigation.Announcement `json:"announcement,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// VisitorPosition is what admins watching a map see for each visitor.
type VisitorPosition struct {
	SessionID    string    `json:"session_id"`
	MapID        uint      `json:"map_id"`
	RouteID      uint      `json:"route_id,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     float64   `json:"accuracy"`
	Status       string    `json:"status"`
	WithinCampus bool      `json:"within_campus"`
	Timestamp    time.Time `json:"timestamp"`
}

// feedConn is the part of *websocket.Conn the hub writes to.
type feedConn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
}

// VisitorHub fans visitor positions out to the admins watching each map.
type VisitorHub struct {
	mapClients map[uint]map[feedConn]bool
	broadcast  chan VisitorPosition
	mu         sync.Mutex
}

func NewVisitorHub() *VisitorHub {
	return &VisitorHub{
		mapClients: make(map[uint]map[feedConn]bool),
		broadcast:  make(chan VisitorPosition, 100),
	}
}

// Visitors is the hub the HTTP handlers publish to. Run must be started for
// anything to be delivered.
var Visitors = NewVisitorHub()

// Run delivers published positions until ctx is done.
func (h *VisitorHub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pos := <-h.broadcast:
			h.deliver(pos)
		}
	}
}

func (h *VisitorHub) deliver(pos VisitorPosition) {
	h.mu.Lock()
	clients := make([]feedConn, 0, len(h.mapClients[pos.MapID]))
	for conn := range h.mapClients[pos.MapID] {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(pos); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"map_id":   pos.MapID,
				"conn_ptr": fmt.Sprintf("%p", conn),
			}).Info("Admin feed write failed, unregistering.")
			h.Unregister(pos.MapID, conn)
		}
	}
}

// Register adds an admin connection to a map's feed.
func (h *VisitorHub) Register(mapID uint, conn feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.mapClients[mapID]; !ok {
		h.mapClients[mapID] = make(map[feedConn]bool)
	}
	h.mapClients[mapID][conn] = true
	logrus.WithFields(logrus.Fields{
		"map_id":   mapID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Admin registered with visitor feed.")
}

// Unregister removes an admin connection from a map's feed.
func (h *VisitorHub) Unregister(mapID uint, conn feedConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.mapClients[mapID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.mapClients, mapID)
		}
	}
}

// Watchers counts the admin connections on a map.
func (h *VisitorHub) Watchers(mapID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mapClients[mapID])
}

// Publish queues a position. When the queue is full the position is dropped;
// the next fix replaces it anyway.
func (h *VisitorHub) Publish(pos VisitorPosition) {
	select {
	case h.broadcast <- pos:
	default:
		logrus.WithField("map_id", pos.MapID).Warn("Visitor broadcast channel full, dropping position.")
	}
}

func writeReply(conn *websocket.Conn, reply bridgeReply) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(reply)
}

// HandleNavigateWebSocket is the GPS bridge. It resolves the route first,
// then answers every GPS_UPDATE with a STATUS and, near a waypoint, an
// ANNOUNCEMENT.
func HandleNavigateWebSocket(c *gin.Context) {
	mapID, err := parseOptionalID(c.Query("map_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid map ID"})
		return
	}
	routeID, err := parseOptionalID(c.Query("route_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	m, err := loadNavigationMap(config.DB, mapID)
	if err != nil {
		writeError(c, err, "Map not found", "Failed to load map")
		return
	}
	route := navigation.Resolve(m, navigation.Query{Destination: c.Query("destination"), RouteID: routeID})
	if route == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No route available on this map"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"map_id":     m.ID,
		"route_id":   route.ID,
	}).Info("Navigation WebSocket connection established.")

	runNavigationSession(conn, sessionID, m, route)

	logrus.WithField("session_id", sessionID).Info("Navigation WebSocket connection closed.")
}

func runNavigationSession(conn *websocket.Conn, sessionID string, m *models.Map, route *models.Route) {
	resp := toRouteResponse(*route)
	if err := writeReply(conn, bridgeReply{
		Type:      MsgRoute,
		SessionID: sessionID,
		Route:     &resp,
		Summary:   resp.Summary,
		Steps:     resp.Steps,
	}); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to send route")
		return
	}

	conn.SetReadLimit(maxMessageSize)
	tracker := navigation.NewTracker(route)
	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("session_id", sessionID).Debug("Navigation WebSocket read ended")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := handleGPSMessage(conn, sessionID, m, route, tracker, p); err != nil {
			logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to write to navigation WebSocket")
			return
		}
	}
}

// handleGPSMessage answers one client message. Only write failures are
// returned; bad input is reported to the client and the session goes on.
func handleGPSMessage(conn *websocket.Conn, sessionID string, m *models.Map, route *models.Route, tracker *navigation.Tracker, p []byte) error {
	coords, err := parseGPSUpdate(p)
	if err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Debug("Rejected bridge message")
		return writeReply(conn, bridgeReply{Type: MsgError, SessionID: sessionID, Error: err.Error()})
	}

	pos := navigation.Point{Lat: *coords.Latitude, Lng: navigation.NormalizeLng(*coords.Longitude)}
	status := navigation.StatusFor(m, &pos)
	status.AccuracyMeters = coords.Accuracy
	if err := writeReply(conn, bridgeReply{Type: MsgStatus, SessionID: sessionID, Status: &status, Position: &pos}); err != nil {
		return err
	}

	if ann, ok := tracker.Update(pos); ok {
		if err := writeReply(conn, bridgeReply{Type: MsgAnnouncement, SessionID: sessionID, Announcement: &ann}); err != nil {
			return err
		}
	}

	Visitors.Publish(VisitorPosition{
		SessionID:    sessionID,
		MapID:        m.ID,
		RouteID:      route.ID,
		Latitude:     pos.Lat,
		Longitude:    pos.Lng,
		Accuracy:     coords.Accuracy,
		Status:       status.Status,
		WithinCampus: status.WithinCampus,
		Timestamp:    coords.Timestamp,
	})
	return nil
}

// authenticateAdminForWebSocket validates the JWT passed as ?token=, since
// browsers cannot set headers on a WebSocket handshake.
func authenticateAdminForWebSocket(c *gin.Context) (*middleware.Claims, int, error) {
	tokenString := c.Query("token")
	if tokenString == "" {
		return nil, http.StatusUnauthorized, errors.New("missing authentication token")
	}
	claims, err := middleware.ValidateToken(tokenString)
	if err != nil {
		return nil, http.StatusUnauthorized, fmt.Errorf("invalid token: %w", err)
	}
	switch claims.Role {
	case models.RoleSuperAdmin, models.RoleEditor:
		return claims, 0, nil
	default:
		return nil, http.StatusForbidden, errors.New("insufficient permissions")
	}
}

// HandleVisitorFeed streams visitor positions on one map to an admin.
func HandleVisitorFeed(c *gin.Context) {
	claims, status, err := authenticateAdminForWebSocket(c)
	if err != nil {
		logrus.WithError(err).Warn("Visitor feed connection rejected")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	mapID, ok := parseID(c, "id", "map")
	if !ok {
		return
	}
	if err := config.DB.Select("id").First(&models.Map{}, mapID).Error; err != nil {
		writeError(c, err, "Map not found", "Failed to load map")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	Visitors.Register(mapID, conn)
	defer Visitors.Unregister(mapID, conn)

	logrus.WithFields(logrus.Fields{
		"admin_id": claims.AdminID,
		"map_id":   mapID,
	}).Info("Visitor feed connection established.")

	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
