package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"campus_nav/internal/middleware"
	"campus_nav/internal/navigation"
)

func TestGPSCoords_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"epoch millis", `{"latitude":1,"longitude":2,"timestamp":1700000000123}`, time.UnixMilli(1700000000123).UTC()},
		{"rfc3339", `{"latitude":1,"longitude":2,"timestamp":"2024-05-01T10:00:00+02:00"}`, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{"no zone", `{"latitude":1,"longitude":2,"timestamp":"2024-05-01T10:00:00.5"}`, time.Date(2024, 5, 1, 10, 0, 0, 500000000, time.UTC)},
		{"missing", `{"latitude":1,"longitude":2}`, time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var g GPSCoords
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &g))
			assert.True(t, tc.want.Equal(g.Timestamp), "got %s", g.Timestamp)
			require.NotNil(t, g.Latitude)
			assert.Equal(t, 1.0, *g.Latitude)
		})
	}

	var g GPSCoords
	assert.Error(t, json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &g))
}

func TestParseGPSUpdate(t *testing.T) {
	coords, err := parseGPSUpdate([]byte(`{"type":"GPS_UPDATE","coords":{"latitude":37.4221,"longitude":-122.0841,"accuracy":4.5}}`))
	require.NoError(t, err)
	assert.Equal(t, 4.5, coords.Accuracy)
	assert.WithinDuration(t, time.Now(), coords.Timestamp, 5*time.Second)

	for _, raw := range []string{
		`not json`,
		`{"type":"PING"}`,
		`{"type":"GPS_UPDATE"}`,
		`{"type":"GPS_UPDATE","coords":{"latitude":37.4}}`,
		`{"type":"GPS_UPDATE","coords":{"latitude":95,"longitude":0}}`,
	} {
		_, err := parseGPSUpdate([]byte(raw))
		assert.Error(t, err, raw)
	}
}

type fakeFeed struct {
	fail bool
	got  chan interface{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{got: make(chan interface{}, 10)}
}

func (f *fakeFeed) WriteJSON(v interface{}) error {
	if f.fail {
		return errors.New("broken pipe")
	}
	f.got <- v
	return nil
}

func (f *fakeFeed) SetWriteDeadline(time.Time) error { return nil }

func TestVisitorHub(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewVisitorHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	watcher, broken, elsewhere := newFakeFeed(), &fakeFeed{fail: true}, newFakeFeed()
	hub.Register(1, watcher)
	hub.Register(1, broken)
	hub.Register(2, elsewhere)
	assert.Equal(t, 2, hub.Watchers(1))

	hub.Publish(VisitorPosition{SessionID: "s1", MapID: 1, Latitude: 37.4221, Longitude: -122.0841})
	select {
	case v := <-watcher.got:
		pos, ok := v.(VisitorPosition)
		require.True(t, ok)
		assert.Equal(t, "s1", pos.SessionID)
	case <-time.After(time.Second):
		t.Fatal("position was not delivered")
	}
	require.Eventually(t, func() bool { return hub.Watchers(1) == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, elsewhere.got)

	hub.Unregister(1, watcher)
	assert.Zero(t, hub.Watchers(1))
	assert.Equal(t, 1, hub.Watchers(2))

	cancel()
	require.NoError(t, <-done)
}

func TestVisitorHub_PublishDropsWhenFull(t *testing.T) {
	hub := NewVisitorHub()
	for i := 0; i < cap(hub.broadcast)+5; i++ {
		hub.Publish(VisitorPosition{MapID: 1})
	}
	assert.Len(t, hub.broadcast, cap(hub.broadcast))
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readReply(t *testing.T, conn *websocket.Conn) bridgeReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply bridgeReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func gpsUpdate(lat, lng float64) gin.H {
	return gin.H{
		"type": MsgGPSUpdate,
		"coords": gin.H{
			"latitude":  lat,
			"longitude": lng,
			"accuracy":  5,
			"timestamp": 1700000000000,
		},
	}
}

func TestNavigateWebSocket(t *testing.T) {
	db := setupTestDB(t)
	f := createCampus(t, db)

	prev := Visitors
	Visitors = NewVisitorHub()
	t.Cleanup(func() { Visitors = prev })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Visitors.Run(ctx)

	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	feedPath := fmt.Sprintf("/ws/admin/maps/%d/visitors?token=%s", f.Map.ID, editorToken(t))
	feed, _, err := websocket.DefaultDialer.Dial(wsURL(srv, feedPath), nil)
	require.NoError(t, err)
	defer feed.Close()
	require.Eventually(t, func() bool { return Visitors.Watchers(f.Map.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/navigate?destination=library"), nil)
	require.NoError(t, err)
	defer conn.Close()

	reply := readReply(t, conn)
	assert.Equal(t, MsgRoute, reply.Type)
	require.NotNil(t, reply.Route)
	assert.Equal(t, f.Route.ID, reply.Route.ID)
	assert.NotEmpty(t, reply.Steps)
	sessionID := reply.SessionID
	require.NotEmpty(t, sessionID)

	// At the first waypoint: status, then its announcement.
	require.NoError(t, conn.WriteJSON(gpsUpdate(f.Welcome.Lat, f.Welcome.Lng)))
	reply = readReply(t, conn)
	assert.Equal(t, MsgStatus, reply.Type)
	require.NotNil(t, reply.Status)
	assert.Equal(t, navigation.StatusLiveGuidance, reply.Status.Status)
	assert.Equal(t, 5.0, reply.Status.AccuracyMeters)
	reply = readReply(t, conn)
	assert.Equal(t, MsgAnnouncement, reply.Type)
	require.NotNil(t, reply.Announcement)
	assert.Equal(t, 1, reply.Announcement.WaypointOrder)
	assert.False(t, reply.Announcement.Final)

	require.NoError(t, feed.SetReadDeadline(time.Now().Add(5*time.Second)))
	var pos VisitorPosition
	require.NoError(t, feed.ReadJSON(&pos))
	assert.Equal(t, sessionID, pos.SessionID)
	assert.Equal(t, f.Route.ID, pos.RouteID)
	assert.True(t, pos.WithinCampus)
	assert.True(t, time.UnixMilli(1700000000000).Equal(pos.Timestamp))

	// Bad input is reported and the session carries on.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)))
	reply = readReply(t, conn)
	assert.Equal(t, MsgError, reply.Type)
	assert.Contains(t, reply.Error, "unsupported message type")

	// Same spot again: status only.
	require.NoError(t, conn.WriteJSON(gpsUpdate(f.Welcome.Lat, f.Welcome.Lng)))
	reply = readReply(t, conn)
	assert.Equal(t, MsgStatus, reply.Type)

	require.NoError(t, conn.WriteJSON(gpsUpdate(f.Library.Lat, f.Library.Lng)))
	reply = readReply(t, conn)
	assert.Equal(t, MsgStatus, reply.Type)
	reply = readReply(t, conn)
	assert.Equal(t, MsgAnnouncement, reply.Type)
	assert.Equal(t, 3, reply.Announcement.WaypointOrder)
	assert.True(t, reply.Announcement.Final)
}

func TestNavigateWebSocket_NoRoute(t *testing.T) {
	setupTestDB(t)
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/navigate?map_id=999"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVisitorFeed_Rejected(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRouter()
	f := createCampus(t, db)
	path := fmt.Sprintf("/ws/admin/maps/%d/visitors", f.Map.ID)

	w := doJSON(r, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, path+"?token=garbage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	visitor, err := middleware.GenerateToken(9, "VISITOR", "guest")
	require.NoError(t, err)
	w = doJSON(r, http.MethodGet, path+"?token="+visitor, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodGet, "/ws/admin/maps/999/visitors?token="+editorToken(t), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNavigateWebSocket_OversizedFrame(t *testing.T) {
	db := setupTestDB(t)
	createCampus(t, db)
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/navigate?destination=library"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, MsgRoute, readReply(t, conn).Type)

	big := []byte(`{"type":"GPS_UPDATE","pad":"` + strings.Repeat("x", maxMessageSize) + `"}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, big))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), err.Error())
}
