package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/saiful3278/Screenshare-backend/coordinator"
	"github.com/saiful3278/Screenshare-backend/model"
	store "github.com/saiful3278/Screenshare-backend/storage/memory"
	sw "github.com/saiful3278/Screenshare-backend/switch"
)

const testReadDeadline = 3 * time.Second

func startTestStack(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	coord := coordinator.NewCoordinator(coordinator.Config{
		Store:     store.NewStore(),
		Transport: sw.NewSwitch(&logger),
		Logger:    &logger,
	})
	srv := NewServer(Config{
		Logger:      &logger,
		Coordinator: coord,
		ListenAddr:  ":0",
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/signal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) model.Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(testReadDeadline)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var env model.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestSignaling_StartShareRoundTrip(t *testing.T) {
	ts := startTestStack(t)
	host := dial(t, ts)

	send(t, host, `{"type":"start-share","roomId":"demo"}`)
	env := recv(t, host)
	if env.Type != model.KindRoomCreated || env.RoomID != "demo" {
		t.Fatalf("want room-created{demo}, got %+v", env)
	}

	send(t, host, `{"type":"get-available"}`)
	env = recv(t, host)
	if env.Type != model.KindAvailableCount || env.Count == nil || *env.Count != 1 {
		t.Fatalf("want available-count{1}, got %+v", env)
	}
}

func TestSignaling_ViewerJoinAndRelay(t *testing.T) {
	ts := startTestStack(t)
	host := dial(t, ts)
	viewer := dial(t, ts)

	send(t, host, `{"type":"start-share","roomId":"demo"}`)
	if env := recv(t, host); env.Type != model.KindRoomCreated {
		t.Fatalf("want room-created, got %+v", env)
	}

	send(t, viewer, `{"type":"join-view","roomId":"demo"}`)
	if env := recv(t, viewer); env.Type != model.KindViewJoined || env.RoomID != "demo" {
		t.Fatalf("want view-joined{demo}, got %+v", env)
	}

	joined := recv(t, host)
	if joined.Type != model.KindViewerJoined || joined.ViewerID == "" {
		t.Fatalf("want viewer-joined, got %+v", joined)
	}

	// Viewer broadcasts an offer into the room; the host receives it
	// relabeled with the viewer's transport-assigned id.
	send(t, viewer, `{"type":"offer","offer":{"sdp":"x"}}`)
	env := recv(t, host)
	if env.Type != model.KindOffer || env.FromID != joined.ViewerID {
		t.Fatalf("want offer from %s, got %+v", joined.ViewerID, env)
	}

	// Targeted answer back to the viewer.
	send(t, host, `{"type":"answer","targetId":"`+env.FromID+`","answer":{"sdp":"y"}}`)
	env = recv(t, viewer)
	if env.Type != model.KindAnswer || env.FromID == "" {
		t.Fatalf("want relayed answer, got %+v", env)
	}
}

func TestSignaling_ErrorsAreNonFatal(t *testing.T) {
	ts := startTestStack(t)
	conn := dial(t, ts)

	send(t, conn, `{"type":"bogus"}`)
	if env := recv(t, conn); env.Type != model.KindError || env.Message != "Invalid event type" {
		t.Fatalf("want Invalid event type, got %+v", env)
	}

	// The connection survives the rejection.
	send(t, conn, `{"type":"get-available"}`)
	if env := recv(t, conn); env.Type != model.KindAvailableCount {
		t.Fatalf("connection should stay usable after an error, got %+v", env)
	}
}

func TestSignaling_OversizedFrameIsNonFatal(t *testing.T) {
	ts := startTestStack(t)
	conn := dial(t, ts)

	// Three times the protocol payload cap, still under the transport read
	// limit: the sender must get a protocol error, not a dropped connection.
	frame := `{"type":"offer","offer":"` + strings.Repeat("x", 3*model.MaxPayloadBytes) + `"}`
	send(t, conn, frame)
	if env := recv(t, conn); env.Type != model.KindError || env.Message != "Message too large" {
		t.Fatalf("want Message too large, got %+v", env)
	}

	send(t, conn, `{"type":"get-available"}`)
	if env := recv(t, conn); env.Type != model.KindAvailableCount {
		t.Fatalf("connection should stay usable after oversize, got %+v", env)
	}
}

func TestSignaling_HostDisconnectClosesViewers(t *testing.T) {
	ts := startTestStack(t)
	host := dial(t, ts)
	viewer := dial(t, ts)

	send(t, host, `{"type":"start-share","roomId":"demo"}`)
	if env := recv(t, host); env.Type != model.KindRoomCreated {
		t.Fatalf("want room-created, got %+v", env)
	}
	send(t, viewer, `{"type":"join-view","roomId":"demo"}`)
	if env := recv(t, viewer); env.Type != model.KindViewJoined {
		t.Fatalf("want view-joined, got %+v", env)
	}

	if err := host.Close(); err != nil {
		t.Fatalf("close host: %v", err)
	}

	if env := recv(t, viewer); env.Type != model.KindHostDisconnected {
		t.Fatalf("want host-disconnected, got %+v", env)
	}

	// The relay then terminates the viewer session as well.
	_ = viewer.SetReadDeadline(time.Now().Add(testReadDeadline))
	for {
		if _, _, err := viewer.ReadMessage(); err != nil {
			return
		}
	}
}
