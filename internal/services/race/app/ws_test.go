package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
	"golang.org/x/net/websocket"
)

func dialWS(t *testing.T, srv *httptest.Server, sessionID, participantID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/" + sessionID + "/" + participantID
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var event map[string]any
	if err := websocket.JSON.Receive(conn, &event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

// waitForEvent reads events until one matches the wanted type. The read
// deadline bounds the wait when the event never arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()

	for {
		event := readEvent(t, conn)
		if event["type"] == wantType {
			return event
		}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, event map[string]any) {
	t.Helper()
	if err := websocket.JSON.Send(conn, event); err != nil {
		t.Fatalf("send event: %v", err)
	}
}

// newRacingConns provisions a session over the admission API and connects
// host and guest over WebSocket.
func newRacingConns(t *testing.T, srv *httptest.Server) (host, guest *websocket.Conn, hostID, guestID string) {
	t.Helper()

	created := createRace(t, srv)
	joined := joinRace(t, srv, created.SessionID)

	host = dialWS(t, srv, created.SessionID, created.ParticipantID)
	waitForEvent(t, host, domain.TypePlayerJoined)
	guest = dialWS(t, srv, created.SessionID, joined.ParticipantID)
	waitForEvent(t, guest, domain.TypePlayerJoined)
	return host, guest, created.ParticipantID, joined.ParticipantID
}

func TestWSJoinAnnouncesParticipants(t *testing.T) {
	srv := newTestServer(t)
	created := createRace(t, srv)

	conn := dialWS(t, srv, created.SessionID, created.ParticipantID)
	event := waitForEvent(t, conn, domain.TypePlayerJoined)

	if event["participantId"] != created.ParticipantID {
		t.Fatalf("joined participant = %v, want %q", event["participantId"], created.ParticipantID)
	}
	participants, ok := event["participants"].(map[string]any)
	if !ok {
		t.Fatalf("participants payload = %T, want object", event["participants"])
	}
	if _, ok := participants[created.ParticipantID]; !ok {
		t.Fatal("participants payload must include the host")
	}
}

func TestWSUnknownSessionGetsErrorThenClose(t *testing.T) {
	srv := newTestServer(t)

	conn := dialWS(t, srv, "absent", "nobody")
	event := readEvent(t, conn)
	if event["type"] != domain.TypeError {
		t.Fatalf("event type = %v, want %q", event["type"], domain.TypeError)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var next map[string]any
	if err := websocket.JSON.Receive(conn, &next); err == nil {
		t.Fatalf("expected closed connection, read %v", next)
	}
}

func TestWSReadyPairStartsRace(t *testing.T) {
	srv := newTestServer(t)
	host, guest, _, _ := newRacingConns(t, srv)

	sendEvent(t, host, map[string]any{"type": domain.TypePlayerReady})
	sendEvent(t, guest, map[string]any{"type": domain.TypePlayerReady})

	for _, conn := range []*websocket.Conn{host, guest} {
		event := waitForEvent(t, conn, domain.TypeGameStart)
		if _, ok := event["startTime"].(float64); !ok {
			t.Fatalf("startTime = %v, want unix milliseconds", event["startTime"])
		}
	}
}

func TestWSPositionIsRelayedToBothPeers(t *testing.T) {
	srv := newTestServer(t)
	host, guest, hostID, _ := newRacingConns(t, srv)

	sendEvent(t, host, map[string]any{
		"type":     domain.TypePositionUpdate,
		"position": map[string]any{"x": 12.5, "y": 0, "z": 40},
		"rotation": map[string]any{"x": 0, "y": 1.5, "z": 0},
		"speed":    88.0,
	})

	for _, conn := range []*websocket.Conn{host, guest} {
		event := waitForEvent(t, conn, domain.TypePlayerPosition)
		if event["participantId"] != hostID {
			t.Fatalf("position participant = %v, want %q", event["participantId"], hostID)
		}
		position, ok := event["position"].(map[string]any)
		if !ok {
			t.Fatalf("position payload = %T, want object", event["position"])
		}
		if position["x"] != 12.5 {
			t.Fatalf("position x = %v, want 12.5", position["x"])
		}
		if event["speed"] != 88.0 {
			t.Fatalf("speed = %v, want 88", event["speed"])
		}
	}
}

func TestWSLapIsRelayed(t *testing.T) {
	srv := newTestServer(t)
	host, guest, hostID, _ := newRacingConns(t, srv)

	sendEvent(t, host, map[string]any{"type": domain.TypeLapCompleted, "lap": 3})

	event := waitForEvent(t, guest, domain.TypePlayerLap)
	if event["participantId"] != hostID {
		t.Fatalf("lap participant = %v, want %q", event["participantId"], hostID)
	}
	if event["lap"] != 3.0 {
		t.Fatalf("lap = %v, want 3", event["lap"])
	}
}

func TestWSQuitNamesRemainingWinner(t *testing.T) {
	srv := newTestServer(t)
	host, guest, hostID, guestID := newRacingConns(t, srv)

	sendEvent(t, host, map[string]any{"type": domain.TypePlayerQuit})

	event := waitForEvent(t, guest, domain.TypePlayerQuitNotice)
	if event["participantId"] != hostID {
		t.Fatalf("quitter = %v, want %q", event["participantId"], hostID)
	}
	if event["winnerId"] != guestID {
		t.Fatalf("winner = %v, want %q", event["winnerId"], guestID)
	}
}

func TestWSDisconnectNamesRemainingWinner(t *testing.T) {
	srv := newTestServer(t)
	host, guest, hostID, guestID := newRacingConns(t, srv)

	if err := host.Close(); err != nil {
		t.Fatalf("close host connection: %v", err)
	}

	event := waitForEvent(t, guest, domain.TypePlayerDisconnected)
	if event["participantId"] != hostID {
		t.Fatalf("dropped participant = %v, want %q", event["participantId"], hostID)
	}
	if event["winnerId"] != guestID {
		t.Fatalf("winner = %v, want %q", event["winnerId"], guestID)
	}
}

func TestWSMalformedEventGetsErrorOnly(t *testing.T) {
	srv := newTestServer(t)
	created := createRace(t, srv)
	conn := dialWS(t, srv, created.SessionID, created.ParticipantID)
	waitForEvent(t, conn, domain.TypePlayerJoined)

	sendEvent(t, conn, map[string]any{"type": "teleport"})

	event := readEvent(t, conn)
	if event["type"] != domain.TypeError {
		t.Fatalf("event type = %v, want %q", event["type"], domain.TypeError)
	}
}
