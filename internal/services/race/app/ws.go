package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rohith-arumugam/truck-racing/internal/platform/timeouts"
	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
	"github.com/rohith-arumugam/truck-racing/internal/race/engine"
	"golang.org/x/net/websocket"
)

const maxDecodeErrorsPerConn = 3

// wsPeer serializes JSON event writes onto one WebSocket connection. A slow
// or dead peer fails its write deadline instead of stalling the broadcast.
type wsPeer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn, encoder: json.NewEncoder(conn)}
}

func (p *wsPeer) Send(event domain.Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(timeouts.BroadcastWrite)); err != nil {
		return err
	}
	return p.encoder.Encode(event)
}

func (p *wsPeer) Close() error {
	return p.conn.Close()
}

// wsHandler upgrades race connections and pumps inbound events into the
// engine until the connection ends.
func wsHandler(eng *engine.Engine) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, eng)
	})
}

func handleWSConn(conn *websocket.Conn, eng *engine.Engine) {
	defer func() {
		_ = conn.Close()
	}()

	peer := newWSPeer(conn)
	request := conn.Request()
	if request == nil {
		return
	}
	sessionID := strings.TrimSpace(request.PathValue("sessionID"))
	participantID := strings.TrimSpace(request.PathValue("participantID"))
	if sessionID == "" || participantID == "" {
		_ = peer.Send(domain.NewErrorEvent("session and participant ids are required"))
		return
	}

	if err := eng.Connect(request.Context(), sessionID, participantID, peer); err != nil {
		// Connect already delivered the rejection event to this peer.
		return
	}
	defer eng.Disconnect(request.Context(), sessionID, participantID)

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = peer.Send(domain.NewErrorEvent("invalid event payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		event, err := domain.DecodeInbound(raw)
		if err != nil {
			_ = peer.Send(domain.NewErrorEvent(err.Error()))
			continue
		}

		if err := eng.HandleEvent(request.Context(), sessionID, participantID, event); err != nil {
			log.Printf("race: event from %s in session %s rejected: %v", participantID, sessionID, err)
			if errors.Is(err, engine.ErrSessionNotFound) {
				return
			}
		}
	}
}
