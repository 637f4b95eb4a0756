package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	perrors "github.com/rohith-arumugam/truck-racing/internal/platform/errors"
	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
	"github.com/rohith-arumugam/truck-racing/internal/race/engine"
	"github.com/rohith-arumugam/truck-racing/internal/track"
)

type bannerResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

type createRaceResponse struct {
	SessionID     string        `json:"sessionId"`
	ParticipantID string        `json:"participantId"`
	Tracks        []track.Track `json:"tracks"`
	Laps          int           `json:"laps"`
}

type joinRaceResponse struct {
	SessionID     string        `json:"sessionId"`
	ParticipantID string        `json:"participantId"`
	HostID        string        `json:"hostId"`
	Tracks        []track.Track `json:"tracks"`
	Laps          int           `json:"laps"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func handleBanner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bannerResponse{Service: "truck-racing", Status: "ok"})
}

// handleCreateRace provisions a session with a fresh track set and admits the
// caller as host.
func handleCreateRace(eng *engine.Engine, generator *track.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := eng.CreateSession(r.Context(), generator.GenerateSet(domain.Laps))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, createRaceResponse{
			SessionID:     session.ID,
			ParticipantID: session.HostID,
			Tracks:        session.Tracks,
			Laps:          domain.Laps,
		})
	}
}

// handleJoinRace admits a guest into a waiting session.
func handleJoinRace(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.PathValue("sessionID"))
		if sessionID == "" {
			writeError(w, perrors.New(perrors.CodeSessionNotFound, "session id is required"))
			return
		}

		session, participantID, err := eng.JoinSession(r.Context(), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, joinRaceResponse{
			SessionID:     session.ID,
			ParticipantID: participantID,
			HostID:        session.HostID,
			Tracks:        session.Tracks,
			Laps:          domain.Laps,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("race: encode response: %v", err)
	}
}

// writeError maps domain error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := perrors.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), errorResponse{
		Code:    string(code),
		Message: err.Error(),
	})
}
