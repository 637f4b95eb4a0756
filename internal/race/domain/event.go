package domain

import (
	"encoding/json"
	"fmt"
)

// Wire discriminants for inbound events.
const (
	TypePlayerReady    = "player_ready"
	TypePositionUpdate = "position_update"
	TypeLapCompleted   = "lap_completed"
	TypePlayerQuit     = "player_quit"
)

// Wire discriminants for outbound events.
const (
	TypePlayerJoined       = "player_joined"
	TypeGameStart          = "game_start"
	TypePlayerPosition     = "player_position"
	TypePlayerLap          = "player_lap"
	TypeGameCompleted      = "game_completed"
	TypePlayerQuitNotice   = "player_quit"
	TypePlayerDisconnected = "player_disconnected"
	TypeError              = "error"
)

// Inbound is a participant-attributed event received over a connection.
type Inbound interface {
	isInbound()
}

// Ready signals the participant is ready to race.
type Ready struct{}

// PositionUpdate reports the participant's latest transform and speed.
type PositionUpdate struct {
	Position Vector
	Rotation Vector
	Speed    float64
}

// LapCompleted reports the participant finished a lap.
type LapCompleted struct {
	Lap int
}

// Quit signals the participant is abandoning the race.
type Quit struct{}

func (Ready) isInbound()          {}
func (PositionUpdate) isInbound() {}
func (LapCompleted) isInbound()   {}
func (Quit) isInbound()           {}

type inboundEnvelope struct {
	Type     string  `json:"type"`
	Position *Vector `json:"position"`
	Rotation *Vector `json:"rotation"`
	Speed    float64 `json:"speed"`
	Lap      *int    `json:"lap"`
}

// DecodeInbound parses one wire message into its event variant. Unknown
// types and missing required fields are construction-time errors, never a
// broadcast concern.
func DecodeInbound(data []byte) (Inbound, error) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch envelope.Type {
	case TypePlayerReady:
		return Ready{}, nil
	case TypePositionUpdate:
		if envelope.Position == nil || envelope.Rotation == nil {
			return nil, fmt.Errorf("position update requires position and rotation")
		}
		return PositionUpdate{
			Position: *envelope.Position,
			Rotation: *envelope.Rotation,
			Speed:    envelope.Speed,
		}, nil
	case TypeLapCompleted:
		if envelope.Lap == nil {
			return nil, fmt.Errorf("lap completion requires a lap number")
		}
		if *envelope.Lap < 0 {
			return nil, fmt.Errorf("lap number must not be negative")
		}
		return LapCompleted{Lap: *envelope.Lap}, nil
	case TypePlayerQuit:
		return Quit{}, nil
	case "":
		return nil, fmt.Errorf("event type is required")
	default:
		return nil, fmt.Errorf("unsupported event type %q", envelope.Type)
	}
}

// Outbound is an event fanned out to one participant or a whole session.
// Every variant carries its own wire discriminant so delivery is a plain
// JSON encode.
type Outbound interface {
	isOutbound()
}

// PlayerJoined announces a connected participant along with the current
// participant states for late joiners.
type PlayerJoined struct {
	Type          string                       `json:"type"`
	ParticipantID string                       `json:"participantId"`
	Participants  map[string]*ParticipantState `json:"participants"`
}

// GameStart announces the Waiting to Racing transition. StartTime is Unix
// milliseconds.
type GameStart struct {
	Type      string `json:"type"`
	StartTime int64  `json:"startTime"`
}

// PlayerPosition relays a participant's transform to the whole session.
type PlayerPosition struct {
	Type          string  `json:"type"`
	ParticipantID string  `json:"participantId"`
	Position      Vector  `json:"position"`
	Rotation      Vector  `json:"rotation"`
	Speed         float64 `json:"speed"`
}

// PlayerLap relays a participant's effective lap count.
type PlayerLap struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
	Lap           int    `json:"lap"`
}

// GameCompleted announces the Racing to Completed transition.
type GameCompleted struct {
	Type string `json:"type"`
}

// PlayerQuitNotice announces an abandoning participant and the remaining
// winner candidate.
type PlayerQuitNotice struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
	WinnerID      string `json:"winnerId"`
}

// PlayerDisconnected announces a dropped connection and the remaining winner
// candidate.
type PlayerDisconnected struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
	WinnerID      string `json:"winnerId"`
}

// ErrorEvent reports a rejected message to its sender only.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (PlayerJoined) isOutbound()       {}
func (GameStart) isOutbound()          {}
func (PlayerPosition) isOutbound()     {}
func (PlayerLap) isOutbound()          {}
func (GameCompleted) isOutbound()      {}
func (PlayerQuitNotice) isOutbound()   {}
func (PlayerDisconnected) isOutbound() {}
func (ErrorEvent) isOutbound()         {}

// NewPlayerJoined builds a join announcement from a participant snapshot.
func NewPlayerJoined(participantID string, participants map[string]*ParticipantState) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, ParticipantID: participantID, Participants: participants}
}

// NewGameStart builds a race start announcement.
func NewGameStart(startTime int64) GameStart {
	return GameStart{Type: TypeGameStart, StartTime: startTime}
}

// NewPlayerPosition builds a transform relay event.
func NewPlayerPosition(participantID string, position, rotation Vector, speed float64) PlayerPosition {
	return PlayerPosition{
		Type:          TypePlayerPosition,
		ParticipantID: participantID,
		Position:      position,
		Rotation:      rotation,
		Speed:         speed,
	}
}

// NewPlayerLap builds a lap relay event.
func NewPlayerLap(participantID string, lap int) PlayerLap {
	return PlayerLap{Type: TypePlayerLap, ParticipantID: participantID, Lap: lap}
}

// NewGameCompleted builds a race completion announcement.
func NewGameCompleted() GameCompleted {
	return GameCompleted{Type: TypeGameCompleted}
}

// NewPlayerQuit builds an abandonment announcement.
func NewPlayerQuit(participantID, winnerID string) PlayerQuitNotice {
	return PlayerQuitNotice{Type: TypePlayerQuitNotice, ParticipantID: participantID, WinnerID: winnerID}
}

// NewPlayerDisconnected builds a disconnect announcement.
func NewPlayerDisconnected(participantID, winnerID string) PlayerDisconnected {
	return PlayerDisconnected{Type: TypePlayerDisconnected, ParticipantID: participantID, WinnerID: winnerID}
}

// NewErrorEvent builds a sender-only rejection notice.
func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

// Delivery is one routing decision produced by the state machine: an event
// bound for a single participant or, when ParticipantID is empty, for every
// registered participant of the session.
type Delivery struct {
	ParticipantID string
	Event         Outbound
}

// BroadcastDelivery targets every registered participant of the session.
func BroadcastDelivery(event Outbound) Delivery {
	return Delivery{Event: event}
}

// DirectDelivery targets a single participant.
func DirectDelivery(participantID string, event Outbound) Delivery {
	return Delivery{ParticipantID: participantID, Event: event}
}
