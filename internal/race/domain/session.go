package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/rohith-arumugam/truck-racing/internal/track"
)

// Laps is the number of laps a participant must finish to complete a race.
const Laps = 10

// MaxParticipants caps admission into a session. The admission surface
// enforces the cap; the core never evicts participants.
const MaxParticipants = 2

// Phase describes the shared lifecycle stage of a session. Phases only move
// forward: Waiting, then Racing, then Completed.
type Phase int

const (
	// PhaseWaiting indicates the session is admitting and collecting ready
	// signals.
	PhaseWaiting Phase = iota
	// PhaseRacing indicates the race has started.
	PhaseRacing
	// PhaseCompleted indicates every participant finished; terminal.
	PhaseCompleted
)

// String returns the wire spelling of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseRacing:
		return "racing"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Vector is a 3-axis numeric value used for positions and rotations.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ParticipantState holds the last reported racing state for one participant.
// It survives disconnects so a reconnecting participant resumes where it
// left off.
type ParticipantState struct {
	ID         string  `json:"id"`
	Position   Vector  `json:"position"`
	Rotation   Vector  `json:"rotation"`
	CurrentLap int     `json:"currentLap"`
	Speed      float64 `json:"speed"`
	Ready      bool    `json:"ready"`
}

// Session is one race instance: a fixed set of tracks, the participants, and
// the shared lifecycle phase.
type Session struct {
	ID           string                       `json:"id"`
	HostID       string                       `json:"hostId"`
	Phase        Phase                        `json:"phase"`
	Participants map[string]*ParticipantState `json:"participants"`
	Tracks       []track.Track                `json:"tracks"`
	StartTime    *time.Time                   `json:"startTime"`
}

// CreateSession builds a new waiting session with the creator admitted as
// host. The track list is fixed for the session's lifetime, one per lap.
func CreateSession(tracks []track.Track, idGenerator func() (string, error)) (*Session, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("at least one track is required")
	}
	if idGenerator == nil {
		idGenerator = NewID
	}

	sessionID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	hostID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate host id: %w", err)
	}

	return &Session{
		ID:     sessionID,
		HostID: hostID,
		Phase:  PhaseWaiting,
		Participants: map[string]*ParticipantState{
			hostID: {ID: hostID},
		},
		Tracks: tracks,
	}, nil
}

// AddParticipant admits a new participant with zeroed state and returns its
// id. Admission is only valid while the session is waiting and below the
// participant cap; callers check those preconditions to pick their error
// surface.
func (s *Session) AddParticipant(idGenerator func() (string, error)) (string, error) {
	if idGenerator == nil {
		idGenerator = NewID
	}
	participantID, err := idGenerator()
	if err != nil {
		return "", fmt.Errorf("generate participant id: %w", err)
	}
	s.Participants[participantID] = &ParticipantState{ID: participantID}
	return participantID, nil
}

// Participant returns the state for the given id, or nil when absent.
func (s *Session) Participant(id string) *ParticipantState {
	return s.Participants[id]
}

// Others returns the ids of every participant except the given one, sorted
// for deterministic winner selection.
func (s *Session) Others(exceptID string) []string {
	others := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		if id != exceptID {
			others = append(others, id)
		}
	}
	sort.Strings(others)
	return others
}

// AllReady reports whether every listed participant has signalled ready.
// Ids absent from the session do not satisfy the check.
func (s *Session) AllReady(ids []string) bool {
	for _, id := range ids {
		state := s.Participants[id]
		if state == nil || !state.Ready {
			return false
		}
	}
	return true
}

// AllFinished reports whether every listed participant has reached the lap
// target.
func (s *Session) AllFinished(ids []string, target int) bool {
	for _, id := range ids {
		state := s.Participants[id]
		if state == nil || state.CurrentLap < target {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the session safe to hand outside the store's
// critical section. Tracks are shared: they are immutable after creation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Participants = s.SnapshotParticipants()
	if s.StartTime != nil {
		started := *s.StartTime
		clone.StartTime = &started
	}
	return &clone
}

// SnapshotParticipants copies the participant map for broadcast payloads.
func (s *Session) SnapshotParticipants() map[string]*ParticipantState {
	snapshot := make(map[string]*ParticipantState, len(s.Participants))
	for id, state := range s.Participants {
		copied := *state
		snapshot[id] = &copied
	}
	return snapshot
}
