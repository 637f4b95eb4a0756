// Package engine implements the session state machine.
//
// The engine validates participant-attributed events, applies them to session
// state through the store's compare-and-apply, decides phase transitions, and
// routes the resulting deliveries. Deliveries are routed while the session's
// lock is held, so every broadcast is atomic with respect to the phase it
// observed and two simultaneous "last participant readies up" events cannot
// both miss the start transition.
package engine

import (
	"context"
	"errors"
	"log"
	"time"

	perrors "github.com/rohith-arumugam/truck-racing/internal/platform/errors"
	"github.com/rohith-arumugam/truck-racing/internal/platform/timeouts"
	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
	"github.com/rohith-arumugam/truck-racing/internal/race/relay"
	"github.com/rohith-arumugam/truck-racing/internal/race/store"
	"github.com/rohith-arumugam/truck-racing/internal/storage"
	"github.com/rohith-arumugam/truck-racing/internal/track"
)

// minParticipantsToStart gates the Waiting to Racing transition.
const minParticipantsToStart = 2

var (
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = perrors.New(perrors.CodeSessionNotFound, "race session not found")
	// ErrSessionStarted indicates admission into a session past Waiting.
	ErrSessionStarted = perrors.New(perrors.CodeSessionAlreadyStarted, "race already started")
	// ErrSessionFull indicates the participant cap is reached.
	ErrSessionFull = perrors.New(perrors.CodeSessionFull, "race session is full")
	// ErrParticipantNotFound indicates an event from a participant absent
	// from its session.
	ErrParticipantNotFound = perrors.New(perrors.CodeParticipantNotFound, "participant is not part of this race")
)

// Transport is the connection and delivery surface the engine drives. The
// relay Router implements it; tests substitute fakes.
type Transport interface {
	Register(sessionID, participantID string, peer relay.Peer)
	Unregister(sessionID, participantID string)
	Deliver(sessionID string, deliveries []domain.Delivery)
	Connected(sessionID string) []string
}

// Engine owns session lifecycle and event routing for all resident sessions.
type Engine struct {
	store     *store.Store
	transport Transport
	mirror    storage.SessionMirror
	now       func() time.Time
	lapTarget int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMirror attaches a write-behind persistence mirror.
func WithMirror(mirror storage.SessionMirror) Option {
	return func(e *Engine) {
		e.mirror = mirror
	}
}

// WithClock overrides the start-time clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLapTarget overrides the finish threshold.
func WithLapTarget(target int) Option {
	return func(e *Engine) {
		e.lapTarget = target
	}
}

// New builds an engine over the given store and transport.
func New(sessions *store.Store, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		store:     sessions,
		transport: transport,
		now:       time.Now,
		lapTarget: domain.Laps,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// CreateSession creates a waiting session with the caller admitted as host
// and mirrors the initial snapshot.
func (e *Engine) CreateSession(ctx context.Context, tracks []track.Track) (*domain.Session, error) {
	if len(tracks) == 0 {
		return nil, perrors.New(perrors.CodeSessionTracksRequired, "at least one track is required")
	}

	session, err := domain.CreateSession(tracks, nil)
	if err != nil {
		return nil, err
	}
	snapshot := session.Clone()
	e.store.Put(session)
	e.mirrorSave(snapshot)
	return snapshot, nil
}

// JoinSession admits a guest into a waiting session and returns the updated
// session snapshot and the guest's participant id.
func (e *Engine) JoinSession(ctx context.Context, sessionID string) (*domain.Session, string, error) {
	if err := e.ensureResident(ctx, sessionID); err != nil {
		return nil, "", err
	}

	var guestID string
	var snapshot *domain.Session
	err := e.store.CompareAndApply(sessionID, func(session *domain.Session) error {
		if session.Phase != domain.PhaseWaiting {
			return ErrSessionStarted
		}
		if len(session.Participants) >= domain.MaxParticipants {
			return ErrSessionFull
		}
		id, err := session.AddParticipant(nil)
		if err != nil {
			return err
		}
		guestID = id
		snapshot = session.Clone()
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrSessionNotFound
		}
		return nil, "", err
	}

	e.mirrorSave(snapshot)
	return snapshot, guestID, nil
}

// Session returns a snapshot of the session, cold-loading from the mirror
// when it is not resident.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := e.ensureResident(ctx, sessionID); err != nil {
		return nil, err
	}
	session, err := e.store.Get(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Connect registers a participant's peer and announces the join to the
// session. The peer is registered before validation so rejection events
// reach the sender.
func (e *Engine) Connect(ctx context.Context, sessionID, participantID string, peer relay.Peer) error {
	e.transport.Register(sessionID, participantID, peer)

	if err := e.ensureResident(ctx, sessionID); err != nil {
		e.transport.Deliver(sessionID, []domain.Delivery{
			domain.DirectDelivery(participantID, domain.NewErrorEvent("race session not found")),
		})
		e.transport.Unregister(sessionID, participantID)
		return err
	}

	err := e.store.CompareAndApply(sessionID, func(session *domain.Session) error {
		if session.Participant(participantID) == nil {
			e.transport.Deliver(sessionID, []domain.Delivery{
				domain.DirectDelivery(participantID, domain.NewErrorEvent("participant is not part of this race")),
			})
			return ErrParticipantNotFound
		}
		e.transport.Deliver(sessionID, []domain.Delivery{
			domain.BroadcastDelivery(domain.NewPlayerJoined(participantID, session.SnapshotParticipants())),
		})
		return nil
	})
	if err != nil {
		log.Printf("race: connect %s to session %s rejected: %v", participantID, sessionID, err)
		e.transport.Unregister(sessionID, participantID)
		return err
	}
	return nil
}

// Disconnect removes the participant's connection and, when other
// participants remain, announces the drop along with the winner candidate.
// Session state itself is untouched so a reconnect resumes where it left off.
func (e *Engine) Disconnect(ctx context.Context, sessionID, participantID string) {
	e.transport.Unregister(sessionID, participantID)

	_ = e.store.CompareAndApply(sessionID, func(session *domain.Session) error {
		others := session.Others(participantID)
		if len(others) == 0 {
			return nil
		}
		winner := e.winnerCandidate(session, participantID)
		e.transport.Deliver(sessionID, []domain.Delivery{
			domain.BroadcastDelivery(domain.NewPlayerDisconnected(participantID, winner)),
		})
		return nil
	})
}

// HandleEvent validates and applies one inbound event. Rejections surface as
// an error event to the sender only and are never broadcast.
func (e *Engine) HandleEvent(ctx context.Context, sessionID, participantID string, event domain.Inbound) error {
	if err := e.ensureResident(ctx, sessionID); err != nil {
		e.transport.Deliver(sessionID, []domain.Delivery{
			domain.DirectDelivery(participantID, domain.NewErrorEvent("race session not found")),
		})
		return err
	}

	var snapshot *domain.Session
	err := e.store.CompareAndApply(sessionID, func(session *domain.Session) error {
		participant := session.Participant(participantID)
		if participant == nil {
			log.Printf("race: dropping event from unknown participant %s in session %s", participantID, sessionID)
			e.transport.Deliver(sessionID, []domain.Delivery{
				domain.DirectDelivery(participantID, domain.NewErrorEvent("participant is not part of this race")),
			})
			return ErrParticipantNotFound
		}

		deliveries, changed := e.apply(session, participant, event)
		if len(deliveries) > 0 {
			e.transport.Deliver(sessionID, deliveries)
		}
		if changed {
			snapshot = session.Clone()
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	e.mirrorSave(snapshot)
	return nil
}

// apply runs the state machine for one event. It reports the deliveries to
// route and whether the session crossed a phase boundary worth mirroring.
func (e *Engine) apply(session *domain.Session, participant *domain.ParticipantState, event domain.Inbound) ([]domain.Delivery, bool) {
	switch ev := event.(type) {
	case domain.Ready:
		return e.applyReady(session, participant)
	case domain.PositionUpdate:
		participant.Position = ev.Position
		participant.Rotation = ev.Rotation
		participant.Speed = ev.Speed
		return []domain.Delivery{
			domain.BroadcastDelivery(domain.NewPlayerPosition(participant.ID, ev.Position, ev.Rotation, ev.Speed)),
		}, false
	case domain.LapCompleted:
		return e.applyLap(session, participant, ev.Lap)
	case domain.Quit:
		others := session.Others(participant.ID)
		if len(others) == 0 {
			return nil, false
		}
		winner := e.winnerCandidate(session, participant.ID)
		return []domain.Delivery{
			domain.BroadcastDelivery(domain.NewPlayerQuit(participant.ID, winner)),
		}, false
	default:
		return nil, false
	}
}

// applyReady marks the participant ready and fires the start transition when
// every connected participant is ready. A ready signal outside Waiting is
// ignored, not an error.
func (e *Engine) applyReady(session *domain.Session, participant *domain.ParticipantState) ([]domain.Delivery, bool) {
	if session.Phase != domain.PhaseWaiting {
		return nil, false
	}
	participant.Ready = true

	quorum := e.transport.Connected(session.ID)
	if len(quorum) < minParticipantsToStart || !session.AllReady(quorum) {
		return nil, false
	}

	started := e.now().UTC()
	session.Phase = domain.PhaseRacing
	session.StartTime = &started
	return []domain.Delivery{
		domain.BroadcastDelivery(domain.NewGameStart(started.UnixMilli())),
	}, true
}

// applyLap records a monotonic lap advance and fires the completion
// transition when every connected participant has finished. Lap events after
// Completed are still relayed but never re-trigger completion.
func (e *Engine) applyLap(session *domain.Session, participant *domain.ParticipantState, reported int) ([]domain.Delivery, bool) {
	if reported > participant.CurrentLap {
		participant.CurrentLap = reported
	}
	deliveries := []domain.Delivery{
		domain.BroadcastDelivery(domain.NewPlayerLap(participant.ID, participant.CurrentLap)),
	}

	if session.Phase != domain.PhaseRacing || participant.CurrentLap < e.lapTarget {
		return deliveries, false
	}
	quorum := e.transport.Connected(session.ID)
	if len(quorum) == 0 || !session.AllFinished(quorum, e.lapTarget) {
		return deliveries, false
	}

	session.Phase = domain.PhaseCompleted
	deliveries = append(deliveries, domain.BroadcastDelivery(domain.NewGameCompleted()))
	return deliveries, true
}

// winnerCandidate picks the remaining participant announced as winner when
// someone quits or drops: a connected opponent when one exists, otherwise
// any other participant of the session.
func (e *Engine) winnerCandidate(session *domain.Session, exceptID string) string {
	for _, id := range e.transport.Connected(session.ID) {
		if id != exceptID && session.Participant(id) != nil {
			return id
		}
	}
	others := session.Others(exceptID)
	if len(others) == 0 {
		return ""
	}
	return others[0]
}

// ensureResident makes the session resident in memory, cold-loading a
// mirrored snapshot when available.
func (e *Engine) ensureResident(ctx context.Context, sessionID string) error {
	if _, err := e.store.Get(sessionID); err == nil {
		return nil
	}
	if e.mirror == nil {
		return ErrSessionNotFound
	}

	loaded, err := e.mirror.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("race: cold load of session %s failed: %v", sessionID, err)
		}
		return ErrSessionNotFound
	}
	e.store.PutIfAbsent(loaded)
	return nil
}

// mirrorSave persists a snapshot without blocking event handling. Failures
// are logged; in-memory state stays authoritative.
func (e *Engine) mirrorSave(snapshot *domain.Session) {
	if e.mirror == nil || snapshot == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.MirrorWrite)
		defer cancel()
		if err := e.mirror.Save(ctx, snapshot); err != nil {
			log.Printf("race: mirror save for session %s failed: %v", snapshot.ID, err)
		}
	}()
}
