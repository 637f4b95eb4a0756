package relay

import "github.com/rohith-arumugam/truck-racing/internal/race/domain"

// Router turns state-machine delivery decisions into registry calls.
type Router struct {
	registry *Registry
}

// NewRouter wraps a registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Deliver routes each delivery to one participant or the whole session.
func (r *Router) Deliver(sessionID string, deliveries []domain.Delivery) {
	for _, d := range deliveries {
		if d.Event == nil {
			continue
		}
		if d.ParticipantID == "" {
			r.registry.Broadcast(sessionID, d.Event)
			continue
		}
		r.registry.SendTo(sessionID, d.ParticipantID, d.Event)
	}
}

// Register binds a peer for a participant connection.
func (r *Router) Register(sessionID, participantID string, peer Peer) {
	r.registry.Register(sessionID, participantID, peer)
}

// Unregister removes a participant connection.
func (r *Router) Unregister(sessionID, participantID string) {
	r.registry.Unregister(sessionID, participantID)
}

// Connected reports the participants with live connections, the quorum view
// used for phase transition checks.
func (r *Router) Connected(sessionID string) []string {
	return r.registry.Connected(sessionID)
}
