// Package relay owns live participant connections and event fan-out.
//
// The Registry tracks (session, participant) to peer bindings independent of
// session semantics: registering never validates session existence and
// unregistering is pure connection cleanup. The Router translates the state
// machine's delivery decisions into registry calls and holds no business
// logic of its own.
package relay

import (
	"log"
	"sort"
	"sync"

	"github.com/rohith-arumugam/truck-racing/internal/race/domain"
)

// Peer is one participant's outbound message channel. Send must be safe for
// concurrent use; implementations serialize their own writes.
type Peer interface {
	Send(event domain.Outbound) error
	Close() error
}

// Registry maps (sessionID, participantID) to live peers.
type Registry struct {
	mu    sync.Mutex
	peers map[string]map[string]Peer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]map[string]Peer)}
}

// Register stores the peer, replacing any prior peer for the same key so a
// reconnecting participant takes over its slot.
func (r *Registry) Register(sessionID, participantID string, peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.peers[sessionID]
	if !ok {
		bucket = make(map[string]Peer)
		r.peers[sessionID] = bucket
	}
	bucket[participantID] = peer
}

// Unregister removes the entry; the session bucket is dropped once empty.
func (r *Registry) Unregister(sessionID, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.peers[sessionID]
	if !ok {
		return
	}
	delete(bucket, participantID)
	if len(bucket) == 0 {
		delete(r.peers, sessionID)
	}
}

// Connected returns the sorted participant ids with a registered peer.
func (r *Registry) Connected(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.peers[sessionID]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SendTo delivers to exactly one participant. A missing entry is a silent
// no-op: the participant may have disconnected mid-broadcast.
func (r *Registry) SendTo(sessionID, participantID string, event domain.Outbound) {
	r.mu.Lock()
	peer, ok := r.peers[sessionID][participantID]
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := peer.Send(event); err != nil {
		r.dropFailedPeer(sessionID, participantID, peer, err)
	}
}

// Broadcast delivers to every registered participant of the session,
// including the sender. A failed recipient is unregistered; delivery to the
// others continues.
func (r *Registry) Broadcast(sessionID string, event domain.Outbound) {
	r.mu.Lock()
	bucket := r.peers[sessionID]
	recipients := make([]string, 0, len(bucket))
	peers := make([]Peer, 0, len(bucket))
	for id, peer := range bucket {
		recipients = append(recipients, id)
		peers = append(peers, peer)
	}
	r.mu.Unlock()

	for i, peer := range peers {
		if err := peer.Send(event); err != nil {
			r.dropFailedPeer(sessionID, recipients[i], peer, err)
		}
	}
}

// dropFailedPeer removes a connection whose channel failed, unless a
// reconnect already replaced it.
func (r *Registry) dropFailedPeer(sessionID, participantID string, failed Peer, err error) {
	log.Printf("race: send to participant %s in session %s failed, dropping connection: %v", participantID, sessionID, err)

	r.mu.Lock()
	if current, ok := r.peers[sessionID][participantID]; ok && current == failed {
		delete(r.peers[sessionID], participantID)
		if len(r.peers[sessionID]) == 0 {
			delete(r.peers, sessionID)
		}
	}
	r.mu.Unlock()

	_ = failed.Close()
}
