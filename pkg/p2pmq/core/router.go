package core

import (
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// AskAround is the subset of the ask-around handler's surface the
// router needs to request a discovery batch for a peer it cannot
// currently reach (spec.md §4.6/§4.7). Defined here, rather than
// referencing the handlers package directly, to keep core free of a
// dependency on handlers (which itself depends on core).
type AskAround interface {
	ComposeDiscovery(target types.NodeID, tick time.Time, exclude []types.NodeID) []*types.Message
}

// Routed is a message paired with the priority it must be enqueued
// at, the shape process_routes/ask-around composition hands back to
// the app worker for delivery to the sender (spec.md §4.8 step 3/4).
type Routed struct {
	Priority types.Priority
	Message  *types.Message
}

// Router implements process_routes (spec.md §4.7): it rewrites
// deliverable ROUTE messages for direct send, drops expired ones, and
// asks the ask-around handler to compose a discovery batch for
// destinations it cannot currently place.
type Router struct {
	localID   types.NodeID
	peers     *PeerTable
	askAround AskAround
	log       types.Logger

	// OnDrop, when set, is called for every ROUTE message expired
	// before delivery -- the drop_routed_message telemetry hook.
	OnDrop func(m *types.Message)
}

// NewRouter builds a router for localID, backed by peers and
// askAround.
func NewRouter(localID types.NodeID, peers *PeerTable, askAround AskAround, log types.Logger) *Router {
	return &Router{localID: localID, peers: peers, askAround: askAround, log: log}
}

// ProcessRoutes processes every inbound ROUTE-kind message in
// messages, returning the batch to hand to the sender.
func (r *Router) ProcessRoutes(messages []*types.Message, tick time.Time) []Routed {
	var out []Routed
	for _, m := range messages {
		out = append(out, r.processOne(m, tick)...)
	}
	return out
}

func (r *Router) processOne(m *types.Message, tick time.Time) []Routed {
	if m.Destination.Empty() || m.Destination == r.localID {
		r.log.Errorf("%v: %q", types.ErrInvalidRouteTarget, m.Destination)
		return nil
	}

	if m.Expired(tick) {
		if r.OnDrop != nil {
			r.OnDrop(m)
		}
		return nil
	}

	peer, known := r.peers.Get(m.Destination)
	if known && (peer.State == types.Connected || peer.State == types.Routed) {
		m.PreviousHop = r.localID
		return []Routed{{Priority: types.SpeedMedium, Message: m}}
	}

	if r.askAround == nil {
		return nil
	}

	exclude := []types.NodeID{m.PreviousHop}
	batch := r.askAround.ComposeDiscovery(m.Destination, tick, exclude)
	out := make([]Routed, 0, len(batch))
	for _, req := range batch {
		out = append(out, Routed{Priority: types.SpeedFast, Message: req})
	}
	return out
}
