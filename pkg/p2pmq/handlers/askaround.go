package handlers

import (
	"sync"
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/core"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// AskAroundCommand is the wire command id for the ask-around handler.
const AskAroundCommand = "r"

// AskAround discovers a relay route to peers that cannot be reached
// directly, by fanning a discovery request out to every CONNECTED
// peer and following the replies back (spec.md §4.6).
//
// Open question resolved here (see DESIGN.md): the spec describes a
// reply "addressed along the previous path" without detailing the
// relay mechanics. This implementation has every hop reply directly
// to whichever neighbour asked it, and relays that reply one hop
// further upstream itself once it resolves, rather than trying to
// address a reply across the whole breadcrumb chain in one frame.
type AskAround struct {
	ctx core.Context

	mu       sync.Mutex
	bestHops map[types.NodeID]int
	relayFor map[types.NodeID]*types.Message
	pending  []*types.Message
}

// NewAskAround builds an ask-around handler bound to ctx.
func NewAskAround(ctx core.Context) *AskAround {
	return &AskAround{
		ctx:      ctx.WithComponent("askaround"),
		bestHops: make(map[types.NodeID]int),
		relayFor: make(map[types.NodeID]*types.Message),
	}
}

// CommandID implements types.Handler.
func (a *AskAround) CommandID() []byte { return []byte(AskAroundCommand) }

// Start implements types.Handler.
func (a *AskAround) Start() {}

// Stop implements types.Handler.
func (a *AskAround) Stop() {}

// TakePending drains the discovery requests Tick/OnRequest composed
// since the last call.
func (a *AskAround) TakePending() []*types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.pending
	a.pending = nil
	return out
}

// Tick fans a fresh discovery batch out for every UNREACHABLE/ROUTED
// peer whose next_ask_around has elapsed (spec.md §4.6).
func (a *AskAround) Tick(tick time.Time) {
	cfg := a.ctx.Config
	var targets []types.NodeID
	a.ctx.Peers.WithLock(func(peers map[types.NodeID]*types.Peer) {
		for _, p := range peers {
			// A peer with no known host can never be dialed directly
			// by the connector (spec.md §4.2's INITIAL/NO_CONNECTION
			// states both require a host to attempt connect_req), so
			// it needs ask-around the same way an UNREACHABLE/ROUTED
			// peer does.
			hostless := p.Host == nil && (p.State == types.Initial || p.State == types.NoConnection)
			if p.State != types.Unreachable && p.State != types.Routed && !hostless {
				continue
			}
			if p.NextAskAround != nil && tick.Before(*p.NextAskAround) {
				continue
			}
			targets = append(targets, p.ID)
			next := tick.Add(cfg.AskAroundInterval)
			p.NextAskAround = &next
			last := tick
			p.LastAskAround = &last
		}
	})
	// compose reads the table through InState, which takes the same
	// mutex, so it runs only after WithLock has released it.
	var composed []*types.Message
	for _, id := range targets {
		composed = append(composed, a.compose(id, tick, nil, []types.NodeID{a.ctx.LocalID})...)
	}
	if len(composed) == 0 {
		return
	}
	a.mu.Lock()
	a.pending = append(a.pending, composed...)
	a.mu.Unlock()
}

// ComposeDiscovery implements core.AskAround for the router: it
// fans a fresh discovery batch out for target, excluding the given
// peers, without touching the peer's own ask-around schedule.
func (a *AskAround) ComposeDiscovery(target types.NodeID, tick time.Time, exclude []types.NodeID) []*types.Message {
	return a.compose(target, tick, exclude, []types.NodeID{a.ctx.LocalID})
}

func (a *AskAround) compose(target types.NodeID, tick time.Time, exclude []types.NodeID, breadcrumbs []types.NodeID) []*types.Message {
	excluded := toNodeIDSet(exclude)
	for _, id := range breadcrumbs {
		excluded[id] = true
	}

	var out []*types.Message
	for _, p := range a.ctx.Peers.InState(types.Connected) {
		if excluded[p.ID] {
			continue
		}
		out = append(out, &types.Message{
			Source:      a.ctx.LocalID,
			Destination: p.ID,
			NextHop:     p.ID,
			Command:     []byte(AskAroundCommand),
			Kind:        types.Request,
			MessageID:   a.ctx.AllocateID(),
			TimeToLive:  tick.Add(a.ctx.Config.DefaultTimeToLive),
			Payload: map[string]interface{}{
				"target":      string(target),
				"breadcrumbs": breadcrumbsToStrings(breadcrumbs),
			},
			Handler: a,
		})
	}
	return out
}

// OnRequest implements spec.md §4.6's on_request.
func (a *AskAround) OnRequest(m *types.Message) (types.Priority, *types.Message, bool) {
	target, breadcrumbs := parseDiscoveryPayload(m.Payload)
	if target == a.ctx.LocalID {
		return 0, nil, false
	}

	if p, ok := a.ctx.Peers.Get(target); ok && (p.State == types.Connected || p.State == types.Routed) {
		reply := m.CreateReply(a.ctx.Config.DefaultTimeToLive)
		reply.Handler = a
		reply.Payload = map[string]interface{}{
			"target":      string(target),
			"breadcrumbs": breadcrumbsToStrings(breadcrumbs),
		}
		return types.SpeedFast, reply, true
	}

	exclude := append(append([]types.NodeID(nil), breadcrumbs...), m.PreviousHop)
	sub := a.compose(target, time.Now(), exclude, append(append([]types.NodeID(nil), breadcrumbs...), a.ctx.LocalID))
	if len(sub) > 0 {
		a.mu.Lock()
		a.relayFor[target] = m
		a.pending = append(a.pending, sub...)
		a.mu.Unlock()
	}
	return 0, nil, false
}

// OnReply implements spec.md §4.6's on_reply: record the responding
// hop as a candidate relay, tie-breaking on shorter breadcrumbs, and
// forward the reply one hop further upstream if we were relaying it
// on behalf of another node.
func (a *AskAround) OnReply(m *types.Message) (types.Priority, *types.Message, bool) {
	target, breadcrumbs := parseDiscoveryPayload(m.Payload)

	p, ok := a.ctx.Peers.Get(target)
	if !ok {
		p = types.NewPeer(target, nil, nil)
		a.ctx.Peers.Add(p)
	}

	hopCount := len(breadcrumbs)
	a.mu.Lock()
	prevBest, seen := a.bestHops[target]
	accept := !seen || hopCount < prevBest
	if accept {
		a.bestHops[target] = hopCount
	}
	origin, relaying := a.relayFor[target]
	if relaying {
		delete(a.relayFor, target)
	}
	a.mu.Unlock()

	if accept {
		hop := m.PreviousHop
		p.Via = &hop
		if p.State != types.Connected {
			p.State = types.Routed
		}
	}

	if relaying && accept {
		fwd := origin.CreateReply(a.ctx.Config.DefaultTimeToLive)
		fwd.Handler = a
		fwd.Payload = map[string]interface{}{
			"target":      string(target),
			"breadcrumbs": breadcrumbsToStrings(breadcrumbs),
		}
		return types.SpeedFast, fwd, true
	}
	return 0, nil, false
}

// OnSent is a no-op.
func (a *AskAround) OnSent(m *types.Message) {}

// OnSendFailed never re-queues: discovery will simply be retried on
// the next tick.
func (a *AskAround) OnSendFailed(m *types.Message, err error) *types.Message { return nil }

// OnDropped is a no-op.
func (a *AskAround) OnDropped(m *types.Message) {}

func toNodeIDSet(ids []types.NodeID) map[types.NodeID]bool {
	set := make(map[types.NodeID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func breadcrumbsToStrings(ids []types.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func parseDiscoveryPayload(payload map[string]interface{}) (types.NodeID, []types.NodeID) {
	target, _ := payload["target"].(string)

	var breadcrumbs []types.NodeID
	switch raw := payload["breadcrumbs"].(type) {
	case []string:
		for _, s := range raw {
			breadcrumbs = append(breadcrumbs, types.NodeID(s))
		}
	case []interface{}:
		for _, v := range raw {
			if s, ok := v.(string); ok {
				breadcrumbs = append(breadcrumbs, types.NodeID(s))
			}
		}
	}
	return types.NodeID(target), breadcrumbs
}
