package handlers

import (
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/core"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/definition"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// HeartBeatCommand is the wire command id for the heart-beat handler.
const HeartBeatCommand = "hb"

// HeartBeat keeps liveness evidence flowing for every peer currently
// CONNECTED, ROUTED or UNREACHABLE, decaying peers that stop
// responding (spec.md §4.5).
type HeartBeat struct {
	ctx core.Context

	// pending collects the messages Tick wants emitted; the app
	// worker collects them via TakePending after each sweep.
	pending []*types.Message
}

// NewHeartBeat builds a heart-beat handler bound to ctx.
func NewHeartBeat(ctx core.Context) *HeartBeat {
	return &HeartBeat{ctx: ctx.WithComponent("heartbeat")}
}

// CommandID implements types.Handler.
func (h *HeartBeat) CommandID() []byte { return []byte(HeartBeatCommand) }

// Start implements types.Handler.
func (h *HeartBeat) Start() {}

// Stop implements types.Handler.
func (h *HeartBeat) Stop() {}

// TakePending drains the heart-beats Tick composed since the last
// call, for the app worker to hand to the sender.
func (h *HeartBeat) TakePending() []*types.Message {
	out := h.pending
	h.pending = nil
	return out
}

// Tick implements spec.md §4.5's expiry sweep.
func (h *HeartBeat) Tick(tick time.Time) {
	cfg := h.ctx.Config
	h.ctx.Peers.WithLock(func(peers map[types.NodeID]*types.Peer) {
		for _, p := range peers {
			if !p.DoesHeartBeat() || p.NextHB == nil || tick.Before(*p.NextHB) {
				continue
			}
			h.expire(p, tick, cfg)
		}
	})
}

// expire applies one peer's heart-beat timeout/emit decision.
func (h *HeartBeat) expire(p *types.Peer, tick time.Time, cfg *definition.Config) {
	if p.LastHB == nil {
		last := tick
		p.LastHB = &last
	}

	if tick.Sub(*p.LastHB) > cfg.NoConnectionThreshold {
		p.State = types.NoConnection
		return
	}

	if tick.Sub(*p.LastHB) > cfg.UnresponsiveThreshold {
		p.State = types.Unreachable
	}

	p.ScheduleHeartBeat(tick, cfg.HeartBeatInterval, cfg.HeartBeatSlowDown, cfg.HeartBeatMaxInterval)

	nextHop := p.ID
	if p.State == types.Routed && p.Via != nil {
		nextHop = *p.Via
	}

	h.pending = append(h.pending, &types.Message{
		Source:      h.ctx.LocalID,
		Destination: p.ID,
		NextHop:     nextHop,
		Command:     []byte(HeartBeatCommand),
		Kind:        types.Request,
		MessageID:   h.ctx.AllocateID(),
		TimeToLive:  tick.Add(cfg.DefaultTimeToLive),
		Payload:     map[string]interface{}{},
		Handler:     h,
	})
}

// OnRequest refreshes the peer from the inbound heart-beat and
// answers with an empty heart-beat reply at FAST.
func (h *HeartBeat) OnRequest(m *types.Message) (types.Priority, *types.Message, bool) {
	p, known := h.ctx.Peers.Get(m.Source)
	if !known {
		p = types.NewPeer(m.Source, nil, nil)
		h.ctx.Peers.Add(p)
	}
	p.BecomeConnected(m, time.Now(), h.ctx.Config.HeartBeatInterval)

	reply := m.CreateReply(h.ctx.Config.DefaultTimeToLive)
	reply.Handler = h
	reply.Payload = map[string]interface{}{}
	return types.SpeedFast, reply, true
}

// OnReply refreshes the peer and emits nothing further.
func (h *HeartBeat) OnReply(m *types.Message) (types.Priority, *types.Message, bool) {
	p, known := h.ctx.Peers.Get(m.Source)
	if !known {
		p = types.NewPeer(m.Source, nil, nil)
		h.ctx.Peers.Add(p)
	}
	p.BecomeConnected(m, time.Now(), h.ctx.Config.HeartBeatInterval)
	return 0, nil, false
}

// OnSent is a no-op: heart-beats carry no delivery-side state.
func (h *HeartBeat) OnSent(m *types.Message) {}

// OnSendFailed never re-queues; the next tick will naturally retry.
func (h *HeartBeat) OnSendFailed(m *types.Message, err error) *types.Message { return nil }

// OnDropped is a no-op.
func (h *HeartBeat) OnDropped(m *types.Message) {}
