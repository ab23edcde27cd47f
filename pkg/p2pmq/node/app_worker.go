package node

import (
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// idlePollInterval bounds how long the app worker can sleep before it
// re-checks the peer table even with no queue activity, so scheduled
// work (heart-beats, ask-arounds, reconnects) is never starved.
const idlePollInterval = 50 * time.Millisecond

// runApp is the app-worker loop of spec.md §4.8.
func (n *Node) runApp() {
	defer n.wg.Done()
	log := n.log.WithField("component", "app")
	defer log.Debugf("app worker stopped")

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		default:
		}

		tick := time.Now()
		n.peers.Sync(n.ctx, tick, false)
		n.synced.Store(true)
		n.registry.TickAll(tick)

		idle := true

		if reqs := n.inbound.Dequeue(types.Request, n.cfg.ProcessLimitPerLoop); len(reqs) > 0 {
			idle = false
			for _, m := range reqs {
				n.dispatchRequest(m, log)
			}
		}

		if reps := n.inbound.Dequeue(types.Reply, n.cfg.ProcessLimitPerLoop); len(reps) > 0 {
			idle = false
			for _, m := range reps {
				n.dispatchReply(m, log)
			}
		}

		if routes := n.inbound.Dequeue(types.Route, n.cfg.ProcessLimitPerLoop); len(routes) > 0 {
			idle = false
			for _, r := range n.router.ProcessRoutes(routes, tick) {
				n.hook.MessageRelayed(string(r.Message.Command))
				n.enqueueOutbound(r.Priority, r.Message)
			}
		}

		if pending := n.heartbeat.TakePending(); len(pending) > 0 {
			idle = false
			for _, m := range pending {
				n.enqueueOutbound(types.SpeedFast, m)
			}
		}

		if pending := n.askAround.TakePending(); len(pending) > 0 {
			idle = false
			for _, m := range pending {
				n.enqueueOutbound(types.SpeedFast, m)
			}
		}

		n.reportTelemetry()
		n.appLoops.Add(1)

		if idle {
			select {
			case <-n.ctx.Done():
				return
			case <-n.inbound.Wake:
			case <-ticker.C:
			}
		}
	}
}

// dispatchRequest looks a handler up by command id and runs
// on_request, enqueueing any reply it returns.
func (n *Node) dispatchRequest(m *types.Message, log types.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("handler panic processing request %q: %v", m.Command, r)
		}
	}()

	h, ok := n.registry.Get(m.Command)
	if !ok {
		log.Warnf("%v: dropping request for %q", types.ErrUnknownCommand, m.Command)
		return
	}
	m.Handler = h
	priority, reply, ok := h.OnRequest(m)
	if ok && reply != nil {
		n.enqueueOutbound(priority, reply)
	}
}

// dispatchReply looks a handler up by command id and runs on_reply,
// enqueueing any follow-up message it returns.
func (n *Node) dispatchReply(m *types.Message, log types.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("handler panic processing reply %q: %v", m.Command, r)
		}
	}()

	h, ok := n.registry.Get(m.Command)
	if !ok {
		log.Warnf("%v: dropping reply for %q", types.ErrUnknownCommand, m.Command)
		return
	}
	m.Handler = h
	priority, follow, ok := h.OnReply(m)
	if ok && follow != nil {
		n.enqueueOutbound(priority, follow)
	}
}

// enqueueOutbound assigns a message id (if this message was freshly
// composed rather than a reply correlated to one) and pushes m onto
// the outbound priority queue.
func (n *Node) enqueueOutbound(priority types.Priority, m *types.Message) {
	if m.MessageID == 0 {
		m.MessageID = n.nextMessageID()
	}
	n.outbound.Enqueue(priority, m)
}
