package node

import (
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/codec"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// runSender is the sender-worker loop of spec.md §4.9.
func (n *Node) runSender() {
	defer n.wg.Done()
	log := n.log.WithField("component", "sender")
	defer log.Debugf("sender worker stopped")

	connectedOnce := make(map[types.NodeID]bool)
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		default:
		}

		idle := true

		if n.connectPeers(connectedOnce, log) {
			idle = false
		}

		// Dequeue already drains FAST, then MEDIUM, then SLOW, FIFO
		// within each lane (spec.md §4.9 step 2).
		if batch := n.outbound.Dequeue(n.cfg.ProcessLimitPerLoop); len(batch) > 0 {
			idle = false
			for _, m := range batch {
				n.sendOne(m, log)
			}
		}

		if idle {
			select {
			case <-n.ctx.Done():
				return
			case <-n.outbound.Wake:
			case <-n.connections.Wake:
			case <-ticker.C:
			}
		}
	}
}

// connectPeers drains the connection queue, opening a transport
// connection the first time a peer is seen and otherwise leaving the
// existing one alone, then hands the associated hello message to the
// ordinary FAST lane.
func (n *Node) connectPeers(connectedOnce map[types.NodeID]bool, log types.Logger) bool {
	entries := n.connections.DequeueAll()
	if len(entries) == 0 {
		return false
	}

	for _, entry := range entries {
		if n.transport != nil && !connectedOnce[entry.Peer.ID] {
			if err := n.transport.Connect(entry.Peer.ID, entry.Peer.Address()); err != nil {
				log.Errorf("connect to %s failed: %v", entry.Peer.ID, err)
				if entry.Message.Handler != nil {
					entry.Message.Handler.OnSendFailed(entry.Message, err)
				}
				continue
			}
			connectedOnce[entry.Peer.ID] = true
		}
		n.enqueueOutbound(types.SpeedFast, entry.Message)
	}
	return true
}

// sendOne implements send_one: frame, transmit, and route the outcome
// back to the message's handler.
func (n *Node) sendOne(m *types.Message, log types.Logger) {
	now := time.Now()

	if !m.ValidForSend(now) {
		log.Warnf("%v: dropping message for %s: %q", types.ErrValidationFailed, m.Destination, m.Command)
		n.hook.MessageDropped(string(m.Command))
		if m.Handler != nil {
			m.Handler.OnDropped(m)
		}
		return
	}

	parts, err := codec.Encode(m, n.localID)
	if err != nil {
		log.Errorf("encode failed for %s: %v", m.Destination, err)
		n.hook.MessageDropped(string(m.Command))
		if m.Handler != nil {
			m.Handler.OnDropped(m)
		}
		return
	}

	if n.transport == nil {
		return
	}

	if err := n.transport.SendMultipart(m.NextHop, parts); err != nil {
		n.handleSendFailure(m, err, log)
		return
	}

	n.hook.MessageSent(string(m.Command))
	if m.Handler != nil {
		m.Handler.OnSent(m)
	}
}

func (n *Node) handleSendFailure(m *types.Message, err error, log types.Logger) {
	now := time.Now()
	if m.Expired(now) {
		log.Debugf("message to %s expired after send failure: %v", m.Destination, err)
		n.hook.MessageDropped(string(m.Command))
		if m.Handler != nil {
			m.Handler.OnDropped(m)
		}
		return
	}

	if m.Handler == nil {
		return
	}
	// Re-queued retries re-enter at FAST: send failures are dominated
	// by reconnection traffic (spec.md §4.4), which always runs at
	// the highest priority anyway.
	if retry := m.Handler.OnSendFailed(m, err); retry != nil {
		n.outbound.Enqueue(types.SpeedFast, retry)
	}
}
