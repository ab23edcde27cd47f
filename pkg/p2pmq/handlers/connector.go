// Package handlers implements the three built-in command handlers —
// connector, heart-beat and ask-around (spec.md §4.4-§4.6).
package handlers

import (
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/core"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// ConnectorCommand is the wire command id for the connector handler.
const ConnectorCommand = "hello"

// Connector drives INITIAL/NO_CONNECTION peers into CONNECTED/ROUTED
// (spec.md §4.4).
type Connector struct {
	ctx core.Context
}

// NewConnector builds a connector bound to ctx.
func NewConnector(ctx core.Context) *Connector {
	return &Connector{ctx: ctx.WithComponent("connector")}
}

// CommandID implements types.Handler.
func (c *Connector) CommandID() []byte { return []byte(ConnectorCommand) }

// Start implements types.Handler; the connector holds no resources.
func (c *Connector) Start() {}

// Stop implements types.Handler.
func (c *Connector) Stop() {}

// Tick implements the per-peer sweep of spec.md §4.4.
func (c *Connector) Tick(tick time.Time) {
	c.ctx.Peers.WithLock(func(peers map[types.NodeID]*types.Peer) {
		for _, p := range peers {
			if p.Host == nil {
				continue
			}
			switch p.State {
			case types.Initial:
				if !c.ctx.Connections.Pending(p.ID) {
					c.scheduleConnect(p, tick)
				}
			case types.Connecting:
				if p.NextHB != nil && tick.After(*p.NextHB) {
					c.declareNoConnection(p, tick)
				}
			case types.NoConnection:
				if p.NextHB != nil && !tick.Before(*p.NextHB) {
					c.scheduleConnect(p, tick)
				}
			}
		}
	})
}

// scheduleConnect pushes a hello request onto the connection queue and
// primes the CONNECTING timeout.
func (c *Connector) scheduleConnect(p *types.Peer, tick time.Time) {
	next := tick.Add(c.ctx.Config.UnresponsiveThreshold)
	p.NextHB = &next
	p.HBSlowdown = 0

	m := &types.Message{
		Source:      c.ctx.LocalID,
		Destination: p.ID,
		NextHop:     p.ID,
		Command:     []byte(ConnectorCommand),
		Kind:        types.Request,
		MessageID:   c.ctx.AllocateID(),
		TimeToLive:  tick.Add(c.ctx.Config.DefaultTimeToLive),
		Payload: map[string]interface{}{
			"host": c.ctx.LocalHost,
			"port": int64(c.ctx.LocalPort),
		},
		Handler: c,
	}
	c.ctx.Connections.Enqueue(p, m)
}

func (c *Connector) declareNoConnection(p *types.Peer, tick time.Time) {
	p.State = types.NoConnection
	next := tick.Add(c.ctx.Config.UnresponsiveReconnectWait + p.HBSlowdown)
	p.NextHB = &next
}

// OnRequest implements spec.md §4.4's on_request: refresh/create the
// peer from the payload, and reply with our own host/port.
func (c *Connector) OnRequest(m *types.Message) (types.Priority, *types.Message, bool) {
	host, port := payloadAddress(m.Payload)

	p, known := c.ctx.Peers.Get(m.Source)
	if !known {
		p = types.NewPeer(m.Source, nil, nil)
		c.ctx.Peers.Add(p)
	}
	if host != "" {
		p.SetHost(host, port)
	}
	now := time.Now()
	p.BecomeConnected(m, now, c.ctx.Config.HeartBeatInterval)

	if p.NeedsReconnect() {
		c.scheduleConnect(p, now)
	}

	reply := m.CreateReply(c.ctx.Config.DefaultTimeToLive)
	reply.Handler = c
	reply.Payload = map[string]interface{}{
		"host": c.ctx.LocalHost,
		"port": int64(c.ctx.LocalPort),
	}
	return types.SpeedFast, reply, true
}

// OnReply implements spec.md §4.4's on_reply.
func (c *Connector) OnReply(m *types.Message) (types.Priority, *types.Message, bool) {
	host, port := payloadAddress(m.Payload)

	p, known := c.ctx.Peers.Get(m.Source)
	if !known {
		p = types.NewPeer(m.Source, nil, nil)
		c.ctx.Peers.Add(p)
	}
	if host != "" {
		p.SetHost(host, port)
	}
	p.BecomeConnected(m, time.Now(), c.ctx.Config.HeartBeatInterval)
	return 0, nil, false
}

// OnSent marks the peer CONNECTING once the hello request left the
// socket. This runs on the sender goroutine, concurrently with Tick
// on the app goroutine, so the mutation goes through WithLock rather
// than touching the peer directly (spec.md §5).
func (c *Connector) OnSent(m *types.Message) {
	c.ctx.Peers.WithLock(func(peers map[types.NodeID]*types.Peer) {
		if p, ok := peers[m.Destination]; ok {
			p.State = types.Connecting
		}
	})
}

// OnSendFailed declares the destination NO_CONNECTION and never
// re-queues: the connect queue is special-cased by the sender.
func (c *Connector) OnSendFailed(m *types.Message, err error) *types.Message {
	c.markNoConnection(m.Destination)
	return nil
}

// OnDropped declares the destination NO_CONNECTION.
func (c *Connector) OnDropped(m *types.Message) {
	c.markNoConnection(m.Destination)
}

// markNoConnection runs on the sender goroutine; like OnSent, it must
// take the peer table lock before mutating shared peer state rather
// than racing with Tick's WithLock sweep on the app goroutine.
func (c *Connector) markNoConnection(id types.NodeID) {
	tick := time.Now()
	c.ctx.Peers.WithLock(func(peers map[types.NodeID]*types.Peer) {
		if p, ok := peers[id]; ok {
			c.declareNoConnection(p, tick)
		}
	})
}

// payloadAddress extracts (host, port) from a hello message payload,
// tolerating a missing or malformed entry by returning a zero value.
func payloadAddress(payload map[string]interface{}) (string, int) {
	host, _ := payload["host"].(string)
	port := 0
	switch v := payload["port"].(type) {
	case int64:
		port = int(v)
	case int:
		port = v
	case float64:
		port = int(v)
	}
	return host, port
}
