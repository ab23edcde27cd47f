package types

import (
	"strconv"
	"time"
)

// PeerState is the peer connection state machine described in spec.md
// §4.2.
type PeerState int

const (
	// Initial is the state of a peer upon creation: no connection
	// attempt has been made yet.
	Initial PeerState = iota
	// Connecting means the socket was connected and a hello message
	// was sent to the peer; we are waiting for acknowledgement.
	Connecting
	// Connected means the hello packet was acknowledged directly and
	// heart-beats are returned in a timely fashion.
	Connected
	// Routed means this peer cannot be reached directly but is
	// reachable via the peer named in Via.
	Routed
	// Unreachable means the heart-beat was not returned in time. We
	// were, at some point in the past, connected to this peer.
	Unreachable
	// NoConnection means a connection attempt failed. Unreachable
	// peers decay to this state after some time.
	NoConnection
)

func (s PeerState) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Routed:
		return "ROUTED"
	case Unreachable:
		return "UNREACHABLE"
	case NoConnection:
		return "NO_CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// Peer is the in-memory record for one remote node.
type Peer struct {
	ID NodeID

	// Host and Port are nil when the route to this peer is unknown
	// (e.g. a bare peer added for ask-around discovery).
	Host *string
	Port *int

	// DBID is the repository's opaque key for this peer, nil until
	// the peer has been persisted.
	DBID *int64

	State PeerState

	// Via names the next hop to use while State == Routed.
	Via *NodeID

	NextHB     *time.Time
	LastHB     *time.Time
	HBSlowdown time.Duration

	NextAskAround *time.Time
	LastAskAround *time.Time
}

// NewPeer creates a peer record in its Initial state.
func NewPeer(id NodeID, host *string, port *int) *Peer {
	return &Peer{
		ID:    id,
		Host:  host,
		Port:  port,
		State: Initial,
	}
}

// Address renders the zmq-style connect address for this peer, or the
// empty string if the route is unknown.
func (p *Peer) Address() string {
	if p.Host == nil {
		return ""
	}
	if p.Port == nil {
		return *p.Host
	}
	return *p.Host + ":" + strconv.Itoa(*p.Port)
}

// NeedsReconnect reports whether this peer's state calls for the
// connector handler to (re)attempt a connection.
func (p *Peer) NeedsReconnect() bool {
	switch p.State {
	case Initial, NoConnection, Unreachable:
		return true
	default:
		return false
	}
}

// DoesHeartBeat reports whether this peer is a valid destination for a
// heart-beat, based on its current state.
func (p *Peer) DoesHeartBeat() bool {
	switch p.State {
	case Connected, Routed, Unreachable:
		return true
	default:
		return false
	}
}

// ResetHeartBeat is called whenever fresh liveness evidence arrives
// for this peer: the slowdown back-off is cleared and the next
// heart-beat is scheduled at the nominal interval.
func (p *Peer) ResetHeartBeat(tick time.Time, interval time.Duration) {
	next := tick.Add(interval)
	p.NextHB = &next
	p.HBSlowdown = 0
	last := tick
	p.LastHB = &last
}

// ScheduleHeartBeat schedules the next heart-beat further out,
// growing the back-off by slowDown each time, capped at maxInterval.
func (p *Peer) ScheduleHeartBeat(tick time.Time, interval, slowDown, maxInterval time.Duration) {
	next := tick.Add(interval + p.HBSlowdown)
	p.NextHB = &next
	p.HBSlowdown += slowDown
	if p.HBSlowdown > maxInterval {
		p.HBSlowdown = maxInterval
	}
}

// BecomeConnected updates this peer's state from an inbound message
// that proves liveness (a connect request/reply or a heart-beat
// request/reply), choosing Connected or Routed depending on whether
// the message arrived directly from its source.
func (p *Peer) BecomeConnected(m *Message, tick time.Time, hbInterval time.Duration) {
	if m.Source == m.PreviousHop {
		p.State = Connected
		p.Via = nil
	} else {
		p.State = Routed
		hop := m.PreviousHop
		p.Via = &hop
	}
	p.ResetHeartBeat(tick, hbInterval)
}

// SetHost refreshes the known route to this peer.
func (p *Peer) SetHost(host string, port int) {
	p.Host = &host
	p.Port = &port
}
