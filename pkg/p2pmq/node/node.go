// Package node wires the peer table, handler registry, router and
// the three workers into the runnable unit described in spec.md §2
// and §9: composition over inheritance, a single peers_lock, and
// explicit handler context instead of process-wide globals.
package node

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/pyl1b/p2p0mq/internal/telemetry"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/core"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/definition"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/handlers"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/queue"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// stabilizeLoops is the number of completed app-worker loop
// iterations, after at least one peer table sync, that a fresh node
// requires before it reports itself stable.
const stabilizeLoops = 3

// Node is a single participant in the mesh: it owns the peer table,
// the handler registry, the router, and the three workers described
// in spec.md §4.8-§4.10.
type Node struct {
	localID   types.NodeID
	localHost string
	localPort int
	cfg       *definition.Config
	log       types.Logger

	repo      types.PeerRepository
	certStore types.CertStore
	transport types.Transport

	peers       *core.PeerTable
	registry    *core.HandlerRegistry
	router      *core.Router
	outbound    *queue.PriorityQueue
	inbound     *queue.InboundQueue
	connections *queue.ConnectionQueue

	connector *handlers.Connector
	heartbeat *handlers.HeartBeat
	askAround *handlers.AskAround

	msgID atomic.Uint64
	hook  telemetry.Hook

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	appLoops atomic.Int32
	synced   atomic.Bool
}

// Options configures a new Node.
type Options struct {
	LocalID   types.NodeID
	LocalHost string
	LocalPort int

	Config    *definition.Config
	Log       types.Logger
	Repo      types.PeerRepository
	CertStore types.CertStore
	Transport types.Transport

	// Hook receives queue-depth, peer-count and message-outcome
	// observations. Defaults to telemetry.NoOp() when nil.
	Hook telemetry.Hook
}

// New builds a Node from opts, registering the connector, heart-beat
// and ask-around handlers. It does not start any worker; call Start.
func New(opts Options) *Node {
	cfg := opts.Config
	if cfg == nil {
		cfg = definition.DefaultConfig()
	}
	log := opts.Log
	if log == nil {
		log = definition.NewDefaultLogger()
	}
	hook := opts.Hook
	if hook == nil {
		hook = telemetry.NoOp()
	}

	n := &Node{
		localID:     opts.LocalID,
		localHost:   opts.LocalHost,
		localPort:   opts.LocalPort,
		cfg:         cfg,
		log:         log,
		repo:        opts.Repo,
		certStore:   opts.CertStore,
		transport:   opts.Transport,
		hook:        hook,
		peers:       core.NewPeerTable(opts.Repo, cfg.SyncDBInterval, log.WithField("component", "peers")),
		registry:    core.NewHandlerRegistry(),
		outbound:    queue.NewPriorityQueue(),
		inbound:     queue.NewInboundQueue(),
		connections: queue.NewConnectionQueue(),
	}

	handlerCtx := core.Context{
		LocalID:       n.localID,
		LocalHost:     n.localHost,
		LocalPort:     n.localPort,
		Peers:         n.peers,
		Outbound:      n.outbound,
		Connections:   n.connections,
		Config:        cfg,
		Log:           log,
		NextMessageID: n.nextMessageID,
	}

	n.connector = handlers.NewConnector(handlerCtx)
	n.heartbeat = handlers.NewHeartBeat(handlerCtx)
	n.askAround = handlers.NewAskAround(handlerCtx)
	n.router = core.NewRouter(n.localID, n.peers, n.askAround, log.WithField("component", "router"))

	// registration order is fixed and matches spec.md §4.4-§4.6.
	_ = n.registry.Add(n.connector)
	_ = n.registry.Add(n.heartbeat)
	_ = n.registry.Add(n.askAround)

	return n
}

// Start brings up the transport listener and the three workers. It is
// safe to call once; a second call is a no-op.
func (n *Node) Start() error {
	if n.ctx != nil {
		return nil
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	if n.transport != nil {
		addr := n.localHost
		if n.localPort != 0 {
			addr = addr + ":" + strconv.Itoa(n.localPort)
		}
		if err := n.transport.Listen(n.localID, addr); err != nil {
			return err
		}
	}

	n.registry.StartAll()

	n.wg.Add(3)
	go n.runApp()
	go n.runSender()
	go n.runReceiver()

	return nil
}

// Stop signals every worker to exit, waits for them, then tears down
// the transport and handlers in the reverse order they were opened
// (spec.md §5).
func (n *Node) Stop() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	n.wg.Wait()

	n.registry.StopAll()
	if n.transport != nil {
		_ = n.transport.Close()
	}
}

// IsStable reports whether the node has completed enough app-worker
// loop iterations, and at least one peer table sync, to be considered
// settled (spec.md §9 supplemented feature: stable()/wait_to_stabilize()).
func (n *Node) IsStable() bool {
	return n.synced.Load() && n.appLoops.Load() >= stabilizeLoops
}

// WaitToStabilize blocks until IsStable or timeout elapses, returning
// false on timeout.
func (n *Node) WaitToStabilize(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if n.IsStable() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// AddPeer registers a peer for connection management.
func (n *Node) AddPeer(p *types.Peer) {
	n.peers.Add(p)
}

// TakePeer removes and returns a peer, if known.
func (n *Node) TakePeer(id types.NodeID) (*types.Peer, bool) {
	return n.peers.Take(id)
}

// Peer returns a peer by id without removing it.
func (n *Node) Peer(id types.NodeID) (*types.Peer, bool) {
	return n.peers.Get(id)
}

// ExchangeCertificates trades public keys with another node's
// certificate store, the test-only shortcut described in spec.md §6.
func (n *Node) ExchangeCertificates(other *Node) error {
	if n.certStore == nil || other.certStore == nil {
		return nil
	}
	return n.certStore.ExchangeCertificates(other.certStore)
}

// Enqueue hands a message to the outbound priority queue directly,
// the escape hatch the local administrative surface requires for
// tests that need to inject traffic without a handler round-trip. The
// destination must already be a known peer.
func (n *Node) Enqueue(m *types.Message, priority types.Priority) error {
	if _, known := n.peers.Get(m.Destination); !known {
		return errors.Wrapf(types.ErrPeerNotFound, "enqueue: destination %s", m.Destination)
	}
	n.enqueueOutbound(priority, m)
	return nil
}

func (n *Node) nextMessageID() uint64 {
	return n.msgID.Add(1)
}

// reportTelemetry pushes the current queue depths and peer-state
// counts to the configured Hook; called once per app-worker loop.
func (n *Node) reportTelemetry() {
	for priority, depth := range n.outbound.DepthByLane() {
		n.hook.QueueDepth(priority, depth)
	}

	counts := make(map[types.PeerState]int)
	for _, p := range n.peers.All() {
		counts[p.State]++
	}
	for _, state := range []types.PeerState{
		types.Initial, types.Connecting, types.Connected,
		types.Routed, types.Unreachable, types.NoConnection,
	} {
		n.hook.PeerCount(state, counts[state])
	}
}
