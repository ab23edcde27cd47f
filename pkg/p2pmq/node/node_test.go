package node_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/definition"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/node"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// fakeNetwork is an in-memory stand-in for the ZMQ transport, used so
// end-to-end scenarios don't need real sockets.
type fakeNetwork struct {
	mu    sync.Mutex
	nodes map[types.NodeID]*fakeTransport
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{nodes: make(map[types.NodeID]*fakeTransport)}
}

func (fn *fakeNetwork) transportFor(id types.NodeID) *fakeTransport {
	t := &fakeTransport{id: id, network: fn, inbox: make(chan [][]byte, 64)}
	fn.mu.Lock()
	fn.nodes[id] = t
	fn.mu.Unlock()
	return t
}

type fakeTransport struct {
	id      types.NodeID
	network *fakeNetwork
	inbox   chan [][]byte
}

func (t *fakeTransport) Listen(local types.NodeID, addr string) error { return nil }
func (t *fakeTransport) Connect(peer types.NodeID, addr string) error { return nil }
func (t *fakeTransport) Disconnect(peer types.NodeID)                 {}

func (t *fakeTransport) SendMultipart(peer types.NodeID, parts [][]byte) error {
	t.network.mu.Lock()
	dest, ok := t.network.nodes[peer]
	t.network.mu.Unlock()
	if !ok {
		return errors.Errorf("fake network: no such peer %s", peer)
	}
	framed := append([][]byte{t.id.Bytes()}, parts...)
	select {
	case dest.inbox <- framed:
	default:
	}
	return nil
}

func (t *fakeTransport) Recv(ctx context.Context) ([][]byte, error) {
	select {
	case p := <-t.inbox:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Close() error { return nil }

// nopRepository is a types.PeerRepository that keeps nothing,
// appropriate for tests that only care about in-memory peer state.
type nopRepository struct{}

func (nopRepository) LoadAll(ctx context.Context) ([]*types.Peer, error) { return nil, nil }
func (nopRepository) Upsert(ctx context.Context, p *types.Peer) error    { return nil }
func (nopRepository) LocalIdentity(ctx context.Context) (types.NodeID, error) {
	return "", nil
}
func (nopRepository) Close() error { return nil }

type nopLogger struct{}

func (nopLogger) Debug(v ...interface{})                          {}
func (nopLogger) Debugf(f string, v ...interface{})               {}
func (nopLogger) Info(v ...interface{})                           {}
func (nopLogger) Infof(f string, v ...interface{})                {}
func (nopLogger) Warn(v ...interface{})                           {}
func (nopLogger) Warnf(f string, v ...interface{})                {}
func (nopLogger) Error(v ...interface{})                          {}
func (nopLogger) Errorf(f string, v ...interface{})               {}
func (nopLogger) Fatal(v ...interface{})                          {}
func (nopLogger) Fatalf(f string, v ...interface{})               {}
func (l nopLogger) WithField(k string, v interface{}) types.Logger { return l }

func newTestNode(net *fakeNetwork, id types.NodeID) *node.Node {
	cfg := definition.DefaultConfig()
	cfg.HeartBeatInterval = 30 * time.Second
	cfg.UnresponsiveThreshold = 20 * time.Second

	return node.New(node.Options{
		LocalID:   id,
		LocalHost: string(id),
		LocalPort: 0,
		Config:    cfg,
		Log:       nopLogger{},
		Repo:      nopRepository{},
		Transport: net.transportFor(id),
	})
}

func newTestNodeWithConfig(net *fakeNetwork, id types.NodeID, cfg *definition.Config) *node.Node {
	return node.New(node.Options{
		LocalID:   id,
		LocalHost: string(id),
		LocalPort: 0,
		Config:    cfg,
		Log:       nopLogger{},
		Repo:      nopRepository{},
		Transport: net.transportFor(id),
	})
}

// TestTwoNodes_DirectConnect covers scenario A from spec.md §8: two
// nodes exchange hello and both land in CONNECTED.
func TestTwoNodes_DirectConnect(t *testing.T) {
	net := newFakeNetwork()
	a := newTestNode(net, "node-a")
	b := newTestNode(net, "node-b")

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	hostB := "node-b"
	a.AddPeer(types.NewPeer("node-b", &hostB, nil))

	require.Eventually(t, func() bool {
		p, ok := a.Peer("node-b")
		return ok && p.State == types.Connected
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, a.WaitToStabilize(2*time.Second))
	require.True(t, b.WaitToStabilize(2*time.Second))

	a.Stop()
	b.Stop()
	goleak.VerifyNone(t)
}

// TestThreeNodes_RelayDiscovery covers scenario C from spec.md §8: A and
// C cannot reach each other directly, but both are connected to B, so A
// discovers C as a ROUTED peer via B within a couple of ask-around
// intervals.
func TestThreeNodes_RelayDiscovery(t *testing.T) {
	net := newFakeNetwork()

	cfg := definition.DefaultConfig()
	cfg.HeartBeatInterval = 30 * time.Second
	cfg.UnresponsiveThreshold = 20 * time.Second
	cfg.AskAroundInterval = 50 * time.Millisecond

	a := newTestNodeWithConfig(net, "node-a", cfg)
	b := newTestNodeWithConfig(net, "node-b", cfg)
	c := newTestNodeWithConfig(net, "node-c", cfg)

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	require.NoError(t, c.Start())

	hostA, hostB, hostC := "node-a", "node-b", "node-c"
	a.AddPeer(types.NewPeer("node-b", &hostB, nil))
	b.AddPeer(types.NewPeer("node-a", &hostA, nil))
	b.AddPeer(types.NewPeer("node-c", &hostC, nil))
	c.AddPeer(types.NewPeer("node-b", &hostB, nil))

	require.Eventually(t, func() bool {
		pb, ok := a.Peer("node-b")
		return ok && pb.State == types.Connected
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		pc, ok := c.Peer("node-b")
		return ok && pc.State == types.Connected
	}, 2*time.Second, 10*time.Millisecond)

	// A has never heard of C directly; the only route is a bare peer.
	a.AddPeer(types.NewPeer("node-c", nil, nil))

	require.Eventually(t, func() bool {
		pc, ok := a.Peer("node-c")
		return ok && pc.State == types.Routed && pc.Via != nil && *pc.Via == types.NodeID("node-b")
	}, 2*time.Second, 10*time.Millisecond)

	a.Stop()
	b.Stop()
	c.Stop()
	goleak.VerifyNone(t)
}
