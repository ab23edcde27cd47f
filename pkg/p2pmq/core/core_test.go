package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/core"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// nopLogger is a no-op types.Logger for tests that don't care about
// log output.
type nopLogger struct{}

func (nopLogger) Debug(v ...interface{})                 {}
func (nopLogger) Debugf(f string, v ...interface{})       {}
func (nopLogger) Info(v ...interface{})                   {}
func (nopLogger) Infof(f string, v ...interface{})        {}
func (nopLogger) Warn(v ...interface{})                   {}
func (nopLogger) Warnf(f string, v ...interface{})        {}
func (nopLogger) Error(v ...interface{})                  {}
func (nopLogger) Errorf(f string, v ...interface{})       {}
func (nopLogger) Fatal(v ...interface{})                  {}
func (nopLogger) Fatalf(f string, v ...interface{})       {}
func (l nopLogger) WithField(k string, v interface{}) types.Logger { return l }

// fakeRepository is an in-memory stand-in for types.PeerRepository.
type fakeRepository struct {
	stored map[types.NodeID]*types.Peer
	nextID int64
}

func newFakeRepository(peers ...*types.Peer) *fakeRepository {
	r := &fakeRepository{stored: make(map[types.NodeID]*types.Peer)}
	for _, p := range peers {
		r.stored[p.ID] = p
	}
	return r
}

func (r *fakeRepository) LoadAll(ctx context.Context) ([]*types.Peer, error) {
	out := make([]*types.Peer, 0, len(r.stored))
	for _, p := range r.stored {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepository) Upsert(ctx context.Context, p *types.Peer) error {
	r.nextID++
	id := r.nextID
	p.DBID = &id
	r.stored[p.ID] = p
	return nil
}

func (r *fakeRepository) LocalIdentity(ctx context.Context) (types.NodeID, error) {
	return types.NodeID("local"), nil
}

func (r *fakeRepository) Close() error { return nil }

func TestPeerTable_SyncLoadsStoredPeers(t *testing.T) {
	stored := types.NewPeer("stored-peer", nil, nil)
	repo := newFakeRepository(stored)
	table := core.NewPeerTable(repo, time.Minute, nopLogger{})

	table.Sync(context.Background(), time.Now(), true)

	got, ok := table.Get("stored-peer")
	require.True(t, ok)
	require.Equal(t, stored, got)
}

func TestPeerTable_SyncPersistsMemoryOnlyPeers(t *testing.T) {
	repo := newFakeRepository()
	table := core.NewPeerTable(repo, time.Minute, nopLogger{})

	fresh := types.NewPeer("fresh-peer", nil, nil)
	table.Add(fresh)

	table.Sync(context.Background(), time.Now(), true)

	require.NotNil(t, fresh.DBID)
	_, ok := repo.stored["fresh-peer"]
	require.True(t, ok)
}

func TestPeerTable_SyncSkipsBeforeInterval(t *testing.T) {
	repo := newFakeRepository()
	table := core.NewPeerTable(repo, time.Hour, nopLogger{})

	now := time.Now()
	table.Sync(context.Background(), now, true)

	late := types.NewPeer("late-peer", nil, nil)
	table.Add(late)
	table.Sync(context.Background(), now.Add(time.Minute), false)

	require.Nil(t, late.DBID)
}

func TestPeerTable_InState(t *testing.T) {
	repo := newFakeRepository()
	table := core.NewPeerTable(repo, time.Minute, nopLogger{})

	connected := types.NewPeer("connected", nil, nil)
	connected.State = types.Connected
	unreachable := types.NewPeer("unreachable", nil, nil)
	unreachable.State = types.Unreachable
	table.Add(connected)
	table.Add(unreachable)

	got := table.InState(types.Connected, types.Routed)
	require.Len(t, got, 1)
	require.Equal(t, types.NodeID("connected"), got[0].ID)
}

// stubHandler is a minimal types.Handler for registry tests.
type stubHandler struct {
	cmd     string
	started int
	stopped int
	ticked  int
}

func (h *stubHandler) CommandID() []byte { return []byte(h.cmd) }
func (h *stubHandler) Tick(tick time.Time) { h.ticked++ }
func (h *stubHandler) OnRequest(m *types.Message) (types.Priority, *types.Message, bool) {
	return types.SpeedFast, nil, false
}
func (h *stubHandler) OnReply(m *types.Message) (types.Priority, *types.Message, bool) {
	return types.SpeedFast, nil, false
}
func (h *stubHandler) OnSent(m *types.Message)                    {}
func (h *stubHandler) OnSendFailed(m *types.Message, err error) *types.Message { return nil }
func (h *stubHandler) OnDropped(m *types.Message)                 {}
func (h *stubHandler) Start()                                     { h.started++ }
func (h *stubHandler) Stop()                                      { h.stopped++ }

func TestHandlerRegistry_RejectsDuplicateCommand(t *testing.T) {
	reg := core.NewHandlerRegistry()
	require.NoError(t, reg.Add(&stubHandler{cmd: "hello"}))
	err := reg.Add(&stubHandler{cmd: "hello"})
	require.ErrorIs(t, err, types.ErrDuplicateHandler)
}

func TestHandlerRegistry_StartStopIdempotent(t *testing.T) {
	reg := core.NewHandlerRegistry()
	h := &stubHandler{cmd: "hb"}
	require.NoError(t, reg.Add(h))

	reg.StartAll()
	reg.StartAll()
	require.Equal(t, 1, h.started)

	reg.StopAll()
	reg.StopAll()
	require.Equal(t, 1, h.stopped)
}

func TestHandlerRegistry_TickAll(t *testing.T) {
	reg := core.NewHandlerRegistry()
	h := &stubHandler{cmd: "r"}
	require.NoError(t, reg.Add(h))

	reg.TickAll(time.Now())
	reg.TickAll(time.Now())
	require.Equal(t, 2, h.ticked)
}

// fakeAskAround records the discovery requests the router asked for.
type fakeAskAround struct {
	calls []types.NodeID
}

func (f *fakeAskAround) ComposeDiscovery(target types.NodeID, tick time.Time, exclude []types.NodeID) []*types.Message {
	f.calls = append(f.calls, target)
	return []*types.Message{{Command: []byte("r"), Destination: "neighbour"}}
}

func TestRouter_RewritesDeliverableRoute(t *testing.T) {
	repo := newFakeRepository()
	table := core.NewPeerTable(repo, time.Minute, nopLogger{})
	dest := types.NewPeer("dest", nil, nil)
	dest.State = types.Connected
	table.Add(dest)

	router := core.NewRouter("local", table, nil, nopLogger{})
	m := &types.Message{
		Kind:        types.Route,
		Destination: "dest",
		PreviousHop: "hop-0",
		TimeToLive:  time.Now().Add(time.Minute),
	}

	out := router.ProcessRoutes([]*types.Message{m}, time.Now())
	require.Len(t, out, 1)
	require.Equal(t, types.SpeedMedium, out[0].Priority)
	require.Equal(t, types.NodeID("local"), out[0].Message.PreviousHop)
}

func TestRouter_DropsExpiredRoute(t *testing.T) {
	repo := newFakeRepository()
	table := core.NewPeerTable(repo, time.Minute, nopLogger{})

	var dropped []*types.Message
	router := core.NewRouter("local", table, nil, nopLogger{})
	router.OnDrop = func(m *types.Message) { dropped = append(dropped, m) }

	m := &types.Message{
		Kind:        types.Route,
		Destination: "dest",
		PreviousHop: "hop-0",
		TimeToLive:  time.Now().Add(-time.Minute),
	}

	out := router.ProcessRoutes([]*types.Message{m}, time.Now())
	require.Empty(t, out)
	require.Len(t, dropped, 1)
}

func TestRouter_AsksAroundForUnknownDestination(t *testing.T) {
	repo := newFakeRepository()
	table := core.NewPeerTable(repo, time.Minute, nopLogger{})
	aa := &fakeAskAround{}
	router := core.NewRouter("local", table, aa, nopLogger{})

	m := &types.Message{
		Kind:        types.Route,
		Destination: "unknown-dest",
		PreviousHop: "hop-0",
		TimeToLive:  time.Now().Add(time.Minute),
	}

	out := router.ProcessRoutes([]*types.Message{m}, time.Now())
	require.Len(t, aa.calls, 1)
	require.Equal(t, types.NodeID("unknown-dest"), aa.calls[0])
	require.Len(t, out, 1)
	require.Equal(t, types.SpeedFast, out[0].Priority)
}
