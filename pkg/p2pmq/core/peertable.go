// Package core implements the peer table, handler registry and router
// that sit between the three workers and the application handlers
// (spec.md §4.2, §4.3, §4.7).
package core

import (
	"context"
	"sync"
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// PeerTable is the in-memory peer map guarded by a single mutex, as
// required by spec.md §5: handler-side reads/writes always acquire
// it, and it is never held across I/O.
type PeerTable struct {
	mu           sync.Mutex
	peers        map[types.NodeID]*types.Peer
	repo         types.PeerRepository
	syncInterval time.Duration
	nextSync     time.Time
	log          types.Logger
}

// NewPeerTable builds an empty table backed by repo.
func NewPeerTable(repo types.PeerRepository, syncInterval time.Duration, log types.Logger) *PeerTable {
	return &PeerTable{
		peers:        make(map[types.NodeID]*types.Peer),
		repo:         repo,
		syncInterval: syncInterval,
		log:          log,
	}
}

// Add inserts or replaces a peer record from code (the repository
// reconciliation path uses the same map directly, not this method, the
// way PeerStore.add_peer is distinct from database-driven inserts).
func (t *PeerTable) Add(p *types.Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[p.ID] = p
}

// Take removes and returns a peer, if known.
func (t *PeerTable) Take(id types.NodeID) (*types.Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if ok {
		delete(t.peers, id)
	}
	return p, ok
}

// Get returns a peer by id without removing it.
func (t *PeerTable) Get(id types.NodeID) (*types.Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	return p, ok
}

// All returns a snapshot slice of every known peer.
func (t *PeerTable) All() []*types.Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*types.Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// InState returns a snapshot of peers whose state is one of states,
// the Go equivalent of PeerStore.peers_connected/peers_routed/etc.
func (t *PeerTable) InState(states ...types.PeerState) []*types.Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	want := make(map[types.PeerState]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	var out []*types.Peer
	for _, p := range t.peers {
		if want[p.State] {
			out = append(out, p)
		}
	}
	return out
}

// WithLock runs fn with the table mutex held for its entire duration,
// giving the caller the raw peer map to mutate -- used by handler
// Tick sweeps that must look at every peer under one critical
// section, mirroring `with self.app.peers_lock: for peer in ...`.
func (t *PeerTable) WithLock(fn func(peers map[types.NodeID]*types.Peer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.peers)
}

// Sync reconciles the in-memory table with the repository: peers
// known only to storage are loaded into memory, peers known only to
// memory are persisted and receive a DBID, and peers known to both
// are left untouched (spec.md §6).
func (t *PeerTable) Sync(ctx context.Context, tick time.Time, force bool) {
	if !force && tick.Before(t.nextSync) {
		return
	}

	stored, err := t.repo.LoadAll(ctx)
	if err != nil {
		t.log.Errorf("peer table sync: loading peers failed: %v", err)
		return
	}

	storedByID := make(map[types.NodeID]*types.Peer, len(stored))
	for _, p := range stored {
		storedByID[p.ID] = p
	}

	t.mu.Lock()

	loaded := 0
	for id, p := range storedByID {
		if _, exists := t.peers[id]; !exists {
			t.peers[id] = p
			loaded++
		}
	}

	var toUpsert []*types.Peer
	for id, p := range t.peers {
		if _, exists := storedByID[id]; !exists {
			toUpsert = append(toUpsert, p)
		}
	}

	total := len(t.peers)
	t.nextSync = tick.Add(t.syncInterval)
	t.mu.Unlock()

	// Upsert calls into the repository, which may block on I/O, so it
	// must never run with the table mutex held (spec.md §5).
	saved := 0
	for _, p := range toUpsert {
		if err := t.repo.Upsert(ctx, p); err != nil {
			t.log.Errorf("peer table sync: persisting %s failed: %v", p.ID, err)
			continue
		}
		saved++
	}

	t.log.Debugf("peer table synchronized: %d loaded, %d saved, %d total", loaded, saved, total)
}
