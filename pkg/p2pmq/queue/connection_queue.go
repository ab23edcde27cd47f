package queue

import (
	"sync"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// ConnectionEntry pairs a peer with the connect message the connector
// handler wants sent once the transport has a link open to it.
type ConnectionEntry struct {
	Peer    *types.Peer
	Message *types.Message
}

// ConnectionQueue backs connect attempts: one pending message per
// peer, keyed by peer id so a second connect attempt for the same
// peer simply replaces the first rather than piling up.
type ConnectionQueue struct {
	mu      sync.Mutex
	order   []types.NodeID
	pending map[types.NodeID]*ConnectionEntry
	Wake    chan struct{}
}

// NewConnectionQueue builds an empty connection queue.
func NewConnectionQueue() *ConnectionQueue {
	return &ConnectionQueue{
		pending: make(map[types.NodeID]*ConnectionEntry),
		Wake:    make(chan struct{}, 1),
	}
}

func (q *ConnectionQueue) signal() {
	select {
	case q.Wake <- struct{}{}:
	default:
	}
}

// Enqueue registers peer/message as a pending connect attempt.
func (q *ConnectionQueue) Enqueue(peer *types.Peer, message *types.Message) {
	q.mu.Lock()
	if _, exists := q.pending[peer.ID]; !exists {
		q.order = append(q.order, peer.ID)
	}
	q.pending[peer.ID] = &ConnectionEntry{Peer: peer, Message: message}
	q.mu.Unlock()
	q.signal()
}

// DequeueAll drains every pending connect attempt.
func (q *ConnectionQueue) DequeueAll() []*ConnectionEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return nil
	}
	out := make([]*ConnectionEntry, 0, len(q.order))
	for _, id := range q.order {
		if entry, ok := q.pending[id]; ok {
			out = append(out, entry)
		}
	}
	q.order = nil
	q.pending = make(map[types.NodeID]*ConnectionEntry)
	return out
}

// Pending reports whether a connect attempt for peer id is already
// queued, so callers can avoid enqueueing a second one on every tick.
func (q *ConnectionQueue) Pending(id types.NodeID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[id]
	return ok
}

// Empty reports whether there is no pending connect attempt.
func (q *ConnectionQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order) == 0
}
