package queue

import (
	"sync"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// InboundQueue is the REQUEST/REPLY/ROUTE typed triple the receiver
// worker demultiplexes into.
type InboundQueue struct {
	mu    sync.Mutex
	lanes map[types.Kind][]*types.Message
	Wake  chan struct{}
}

// NewInboundQueue builds an empty typed inbound queue.
func NewInboundQueue() *InboundQueue {
	return &InboundQueue{
		lanes: map[types.Kind][]*types.Message{
			types.Request: nil,
			types.Reply:   nil,
			types.Route:   nil,
		},
		Wake: make(chan struct{}, 1),
	}
}

func (q *InboundQueue) signal() {
	select {
	case q.Wake <- struct{}{}:
	default:
	}
}

// Enqueue appends m onto the lane matching its Kind.
func (q *InboundQueue) Enqueue(m *types.Message) {
	q.mu.Lock()
	q.lanes[m.Kind] = append(q.lanes[m.Kind], m)
	q.mu.Unlock()
	q.signal()
}

// Dequeue returns up to n messages from the given kind's lane, FIFO.
func (q *InboundQueue) Dequeue(kind types.Kind, n int) []*types.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	lane := q.lanes[kind]
	if len(lane) == 0 {
		return nil
	}
	if n >= len(lane) {
		out := lane
		q.lanes[kind] = nil
		return out
	}
	out := lane[:n]
	q.lanes[kind] = append([]*types.Message(nil), lane[n:]...)
	return out
}

// Empty reports whether every lane is empty.
func (q *InboundQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, lane := range q.lanes {
		if len(lane) != 0 {
			return false
		}
	}
	return true
}
