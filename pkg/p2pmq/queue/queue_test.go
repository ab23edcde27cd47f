package queue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/queue"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

func msg(cmd string) *types.Message {
	return &types.Message{Command: []byte(cmd)}
}

// TestPriorityQueue_StrictOrdering covers invariant 3 from spec.md §8:
// given a snapshot with FAST, MEDIUM, SLOW all non-empty, Dequeue
// returns every FAST message before any MEDIUM before any SLOW.
func TestPriorityQueue_StrictOrdering(t *testing.T) {
	q := queue.NewPriorityQueue()
	q.Enqueue(types.SpeedSlow, msg("slow-1"))
	q.Enqueue(types.SpeedFast, msg("fast-1"))
	q.Enqueue(types.SpeedMedium, msg("medium-1"))
	q.Enqueue(types.SpeedFast, msg("fast-2"))

	out := q.Dequeue(10)
	require.Len(t, out, 4)
	require.Equal(t, "fast-1", string(out[0].Command))
	require.Equal(t, "fast-2", string(out[1].Command))
	require.Equal(t, "medium-1", string(out[2].Command))
	require.Equal(t, "slow-1", string(out[3].Command))
}

func TestPriorityQueue_BoundedDequeue(t *testing.T) {
	q := queue.NewPriorityQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(types.SpeedFast, msg("a"))
	}
	first := q.Dequeue(3)
	require.Len(t, first, 3)
	require.False(t, q.Empty())

	second := q.Dequeue(10)
	require.Len(t, second, 2)
	require.True(t, q.Empty())
}

func TestInboundQueue_DemultiplexesByKind(t *testing.T) {
	q := queue.NewInboundQueue()
	req := &types.Message{Kind: types.Request, Command: []byte("r")}
	rep := &types.Message{Kind: types.Reply, Command: []byte("r")}
	route := &types.Message{Kind: types.Route, Command: []byte("r")}

	q.Enqueue(req)
	q.Enqueue(rep)
	q.Enqueue(route)

	require.Len(t, q.Dequeue(types.Request, 10), 1)
	require.Len(t, q.Dequeue(types.Reply, 10), 1)
	require.Len(t, q.Dequeue(types.Route, 10), 1)
	require.True(t, q.Empty())
}

func TestConnectionQueue_OnePendingPerPeer(t *testing.T) {
	cq := queue.NewConnectionQueue()
	peer := types.NewPeer("peer-a", nil, nil)

	cq.Enqueue(peer, msg("hello-1"))
	cq.Enqueue(peer, msg("hello-2"))

	entries := cq.DequeueAll()
	require.Len(t, entries, 1)
	require.Equal(t, "hello-2", string(entries[0].Message.Command))
	require.True(t, cq.Empty())
}
