package core

import (
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/definition"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/queue"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// Context is handed to every handler constructor at registration time
// rather than reached for through a process-wide global (spec.md §9
// design note): it is the handler's only door to the peer table, the
// outbound queues and the node's identity/configuration/logger.
type Context struct {
	LocalID   types.NodeID
	LocalHost string
	LocalPort int

	Peers       *PeerTable
	Outbound    *queue.PriorityQueue
	Connections *queue.ConnectionQueue
	Config      *definition.Config
	Log         types.Logger

	// NextMessageID yields the per-node atomic message-id counter
	// (spec.md §9), used whenever a handler originates a brand new
	// request rather than replying to one (replies copy the
	// original's id for correlation).
	NextMessageID func() uint64
}

// AllocateID returns the next message id, or 0 if this context was
// built without a generator (unit tests exercising a handler in
// isolation).
func (c Context) AllocateID() uint64 {
	if c.NextMessageID == nil {
		return 0
	}
	return c.NextMessageID()
}

// WithComponent returns a copy of ctx whose logger is tagged with the
// given component name, the way definition.DefaultLogger.WithField is
// used throughout this module to scope log lines.
func (c Context) WithComponent(name string) Context {
	c.Log = c.Log.WithField("component", name)
	return c
}
