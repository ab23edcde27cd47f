package node

import (
	"context"
	"time"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/codec"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// receiveTimeout bounds a single blocking Recv call so the worker can
// re-check its stop flag even with no inbound traffic.
const receiveTimeout = 200 * time.Millisecond

// runReceiver is the receiver-worker loop of spec.md §4.10.
func (n *Node) runReceiver() {
	defer n.wg.Done()
	log := n.log.WithField("component", "receiver")
	defer log.Debugf("receiver worker stopped")

	if n.transport == nil {
		<-n.ctx.Done()
		return
	}

	for {
		select {
		case <-n.ctx.Done():
			return
		default:
		}

		recvCtx, cancel := context.WithTimeout(n.ctx, receiveTimeout)
		parts, err := n.transport.Recv(recvCtx)
		cancel()
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}

		// The router-style socket prepends the sender's identity
		// frame ahead of the 7-part message frame (spec.md §6).
		if len(parts) < 2 {
			log.Warnf("dropping frame with no sender identity")
			continue
		}
		previousHop, err := types.NewNodeID(parts[0])
		if err != nil {
			log.Warnf("dropping frame with invalid sender identity: %v", err)
			continue
		}

		m, err := codec.Decode(parts[1:], previousHop, n.localID)
		if err != nil {
			log.Warnf("dropping malformed frame: %v", err)
			continue
		}

		n.inbound.Enqueue(m)
	}
}
