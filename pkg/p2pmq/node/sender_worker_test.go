package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/definition"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

type recordingHandler struct {
	dropped int
	sent    int
}

func (h *recordingHandler) CommandID() []byte { return []byte("x") }
func (h *recordingHandler) Start()            {}
func (h *recordingHandler) Stop()             {}
func (h *recordingHandler) Tick(time.Time)    {}
func (h *recordingHandler) OnRequest(*types.Message) (types.Priority, *types.Message, bool) {
	return 0, nil, false
}
func (h *recordingHandler) OnReply(*types.Message) (types.Priority, *types.Message, bool) {
	return 0, nil, false
}
func (h *recordingHandler) OnSent(*types.Message)                             { h.sent++ }
func (h *recordingHandler) OnSendFailed(*types.Message, error) *types.Message { return nil }
func (h *recordingHandler) OnDropped(*types.Message)                          { h.dropped++ }

// neverCalledTransport panics if SendMultipart is ever invoked, so a
// test using it fails loudly if a dropped message reaches the wire.
type neverCalledTransport struct{}

func (neverCalledTransport) Listen(types.NodeID, string) error  { return nil }
func (neverCalledTransport) Connect(types.NodeID, string) error { return nil }
func (neverCalledTransport) Disconnect(types.NodeID)            {}
func (neverCalledTransport) SendMultipart(types.NodeID, [][]byte) error {
	panic("transport must not be used for an expired message")
}
func (neverCalledTransport) Recv(ctx context.Context) ([][]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (neverCalledTransport) Close() error { return nil }

// TestSendOne_DropsExpiredMessage covers scenario E / invariant 5 from
// spec.md §8: a message with ttl <= now never causes a transport send
// and always results in exactly one on_dropped call.
func TestSendOne_DropsExpiredMessage(t *testing.T) {
	n := New(Options{
		LocalID:   "local",
		Config:    definition.DefaultConfig(),
		Transport: neverCalledTransport{},
	})

	h := &recordingHandler{}
	m := &types.Message{
		Source:      "local",
		Destination: "peer-x",
		NextHop:     "peer-x",
		Command:     []byte("x"),
		Kind:        types.Request,
		TimeToLive:  time.Now().Add(-time.Second),
		Handler:     h,
	}

	n.sendOne(m, n.log.WithField("component", "test"))

	require.Equal(t, 1, h.dropped)
	require.Equal(t, 0, h.sent)
}
