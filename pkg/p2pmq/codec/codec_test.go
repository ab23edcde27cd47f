package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/codec"
	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

func mustID(t *testing.T, raw string) types.NodeID {
	t.Helper()
	id, err := types.NewNodeID([]byte(raw))
	require.NoError(t, err)
	return id
}

// TestEncodeDecode_RoundTrip covers invariant 2 from spec.md §8: encode
// composed with decode is the identity on well-formed frames, honoring
// the source=local and dest=next_hop elision rules.
func TestEncodeDecode_RoundTrip(t *testing.T) {
	local := mustID(t, "node-local")
	peer := mustID(t, "node-peer")

	m := &types.Message{
		Destination: peer,
		Command:     []byte("hello"),
		Kind:        types.Request,
		MessageID:   42,
		Payload:     map[string]interface{}{"host": "127.0.0.1", "port": int64(8401)},
	}

	parts, err := codec.Encode(m, local)
	require.NoError(t, err)
	require.Len(t, parts, 7)
	// Source was elided because it equals localID.
	require.Empty(t, parts[1])
	// Destination was elided because it equals next hop.
	require.Empty(t, parts[2])

	decoded, err := codec.Decode(parts, local, peer)
	require.NoError(t, err)
	require.Equal(t, local, decoded.Source)
	require.Equal(t, peer, decoded.Destination)
	require.Equal(t, m.Command, decoded.Command)
	require.Equal(t, m.Kind, decoded.Kind)
	require.Equal(t, m.MessageID, decoded.MessageID)
	require.Equal(t, "127.0.0.1", decoded.Payload["host"])
}

// TestEncodeDecode_DistinctNextHop exercises the non-elided destination
// path: when destination differs from next hop (a routed message) the
// destination travels on the wire in full.
func TestEncodeDecode_DistinctNextHop(t *testing.T) {
	local := mustID(t, "node-local")
	dest := mustID(t, "node-dest")
	nextHop := mustID(t, "node-hop")

	m := &types.Message{
		Source:      local,
		Destination: dest,
		NextHop:     nextHop,
		Command:     []byte("r"),
		Kind:        types.Route,
		MessageID:   7,
		Payload:     map[string]interface{}{},
	}

	parts, err := codec.Encode(m, local)
	require.NoError(t, err)
	require.NotEmpty(t, parts[2])

	decoded, err := codec.Decode(parts, nextHop, local)
	require.NoError(t, err)
	require.Equal(t, dest, decoded.Destination)
}

// TestDecode_MalformedFrame covers scenario D from spec.md §8: a
// six-part frame is rejected and nothing is produced.
func TestDecode_MalformedFrame(t *testing.T) {
	local := mustID(t, "node-local")
	peer := mustID(t, "node-peer")

	parts := [][]byte{
		[]byte("a"), []byte("b"), []byte("c"),
		{0x00}, []byte("hello"), []byte{0x00},
	}

	decoded, err := codec.Decode(parts, peer, local)
	require.ErrorIs(t, err, types.ErrMalformedFrame)
	require.Nil(t, decoded)
}

func TestDecode_BadKindByte(t *testing.T) {
	local := mustID(t, "node-local")
	peer := mustID(t, "node-peer")

	parts := [][]byte{
		[]byte("a"), []byte(""), []byte(""),
		{}, []byte("hello"), []byte{0x00}, []byte{0x80},
	}

	_, err := codec.Decode(parts, peer, local)
	require.ErrorIs(t, err, types.ErrMalformedFrame)
}

func TestMessage_CreateReply(t *testing.T) {
	local := mustID(t, "node-local")
	peer := mustID(t, "node-peer")

	req := &types.Message{
		Source:      peer,
		Destination: local,
		PreviousHop: peer,
		NextHop:     local,
		Command:     []byte("hb"),
		Kind:        types.Request,
		MessageID:   5,
	}

	reply := req.CreateReply(time.Minute)
	require.Equal(t, local, reply.Source)
	require.Equal(t, peer, reply.Destination)
	require.Equal(t, types.Reply, reply.Kind)
	require.Equal(t, uint64(5), reply.MessageID)
	require.True(t, reply.TimeToLive.After(time.Now()))
}
