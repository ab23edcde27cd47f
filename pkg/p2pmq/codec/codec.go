// Package codec implements the wire framing and packed-payload codec
// described in spec.md §4.1: a 7-part frame wrapping a MessagePack-
// encoded message id and payload.
package codec

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

var mpHandle codec.MsgpackHandle

const framePartCount = 7

// Encode produces the 7-part frame for m, mutating it in place the way
// the original encode() does: NextHop defaults to Destination and
// Source defaults to localID when left unset.
func Encode(m *types.Message, localID types.NodeID) ([][]byte, error) {
	if m.Destination.Empty() {
		return nil, errors.New("p2pmq/codec: message has no destination")
	}
	if m.Command == nil {
		return nil, errors.New("p2pmq/codec: message has no command")
	}

	if m.NextHop.Empty() {
		m.NextHop = m.Destination
	}
	if m.Source.Empty() {
		m.Source = localID
	}

	source := m.Source.Bytes()
	if m.Source == localID {
		source = []byte{}
	}

	destination := m.Destination.Bytes()
	if m.Destination == m.NextHop {
		destination = []byte{}
	}

	packedID, err := packMessageID(m.MessageID)
	if err != nil {
		return nil, errors.Wrap(err, "p2pmq/codec: packing message id")
	}

	packedPayload, err := packPayload(m.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "p2pmq/codec: packing payload")
	}

	return [][]byte{
		m.NextHop.Bytes(),
		source,
		destination,
		{byte(m.Kind)},
		m.Command,
		packedID,
		packedPayload,
	}, nil
}

// Decode inverts Encode: an empty source field restores to
// previousHop (the frame's first part, supplied by the router socket
// rather than carried in-band), and an empty destination field
// restores to the local node id.
func Decode(parts [][]byte, previousHop, localID types.NodeID) (*types.Message, error) {
	if len(parts) != framePartCount {
		return nil, types.ErrMalformedFrame
	}

	nextHopRaw, sourceRaw, destRaw, kindRaw, command, packedID, packedPayload :=
		parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6]

	if len(kindRaw) != 1 {
		return nil, types.ErrMalformedFrame
	}
	_ = nextHopRaw // the next hop equals the local socket's identity; not re-derived.

	source := previousHop
	if len(sourceRaw) != 0 {
		source = types.NodeID(sourceRaw)
	}

	dest := localID
	if len(destRaw) != 0 {
		dest = types.NodeID(destRaw)
	}

	messageID, err := unpackMessageID(packedID)
	if err != nil {
		return nil, errors.Wrap(err, "p2pmq/codec: unpacking message id")
	}

	payload, err := unpackPayload(packedPayload)
	if err != nil {
		return nil, errors.Wrap(err, "p2pmq/codec: unpacking payload")
	}

	return &types.Message{
		Source:      source,
		Destination: dest,
		PreviousHop: previousHop,
		NextHop:     localID,
		Command:     append([]byte(nil), command...),
		Kind:        types.Kind(kindRaw[0]),
		MessageID:   messageID,
		Payload:     payload,
	}, nil
}

func packMessageID(id uint64) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &mpHandle)
	if err := enc.Encode(id); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackMessageID(raw []byte) (uint64, error) {
	var id uint64
	dec := codec.NewDecoderBytes(raw, &mpHandle)
	if err := dec.Decode(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func packPayload(payload map[string]interface{}) ([]byte, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &mpHandle)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackPayload(raw []byte) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if len(raw) == 0 {
		return payload, nil
	}
	dec := codec.NewDecoderBytes(raw, &mpHandle)
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
