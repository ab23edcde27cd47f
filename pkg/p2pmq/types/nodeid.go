package types

import "encoding/hex"

// NodeID is the opaque identity of a peer. It is transport-level (the
// zmq socket identity) and must be at least four bytes long. NodeID is
// backed by a string so that it stays comparable and usable as a map
// key without a custom hash function.
type NodeID string

// NewNodeID builds a NodeID from raw bytes, rejecting identities
// shorter than four bytes as the spec requires.
func NewNodeID(raw []byte) (NodeID, error) {
	if len(raw) < 4 {
		return "", ErrShortNodeID
	}
	return NodeID(raw), nil
}

// Bytes returns the wire representation of the id.
func (n NodeID) Bytes() []byte {
	return []byte(n)
}

// String renders the id as a hex string for logging.
func (n NodeID) String() string {
	return hex.EncodeToString([]byte(n))
}

// Empty reports whether the id carries no identity at all.
func (n NodeID) Empty() bool {
	return len(n) == 0
}
