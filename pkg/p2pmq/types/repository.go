package types

import "context"

// PeerRepository is the persistence collaborator for the peer table.
// Only identity (host, port) round-trips through storage; state,
// heart-beat timers, and via are ephemeral and never persisted.
type PeerRepository interface {
	// LoadAll returns every peer currently in storage.
	LoadAll(ctx context.Context) ([]*Peer, error)

	// Upsert persists a peer that exists only in memory, assigning it
	// a DBID. Peers that already carry a DBID are left untouched.
	Upsert(ctx context.Context, p *Peer) error

	// LocalIdentity returns the bootstrapped local node id, generating
	// and persisting one on first use.
	LocalIdentity(ctx context.Context) (NodeID, error)

	Close() error
}

// CertStore is the certificate/identity collaborator for transport
// authentication.
type CertStore interface {
	// EnsureLocalIdentity creates (or loads) the keypair for id,
	// returning an error only on unrecoverable storage failure.
	EnsureLocalIdentity(id NodeID) error

	// PublicKeyOf returns the public key material for id, or an error
	// if no identity has been established for it.
	PublicKeyOf(id NodeID) ([]byte, error)

	// ExchangeCertificates trades public keys with another store,
	// used by tests to authorize a peer without a full PKI exchange.
	ExchangeCertificates(other CertStore) error
}

// Transport is the wire-level collaborator: a multi-part message
// socket with router-style inbound addressing and dealer-style
// outbound connections, as described in spec.md §6.
type Transport interface {
	// Listen binds the router-style inbound socket at addr under the
	// given local identity.
	Listen(local NodeID, addr string) error

	// Connect opens a dealer-style outbound connection to peer at
	// addr. Connect is idempotent: connecting an already-connected
	// peer is a no-op.
	Connect(peer NodeID, addr string) error

	// Disconnect tears down the outbound connection to peer, if any.
	Disconnect(peer NodeID)

	// SendMultipart hands a framed message to the outbound connection
	// for peer.
	SendMultipart(peer NodeID, parts [][]byte) error

	// Recv blocks until an inbound frame arrives or ctx is done,
	// returning the next inbound frame or (nil, ctx.Err()) on
	// cancellation/timeout.
	Recv(ctx context.Context) ([][]byte, error)

	Close() error
}
