// Package certstore implements types.CertStore as a file-backed
// keypair store, grounded on original_source/p2p0mq/security.py's
// SecurityManager: one keypair per peer uuid, public and private
// halves kept in separate directories, generated on first use and
// exchanged directly between stores for test setups that skip a full
// PKI (security.py's exchange_certificates).
//
// The original drives ZMQ's CURVE mechanism through libzmq's own
// z85-encoded keypairs; the luxfi/zmq/v4 surface retrieved alongside
// this spec does not expose that keygen, so identity key material
// here is ed25519 from the standard library (see DESIGN.md).
package certstore

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// FileCertStore keeps one ed25519 keypair per node id, the public
// half readable by any store that has exchanged certificates with
// this one.
type FileCertStore struct {
	privateDir string
	publicDir  string

	mu       sync.RWMutex
	private  map[types.NodeID]ed25519.PrivateKey
	public   map[types.NodeID]ed25519.PublicKey
}

// New creates a FileCertStore rooted at dir, with "private" and
// "public" subdirectories created on demand.
func New(dir string) *FileCertStore {
	return &FileCertStore{
		privateDir: filepath.Join(dir, "private"),
		publicDir:  filepath.Join(dir, "public"),
		private:    make(map[types.NodeID]ed25519.PrivateKey),
		public:     make(map[types.NodeID]ed25519.PublicKey),
	}
}

// EnsureLocalIdentity loads id's keypair from disk, or generates and
// persists a fresh one if neither half exists yet (security.py's
// cert_pair_check_gen).
func (s *FileCertStore) EnsureLocalIdentity(id types.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.private[id]; ok {
		return nil
	}

	pubPath := s.certFile(id, true)
	prvPath := s.certFile(id, false)

	pubBytes, pubErr := os.ReadFile(pubPath)
	prvBytes, prvErr := os.ReadFile(prvPath)

	switch {
	case pubErr == nil && prvErr == nil:
		pub, err := decodeKey(pubBytes)
		if err != nil {
			return errors.Wrapf(err, "p2pmq/certstore: decode public key for %s", id)
		}
		prv, err := decodeKey(prvBytes)
		if err != nil {
			return errors.Wrapf(err, "p2pmq/certstore: decode private key for %s", id)
		}
		s.public[id] = ed25519.PublicKey(pub)
		s.private[id] = ed25519.PrivateKey(prv)
		return nil

	case pubErr == nil && prvErr != nil:
		return errors.Errorf(
			"p2pmq/certstore: public certificate for %s exists at %s but private half is missing",
			id, pubPath)

	case pubErr != nil && prvErr == nil:
		return errors.Errorf(
			"p2pmq/certstore: private certificate for %s exists at %s but public half is missing",
			id, prvPath)

	default:
		if err := os.MkdirAll(s.privateDir, 0o700); err != nil {
			return errors.Wrap(err, "p2pmq/certstore: create private dir")
		}
		if err := os.MkdirAll(s.publicDir, 0o755); err != nil {
			return errors.Wrap(err, "p2pmq/certstore: create public dir")
		}

		pub, prv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return errors.Wrap(err, "p2pmq/certstore: generate keypair")
		}
		if err := os.WriteFile(pubPath, encodeKey(pub), 0o644); err != nil {
			return errors.Wrap(err, "p2pmq/certstore: write public certificate")
		}
		if err := os.WriteFile(prvPath, encodeKey(prv), 0o600); err != nil {
			return errors.Wrap(err, "p2pmq/certstore: write private certificate")
		}

		s.public[id] = pub
		s.private[id] = prv
		return nil
	}
}

// PublicKeyOf returns the public key material for id.
func (s *FileCertStore) PublicKeyOf(id types.NodeID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pub, ok := s.public[id]
	if !ok {
		return nil, errors.Errorf("p2pmq/certstore: no identity established for %s", id)
	}
	return []byte(pub), nil
}

// ExchangeCertificates copies every public key this store knows into
// other, and vice versa, mirroring security.py's test-only
// exchange_certificates shortcut.
func (s *FileCertStore) ExchangeCertificates(other types.CertStore) error {
	o, ok := other.(*FileCertStore)
	if !ok {
		return errors.New("p2pmq/certstore: exchange requires another FileCertStore")
	}

	s.mu.RLock()
	mine := make(map[types.NodeID]ed25519.PublicKey, len(s.public))
	for id, pub := range s.public {
		mine[id] = pub
	}
	s.mu.RUnlock()

	o.mu.RLock()
	theirs := make(map[types.NodeID]ed25519.PublicKey, len(o.public))
	for id, pub := range o.public {
		theirs[id] = pub
	}
	o.mu.RUnlock()

	if err := o.importPublicKeys(mine); err != nil {
		return err
	}
	return s.importPublicKeys(theirs)
}

func (s *FileCertStore) importPublicKeys(keys map[types.NodeID]ed25519.PublicKey) error {
	if err := os.MkdirAll(s.publicDir, 0o755); err != nil {
		return errors.Wrap(err, "p2pmq/certstore: create public dir")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pub := range keys {
		if _, ok := s.public[id]; ok {
			continue
		}
		if err := os.WriteFile(s.certFile(id, true), encodeKey(pub), 0o644); err != nil {
			return errors.Wrapf(err, "p2pmq/certstore: import public key for %s", id)
		}
		s.public[id] = pub
	}
	return nil
}

func (s *FileCertStore) certFile(id types.NodeID, public bool) string {
	dir := s.privateDir
	ext := "key_secret"
	if public {
		dir = s.publicDir
		ext = "key"
	}
	return filepath.Join(dir, string(id)+"."+ext)
}

func encodeKey(k []byte) []byte {
	return []byte(hex.EncodeToString(k))
}

func decodeKey(raw []byte) ([]byte, error) {
	return hex.DecodeString(string(raw))
}

var _ types.CertStore = (*FileCertStore)(nil)
