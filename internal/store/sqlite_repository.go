// Package store implements types.PeerRepository over sqlite, grounded
// directly on original_source/p2p0mq/peer_store.py's two-table schema
// and bootstrap logic, using the pure-Go modernc.org/sqlite driver so
// the module never needs cgo.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

const (
	peersTable = "p2p0mq_peers"
	metaTable  = "p2p0mq_meta"
)

// SQLitePeerRepository is the sqlite-backed types.PeerRepository.
type SQLitePeerRepository struct {
	db      *sql.DB
	localID types.NodeID
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures both tables exist, bootstrapping a fresh local identity the
// first time the meta table is created.
func Open(path string) (*SQLitePeerRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "p2pmq/store: open database")
	}

	r := &SQLitePeerRepository{db: db}
	if err := r.ensurePeersTable(); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.ensureMetaTable(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLitePeerRepository) tableExists(name string) (bool, error) {
	row := r.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name)
	var found string
	switch err := row.Scan(&found); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

func (r *SQLitePeerRepository) ensurePeersTable() error {
	exists, err := r.tableExists(peersTable)
	if err != nil {
		return errors.Wrap(err, "p2pmq/store: checking peers table")
	}
	if exists {
		return nil
	}
	_, err = r.db.Exec(`CREATE TABLE ` + peersTable + ` (
		peer_id INTEGER PRIMARY KEY,
		uuid TEXT,
		host TEXT,
		port INTEGER
	)`)
	return errors.Wrap(err, "p2pmq/store: creating peers table")
}

func (r *SQLitePeerRepository) ensureMetaTable() error {
	exists, err := r.tableExists(metaTable)
	if err != nil {
		return errors.Wrap(err, "p2pmq/store: checking meta table")
	}
	if exists {
		return nil
	}

	_, err = r.db.Exec(`CREATE TABLE ` + metaTable + ` (
		id INTEGER PRIMARY KEY,
		key TEXT UNIQUE,
		value TEXT,
		description TEXT
	)`)
	if err != nil {
		return errors.Wrap(err, "p2pmq/store: creating meta table")
	}

	u := uuid.New()
	localID := hex.EncodeToString(u[:])
	created := time.Now().Unix()
	_, err = r.db.Exec(
		`INSERT INTO `+metaTable+`(key, value, description) VALUES (?, ?, ?), (?, ?, ?)`,
		"uuid", localID, "the unique identification of this instance",
		"db_created", created, "the time when the metadata was inserted",
	)
	return errors.Wrap(err, "p2pmq/store: bootstrapping metadata")
}

// LocalIdentity returns the bootstrapped local node id, reading it
// from the meta table on first use and caching it afterwards.
func (r *SQLitePeerRepository) LocalIdentity(ctx context.Context) (types.NodeID, error) {
	if !r.localID.Empty() {
		return r.localID, nil
	}

	row := r.db.QueryRowContext(ctx, `SELECT value FROM `+metaTable+` WHERE key = 'uuid'`)
	var raw string
	if err := row.Scan(&raw); err != nil {
		return "", errors.Wrap(err, "p2pmq/store: reading local identity")
	}

	id, err := types.NewNodeID([]byte(raw))
	if err != nil {
		return "", errors.Wrap(err, "p2pmq/store: malformed stored identity")
	}
	r.localID = id
	return id, nil
}

// LoadAll returns every peer row as a fresh types.Peer in its Initial
// state; only identity round-trips through storage.
func (r *SQLitePeerRepository) LoadAll(ctx context.Context) ([]*types.Peer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT peer_id, uuid, host, port FROM `+peersTable)
	if err != nil {
		return nil, errors.Wrap(err, "p2pmq/store: loading peers")
	}
	defer rows.Close()

	var out []*types.Peer
	for rows.Next() {
		var dbID int64
		var rawID string
		var host sql.NullString
		var port sql.NullInt64
		if err := rows.Scan(&dbID, &rawID, &host, &port); err != nil {
			return nil, errors.Wrap(err, "p2pmq/store: scanning peer row")
		}

		id, err := types.NewNodeID([]byte(rawID))
		if err != nil {
			continue
		}

		var hostPtr *string
		if host.Valid {
			h := host.String
			hostPtr = &h
		}
		var portPtr *int
		if port.Valid {
			p := int(port.Int64)
			portPtr = &p
		}

		p := types.NewPeer(id, hostPtr, portPtr)
		dbIDCopy := dbID
		p.DBID = &dbIDCopy
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert persists a peer that exists only in memory. Peers that
// already carry a DBID are left untouched (spec.md §6).
func (r *SQLitePeerRepository) Upsert(ctx context.Context, p *types.Peer) error {
	if p.DBID != nil {
		return nil
	}

	var host interface{}
	if p.Host != nil {
		host = *p.Host
	}
	var port interface{}
	if p.Port != nil {
		port = *p.Port
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO `+peersTable+`(uuid, host, port) VALUES (?, ?, ?)`,
		string(p.ID), host, port)
	if err != nil {
		return errors.Wrap(err, "p2pmq/store: inserting peer")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "p2pmq/store: reading inserted peer id")
	}
	p.DBID = &id
	return nil
}

// Close releases the underlying database handle.
func (r *SQLitePeerRepository) Close() error { return r.db.Close() }

var _ types.PeerRepository = (*SQLitePeerRepository)(nil)
