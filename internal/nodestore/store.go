// Package nodestore defines the interface for the append-only history of
// node versions and audit entries.
//
// The live graph keeps only the current record of each node. Every mutation
// also produces a version record and an audit entry that are flushed here
// when the write commits, so prior versions stay readable after the live
// record moves on. Nothing is ever removed from a Store.
//
// Implementations:
//   - internal/inmemorystore: process-local, used by default and in tests.
//   - internal/badgerstore: persistent, backed by BadgerDB.
package nodestore

import (
	"context"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Store is the append-only history of node versions and audit entries.
//
// Implementations MUST be safe for concurrent use: the single graph writer
// appends while HTTP handlers and CLI commands read.
type Store interface {
	// PutVersion appends a copy of n to the node's history. A record whose
	// content fingerprint equals the latest stored version is not appended
	// again, so re-ingesting an unchanged corpus leaves history untouched.
	// It reports whether a record was appended.
	PutVersion(ctx context.Context, n *model.Node) (bool, error)

	// Versions returns every stored version of id, oldest first. An id with
	// no history yields an empty slice.
	Versions(ctx context.Context, id nodeid.ID) ([]*model.Node, error)

	// Latest returns the newest stored version of id.
	Latest(ctx context.Context, id nodeid.ID) (*model.Node, bool, error)

	// AppendAudit stores the entries in order, assigning increasing Seq
	// values, and returns them as stored.
	AppendAudit(ctx context.Context, entries ...model.AuditEntry) ([]model.AuditEntry, error)

	// Audit returns the whole audit trail in Seq order.
	Audit(ctx context.Context) ([]model.AuditEntry, error)

	// Close releases resources held by the store.
	Close() error
}
