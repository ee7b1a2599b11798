// Package registry is the canonical store of node records and their
// lifecycle state.
//
// The Registry validates records before accepting them, hands out ids
// exactly once (tombstoned ids are never reissued) and never overwrites a
// record in place: every mutation stores a fresh *model.Node and queues a
// version record plus an audit entry in its journal. The graph manager
// drains the journal into a nodestore.Store when a write commits.
//
// A Registry is not safe for concurrent mutation. The graph manager clones
// it per write and publishes the clone only when the write succeeds.
package registry
