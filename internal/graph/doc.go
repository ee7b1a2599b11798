// Package graph provides the unified facade over the causal graph: the node
// registry, the lineage tracker and the mechanism store.
//
// # Why Graph Package Exists
//
// The Graph interface combines three stores that must change together. A
// merge tombstones nodes in the registry, records successors in the tracker
// and changes how every mechanism touching those nodes resolves. Callers go
// through one write path instead of coordinating the stores themselves.
//
// # Concurrency
//
// Writes are serialised by the Manager (single writer). Each write runs
// against private clones of the stores, inside a Tx. When the write and any
// caller supplied checks succeed, the version journal is flushed to the
// nodestore.Store and a new immutable *Snapshot is published atomically.
// Readers take the current Snapshot and never lock; a simulation keeps the
// snapshot it started with even if a write lands meanwhile. A failed write
// publishes nothing, which is what makes bulk loads all-or-nothing.
//
// # Resolved edges
//
// Mechanisms are stored with their endpoints as declared. Every Snapshot
// resolves them through the tracker into Edges. Mechanisms that coincide
// after resolution (same resolved source, target and pathway) collapse into
// one Edge, so merging nodes never introduces duplicate edges. Mechanisms
// whose endpoints no longer resolve are kept aside as Unresolved for
// validation to report.
package graph
