// Package query answers read-only questions about a graph snapshot:
// reachability in either direction, the strongest causal path between two
// nodes, bounded path enumeration, and chains that cross from one scale to
// another.
//
// Every query resolves tombstoned ids first and fails with
// model.ErrUnknownNode for ids the snapshot has never seen. Bounds are set
// with functional options and clamped to safe maxima; a result whose
// enumeration was cut short by a bound carries Truncated.
package query
