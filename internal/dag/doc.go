// Package dag holds the structural graph algorithms the causal graph needs:
// cycle detection, strongly connected components, condensation into a DAG
// of components and forward reachability.
//
// Feedback loops are legal in a causal graph, so this package does not forbid
// cycles. It finds them, so that propagation can reason about feedback
// loops one component at a time and validation can report them.
package dag
