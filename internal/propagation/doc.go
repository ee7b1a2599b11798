// Package propagation computes how an intervention spreads through the
// causal graph.
//
// The graph contains feedback loops, so effects cannot be computed by a
// single traversal. Simulate relaxes the linear system
//
//	value = delta + W·value
//
// where W holds the signed coefficient of every resolved edge, using a
// damped Jacobi iteration
//
//	next = (1-γ)·value + γ·(delta + W·value)
//
// The damping only changes the route to the fixed point, not the fixed
// point itself. Before relaxing, the graph is split into strongly connected
// components. A feedback loop whose gain (the Perron root of its absolute
// coefficient matrix) is at least 1 cannot settle; its nodes and everything
// downstream of them are reported as diverged instead of being given a
// finite but wrong value. The rest of the run is unaffected.
//
// Every run is bounded by an iteration cap and a wall clock timeout. When
// the timeout fires the partial result is returned with per-node status.
package propagation
