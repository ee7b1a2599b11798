// Package validation runs whole-graph consistency checks over an immutable
// graph.Snapshot.
//
// Findings are split into errors, which block a snapshot from being
// published by a bulk load, and warnings, which are informational. Run is a
// pure function of its snapshot: the same snapshot always yields the same
// report, byte for byte once encoded. Checks run concurrently and stop early
// when the context is cancelled.
package validation
