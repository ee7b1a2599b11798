// Package lineage tracks retired node ids and resolves them to their
// canonical survivors.
//
// Deprecation and merging never delete a node. They turn it into a
// tombstone that may point at a successor, so that mechanisms written
// against the old id still resolve. Resolution follows the chain of
// successors until it reaches an active node; a chain that loops back on
// itself is a corpus bug and is reported as a *model.ConsistencyError.
//
// Merges may carry component weights. A retired component keeps its weight
// so that questions about it can be answered as "component of composite X
// at weight w" instead of a plain redirect.
package lineage
