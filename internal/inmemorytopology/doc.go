// Package inmemorytopology provides a thread-safe, in-memory implementation
// of the topologystore.Store interface. It is designed for corpora whose
// mechanism set fits comfortably in memory, which is every corpus the engine
// currently loads.
package inmemorytopology
