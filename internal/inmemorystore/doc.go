// Package inmemorystore provides a thread-safe, in-memory implementation of
// the nodestore.Store interface. History lives for the lifetime of the
// process; use internal/badgerstore when it must survive restarts.
package inmemorystore
