// Package badgerstore implements nodestore.Store on top of BadgerDB so that
// node version history and the audit trail survive restarts.
//
// Layout:
//
//	node/<id>/<seq %010d>  JSON-encoded model.Node, one per stored version
//	audit/<seq %020d>      JSON-encoded model.AuditEntry
//
// Audit sequence numbers come from a Badger sequence, so they stay monotonic
// across process restarts.
package badgerstore
