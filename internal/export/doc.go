// Package export turns a graph snapshot into a self-describing, versioned
// Document and ships it to sinks: a JSON or YAML file, a Neo4j database, or
// a Socket.IO dashboard. Documents carry a checksum over their content and
// can be restored into a write transaction.
package export
