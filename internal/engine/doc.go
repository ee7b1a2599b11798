// Package engine is the operations facade of the application. It loads
// ingested records into the graph as one all-or-nothing write, validates
// every candidate snapshot before it is published, and routes simulation,
// query and export calls to the snapshot that is current when they start.
package engine
