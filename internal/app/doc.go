// Package app wires the causal graph engine to its surroundings: logging,
// telemetry, the history store, corpus loading and reloading, and the HTTP
// API. It is decoupled from any specific entrypoint like a CLI.
package app
