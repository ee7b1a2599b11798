// Package hcl provides the HCL implementation of config.Loader. It parses
// `node`, `mechanism`, `consolidation` and `intervention` blocks into the
// format-agnostic records of the model package and keeps each record's
// file:line origin for error messages.
package hcl
