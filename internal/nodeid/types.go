package nodeid

import "strings"

// ID is a validated node or mechanism identifier.
type ID string

// String returns the canonical form.
func (id ID) String() string {
	return string(id)
}

// Join builds an identifier from segments without validating them.
func Join(segments ...string) ID {
	return ID(strings.Join(segments, "."))
}
