package nodeid

import (
	"fmt"
	"regexp"
	"strings"
)

var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// isValidSegmentName rejects names that match the pattern but read as noise.
func isValidSegmentName(name string) bool {
	return name != "-" && name != "_"
}

// Parse validates rawID and returns it as an ID.
func Parse(rawID string) (ID, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return "", fmt.Errorf("identifier cannot be empty")
	}

	for _, segment := range strings.Split(rawID, ".") {
		if segment == "" {
			return "", fmt.Errorf("identifier %q contains empty segment", rawID)
		}
		if !segmentRegex.MatchString(segment) {
			return "", fmt.Errorf("invalid identifier segment %q in %q", segment, rawID)
		}
		if !isValidSegmentName(segment) {
			return "", fmt.Errorf("invalid segment name %q in %q", segment, rawID)
		}
	}

	return ID(rawID), nil
}

// Valid reports whether rawID parses.
func Valid(rawID string) bool {
	_, err := Parse(rawID)
	return err == nil
}
