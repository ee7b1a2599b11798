package export

import (
	"fmt"

	"github.com/specialistvlad/causalgrid/internal/graph"
)

// Restore verifies doc and installs its records into tx: nodes first, then
// tombstones, then mechanisms. The caller decides whether the transaction
// commits.
func Restore(tx *graph.Tx, doc *Document) error {
	if err := doc.Verify(); err != nil {
		return err
	}
	for _, n := range doc.Nodes {
		if err := tx.RestoreNode(n); err != nil {
			return fmt.Errorf("restoring node %q: %w", n.ID, err)
		}
	}
	for _, ts := range doc.Tombstones {
		if err := tx.RestoreTombstone(ts); err != nil {
			return fmt.Errorf("restoring tombstone %q: %w", ts.ID, err)
		}
	}
	for _, m := range doc.Mechanisms {
		if err := tx.RestoreMechanism(m); err != nil {
			return fmt.Errorf("restoring mechanism %q: %w", m.ID, err)
		}
	}
	return nil
}
