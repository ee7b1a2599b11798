package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/stretchr/testify/assert"
)

func TestRecordFinding(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		id        string
		err       error
		code      Code
		nodes     []nodeid.ID
		mechanism nodeid.ID
	}{
		{
			name:      "dangling target",
			kind:      "mechanism",
			id:        "a__ghost",
			err:       &model.ReferentialIntegrityError{MechanismID: "a__ghost", NodeID: "ghost", Endpoint: "target", Cause: model.ErrUnknownNode},
			code:      CodeDanglingEdge,
			nodes:     []nodeid.ID{"ghost"},
			mechanism: "a__ghost",
		},
		{
			name:  "duplicate node",
			kind:  "node",
			id:    "a",
			err:   &model.DuplicateNodeIDError{ID: "a", Status: model.StatusActive},
			code:  CodeDuplicateNode,
			nodes: []nodeid.ID{"a"},
		},
		{
			name:  "alias cycle",
			kind:  "consolidation",
			id:    "loop",
			err:   &model.ConsistencyError{Chain: []nodeid.ID{"a", "b", "a"}},
			code:  CodeAliasCycle,
			nodes: []nodeid.ID{"a", "b", "a"},
		},
		{
			name:  "schema",
			kind:  "node",
			id:    "bad",
			err:   &model.SchemaValidationError{Kind: "node", ID: "bad", Field: "unit", Reason: "required"},
			code:  CodeSchema,
			nodes: []nodeid.ID{"bad"},
		},
		{
			name:      "duplicate mechanism",
			kind:      "mechanism",
			id:        "m1",
			err:       fmt.Errorf("%w: id %q already stored", model.ErrDuplicateMechanism, "m1"),
			code:      CodeDuplicateMechanism,
			mechanism: "m1",
		},
		{
			name:      "anything else",
			kind:      "mechanism",
			id:        "m2",
			err:       errors.New("disk on fire"),
			code:      CodeInvalidRecord,
			mechanism: "m2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := RecordFinding(tt.kind, tt.id, tt.err)
			assert.Equal(t, SeverityError, f.Severity)
			assert.Equal(t, tt.code, f.Code)
			assert.Equal(t, tt.nodes, f.Nodes)
			assert.Equal(t, tt.mechanism, f.MechanismID)
			assert.Same(t, tt.err, f.Err)
			assert.Contains(t, f.Message, tt.id)
		})
	}
}
