package validation

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// RecordFinding classifies an error raised while applying one ingested
// record. kind is "node", "mechanism" or "consolidation" and id names the
// record.
func RecordFinding(kind, id string, err error) Finding {
	f := Finding{
		Severity: SeverityError,
		Code:     CodeInvalidRecord,
		Message:  fmt.Sprintf("%s %q: %v", kind, id, err),
		Err:      err,
	}
	if kind == "mechanism" {
		f.MechanismID = nodeid.ID(id)
	} else if kind == "node" {
		f.Nodes = []nodeid.ID{nodeid.ID(id)}
	}

	var (
		schema *model.SchemaValidationError
		dup    *model.DuplicateNodeIDError
		ref    *model.ReferentialIntegrityError
		cycle  *model.ConsistencyError
	)
	switch {
	case errors.As(err, &ref):
		f.Code = CodeDanglingEdge
		f.MechanismID = ref.MechanismID
		f.Nodes = []nodeid.ID{ref.NodeID}
	case errors.As(err, &dup):
		f.Code = CodeDuplicateNode
		f.Nodes = []nodeid.ID{dup.ID}
	case errors.As(err, &cycle):
		f.Code = CodeAliasCycle
		f.Nodes = cycle.Chain
	case errors.As(err, &schema):
		f.Code = CodeSchema
	case errors.Is(err, model.ErrDuplicateMechanism):
		f.Code = CodeDuplicateMechanism
	}
	return f
}
