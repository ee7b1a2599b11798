package testutil

import (
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Node returns a valid active node at the individual scale with an index
// unit.
func Node(id string) *model.Node {
	return &model.Node{
		ID:      nodeid.ID(id),
		Name:    id,
		Scales:  model.ScaleSet{model.ScaleIndividual},
		Domains: []string{"health"},
		Type:    model.TypeStock,
		Unit:    "index score",
		Source:  "test",
	}
}

// Link returns a single-edge mechanism spec with a derived id.
func Link(src, tgt string, k float64) *model.MechanismSpec {
	return &model.MechanismSpec{
		Sources:      []string{src},
		Targets:      []string{tgt},
		Pathway:      "test",
		Strength:     k,
		EvidenceTier: 2,
	}
}
