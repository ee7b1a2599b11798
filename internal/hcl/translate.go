package hcl

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/causalgrid/internal/config"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

func origin(block *hcl.Block) string {
	return config.Origin(block.DefRange.Filename, block.DefRange.Start.Line)
}

func diag(block *hcl.Block, summary, detail string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  &block.DefRange,
	}
}

// decodeScales accepts `scale = 3` or `scale = [2, 3]`.
func decodeScales(expr hcl.Expression) (model.ScaleSet, hcl.Diagnostics) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() || val.IsNull() {
		return nil, diags
	}
	rng := expr.Range()
	invalid := func(detail string) hcl.Diagnostics {
		return hcl.Diagnostics{{Severity: hcl.DiagError, Summary: "Invalid scale", Detail: detail, Subject: &rng}}
	}

	if val.Type() == cty.Number {
		var s int
		if err := gocty.FromCtyValue(val, &s); err != nil {
			return nil, invalid(err.Error())
		}
		return model.NewScaleSet(model.Scale(s)), nil
	}
	listVal, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return nil, invalid("scale must be a number or a list of numbers")
	}
	var raw []int
	if err := gocty.FromCtyValue(listVal, &raw); err != nil {
		return nil, invalid(err.Error())
	}
	scales := make([]model.Scale, len(raw))
	for i, s := range raw {
		scales[i] = model.Scale(s)
	}
	return model.NewScaleSet(scales...), nil
}

func translateNode(block *hcl.Block, nb *nodeBlock) (*model.Node, hcl.Diagnostics) {
	scales, diags := decodeScales(nb.Scale)
	if diags.HasErrors() {
		return nil, diags
	}
	n := &model.Node{
		ID:          nodeid.ID(block.Labels[0]),
		Name:        nb.Name,
		Scales:      scales,
		Domains:     nb.Domains,
		Type:        model.NodeType(config.NormalizeKey(nb.Type)),
		Unit:        strings.TrimSpace(nb.Unit),
		Description: nb.Description,
		Source:      nb.Source,
		Origin:      origin(block),
	}
	if b := nb.Baseline; b != nil {
		n.Baseline = &model.Baseline{Point: b.Point, Disparities: b.Disparities}
		if b.Year != nil {
			n.Baseline.Year = *b.Year
		}
		if len(b.Range) > 0 {
			if len(b.Range) != 2 {
				return nil, hcl.Diagnostics{diag(block, "Invalid baseline range", "range must be [low, high]")}
			}
			n.Baseline.Range = &model.Range{Low: b.Range[0], High: b.Range[1]}
		}
	}
	return n, nil
}

func endpoints(single *string, many []string) []string {
	out := make([]string, 0, len(many)+1)
	if single != nil && *single != "" {
		out = append(out, *single)
	}
	return append(out, many...)
}

func translateMechanism(block *hcl.Block, mb *mechanismBlock) (*model.MechanismSpec, hcl.Diagnostics) {
	spec := &model.MechanismSpec{
		ID:           block.Labels[0],
		Sources:      endpoints(mb.Source, mb.Sources),
		Targets:      endpoints(mb.Target, mb.Targets),
		Pathway:      mb.Pathway,
		Direction:    mb.Direction,
		Strength:     mb.Strength,
		EvidenceTier: mb.EvidenceTier,
		Transform:    mb.Transform,
		Status:       mb.Status,
		Origin:       origin(block),
	}
	if len(mb.CI) > 0 {
		if len(mb.CI) != 2 {
			return nil, hcl.Diagnostics{diag(block, "Invalid confidence interval", fmt.Sprintf("ci must be [low, high], got %d values", len(mb.CI)))}
		}
		lo, hi := mb.CI[0], mb.CI[1]
		spec.Low, spec.High = &lo, &hi
	}
	return spec, nil
}

func translateConsolidation(block *hcl.Block, cb *consolidationBlock) *model.Consolidation {
	c := &model.Consolidation{
		Name:   block.Labels[0],
		Action: model.ConsolidationAction(config.NormalizeKey(cb.Action)),
		Into:   nodeid.ID(cb.Into),
		Reason: cb.Reason,
		Origin: origin(block),
	}
	for _, id := range cb.From {
		c.From = append(c.From, nodeid.ID(id))
	}
	if len(cb.Weights) > 0 {
		c.Weights = make(map[nodeid.ID]float64, len(cb.Weights))
		for id, w := range cb.Weights {
			c.Weights[nodeid.ID(id)] = w
		}
	}
	return c
}

func translateIntervention(block *hcl.Block, ib *interventionBlock) *model.Intervention {
	iv := &model.Intervention{
		Name:        block.Labels[0],
		Description: ib.Description,
		Metadata:    ib.Metadata,
	}
	for _, d := range ib.Deltas {
		iv.Perturbations = append(iv.Perturbations, model.Perturbation{
			NodeID: nodeid.ID(d.Node),
			Delta:  d.Value,
			Unit:   d.Unit,
		})
	}
	return iv
}
