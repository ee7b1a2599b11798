package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileSchema lists the top-level blocks a record file may contain.
var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "node", LabelNames: []string{"id"}},
		{Type: "mechanism", LabelNames: []string{"id"}},
		{Type: "consolidation", LabelNames: []string{"name"}},
		{Type: "intervention", LabelNames: []string{"name"}},
	},
}

type baselineBlock struct {
	Point       *float64           `hcl:"point,optional"`
	Range       []float64          `hcl:"range,optional"`
	Year        *int               `hcl:"year,optional"`
	Disparities map[string]float64 `hcl:"disparities,optional"`
}

type nodeBlock struct {
	Name        string         `hcl:"name,optional"`
	Scale       hcl.Expression `hcl:"scale,optional"`
	Domains     []string       `hcl:"domains,optional"`
	Type        string         `hcl:"type,optional"`
	Unit        string         `hcl:"unit,optional"`
	Description string         `hcl:"description,optional"`
	Source      string         `hcl:"source,optional"`
	Baseline    *baselineBlock `hcl:"baseline,block"`
}

type mechanismBlock struct {
	Source       *string   `hcl:"source,optional"`
	Sources      []string  `hcl:"sources,optional"`
	Target       *string   `hcl:"target,optional"`
	Targets      []string  `hcl:"targets,optional"`
	Pathway      string    `hcl:"pathway,optional"`
	Direction    string    `hcl:"direction,optional"`
	Strength     float64   `hcl:"strength"`
	CI           []float64 `hcl:"ci,optional"`
	EvidenceTier int       `hcl:"evidence_tier"`
	Transform    string    `hcl:"transform,optional"`
	Status       string    `hcl:"status,optional"`
}

type consolidationBlock struct {
	Action  string             `hcl:"action"`
	From    []string           `hcl:"from"`
	Into    string             `hcl:"into,optional"`
	Reason  string             `hcl:"reason,optional"`
	Weights map[string]float64 `hcl:"weights,optional"`
}

type deltaBlock struct {
	Node  string  `hcl:"node,label"`
	Value float64 `hcl:"value"`
	Unit  string  `hcl:"unit,optional"`
}

type interventionBlock struct {
	Description string            `hcl:"description,optional"`
	Metadata    map[string]string `hcl:"metadata,optional"`
	Deltas      []*deltaBlock     `hcl:"delta,block"`
}
