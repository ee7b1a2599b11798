// Package yamlcfg provides the YAML implementation of config.Loader. The
// document shape mirrors the HCL blocks: top-level `nodes`, `mechanisms`,
// `consolidations` and `interventions` lists.
package yamlcfg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/specialistvlad/causalgrid/internal/config"
	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"gopkg.in/yaml.v3"
)

// scaleField accepts a single scale or a list of scales.
type scaleField []int

func (s *scaleField) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var one int
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = scaleField{one}
		return nil
	case yaml.SequenceNode:
		var many []int
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	}
	return fmt.Errorf("line %d: scale must be a number or a list of numbers", value.Line)
}

type baselineDoc struct {
	Point       *float64           `yaml:"point"`
	Range       []float64          `yaml:"range"`
	Year        int                `yaml:"year"`
	Disparities map[string]float64 `yaml:"disparities"`
}

type nodeDoc struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Scale       scaleField   `yaml:"scale"`
	Domains     []string     `yaml:"domains"`
	Type        string       `yaml:"type"`
	Unit        string       `yaml:"unit"`
	Description string       `yaml:"description"`
	Source      string       `yaml:"source"`
	Baseline    *baselineDoc `yaml:"baseline"`
}

type mechanismDoc struct {
	ID           string    `yaml:"id"`
	Source       string    `yaml:"source"`
	Sources      []string  `yaml:"sources"`
	Target       string    `yaml:"target"`
	Targets      []string  `yaml:"targets"`
	Pathway      string    `yaml:"pathway"`
	Direction    string    `yaml:"direction"`
	Strength     *float64  `yaml:"strength"`
	CI           []float64 `yaml:"ci"`
	EvidenceTier int       `yaml:"evidence_tier"`
	Transform    string    `yaml:"transform"`
	Status       string    `yaml:"status"`
}

type consolidationDoc struct {
	Name    string             `yaml:"name"`
	Action  string             `yaml:"action"`
	From    []string           `yaml:"from"`
	Into    string             `yaml:"into"`
	Reason  string             `yaml:"reason"`
	Weights map[string]float64 `yaml:"weights"`
}

type deltaDoc struct {
	Node  string  `yaml:"node"`
	Value float64 `yaml:"value"`
	Unit  string  `yaml:"unit"`
}

type interventionDoc struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Metadata    map[string]string `yaml:"metadata"`
	Deltas      []deltaDoc        `yaml:"deltas"`
}

// document keeps each list as raw nodes so that line numbers survive.
type document struct {
	Nodes          []yaml.Node `yaml:"nodes"`
	Mechanisms     []yaml.Node `yaml:"mechanisms"`
	Consolidations []yaml.Node `yaml:"consolidations"`
	Interventions  []yaml.Node `yaml:"interventions"`
}

// Loader is the YAML-specific implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML record loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string {
	return []string{".yaml", ".yml"}
}

// LoadFile parses one YAML file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.Model, error) {
	ctxlog.FromContext(ctx).Debug("Parsing YAML record file.", "file", path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return l.LoadBytes(ctx, raw, path)
}

// LoadBytes parses in-memory YAML. Multiple documents in one stream are merged.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	out := config.NewModel()
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	for {
		var doc document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML %s: %w", filename, err)
		}
		part, err := translate(&doc, filename)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	return out, nil
}

// decodeItem decodes one list entry strictly. yaml.Node.Decode does not
// honour KnownFields, so the entry is re-encoded through a strict decoder.
func decodeItem(item *yaml.Node, target any, filename, kind string) error {
	raw, err := yaml.Marshal(item)
	if err == nil {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(target)
	}
	if err != nil {
		return fmt.Errorf("%s: %s at line %d: %w", filename, kind, item.Line, err)
	}
	return nil
}

func translate(doc *document, filename string) (*config.Model, error) {
	out := config.NewModel()

	for i := range doc.Nodes {
		item := &doc.Nodes[i]
		var nd nodeDoc
		if err := decodeItem(item, &nd, filename, "node"); err != nil {
			return nil, err
		}
		scales := make([]model.Scale, len(nd.Scale))
		for j, s := range nd.Scale {
			scales[j] = model.Scale(s)
		}
		n := &model.Node{
			ID:          nodeid.ID(nd.ID),
			Name:        nd.Name,
			Scales:      model.NewScaleSet(scales...),
			Domains:     nd.Domains,
			Type:        model.NodeType(config.NormalizeKey(nd.Type)),
			Unit:        strings.TrimSpace(nd.Unit),
			Description: nd.Description,
			Source:      nd.Source,
			Origin:      config.Origin(filename, item.Line),
		}
		if b := nd.Baseline; b != nil {
			n.Baseline = &model.Baseline{Point: b.Point, Year: b.Year, Disparities: b.Disparities}
			if len(b.Range) > 0 {
				if len(b.Range) != 2 {
					return nil, fmt.Errorf("%s: node %q at line %d: baseline range must be [low, high]", filename, nd.ID, item.Line)
				}
				n.Baseline.Range = &model.Range{Low: b.Range[0], High: b.Range[1]}
			}
		}
		out.Nodes = append(out.Nodes, n)
	}

	for i := range doc.Mechanisms {
		item := &doc.Mechanisms[i]
		var md mechanismDoc
		if err := decodeItem(item, &md, filename, "mechanism"); err != nil {
			return nil, err
		}
		if md.Strength == nil {
			return nil, fmt.Errorf("%s: mechanism at line %d: strength is required", filename, item.Line)
		}
		spec := &model.MechanismSpec{
			ID:           md.ID,
			Sources:      md.Sources,
			Targets:      md.Targets,
			Pathway:      md.Pathway,
			Direction:    md.Direction,
			Strength:     *md.Strength,
			EvidenceTier: md.EvidenceTier,
			Transform:    md.Transform,
			Status:       md.Status,
			Origin:       config.Origin(filename, item.Line),
		}
		if md.Source != "" {
			spec.Sources = append([]string{md.Source}, spec.Sources...)
		}
		if md.Target != "" {
			spec.Targets = append([]string{md.Target}, spec.Targets...)
		}
		if len(md.CI) > 0 {
			if len(md.CI) != 2 {
				return nil, fmt.Errorf("%s: mechanism at line %d: ci must be [low, high]", filename, item.Line)
			}
			lo, hi := md.CI[0], md.CI[1]
			spec.Low, spec.High = &lo, &hi
		}
		out.Mechanisms = append(out.Mechanisms, spec)
	}

	for i := range doc.Consolidations {
		item := &doc.Consolidations[i]
		var cd consolidationDoc
		if err := decodeItem(item, &cd, filename, "consolidation"); err != nil {
			return nil, err
		}
		c := &model.Consolidation{
			Name:   cd.Name,
			Action: model.ConsolidationAction(config.NormalizeKey(cd.Action)),
			Into:   nodeid.ID(cd.Into),
			Reason: cd.Reason,
			Origin: config.Origin(filename, item.Line),
		}
		for _, id := range cd.From {
			c.From = append(c.From, nodeid.ID(id))
		}
		if len(cd.Weights) > 0 {
			c.Weights = make(map[nodeid.ID]float64, len(cd.Weights))
			for id, w := range cd.Weights {
				c.Weights[nodeid.ID(id)] = w
			}
		}
		out.Consolidations = append(out.Consolidations, c)
	}

	for i := range doc.Interventions {
		item := &doc.Interventions[i]
		var id interventionDoc
		if err := decodeItem(item, &id, filename, "intervention"); err != nil {
			return nil, err
		}
		if id.Name == "" {
			return nil, fmt.Errorf("%s: intervention at line %d: name is required", filename, item.Line)
		}
		iv := &model.Intervention{Name: id.Name, Description: id.Description, Metadata: id.Metadata}
		for _, d := range id.Deltas {
			iv.Perturbations = append(iv.Perturbations, model.Perturbation{NodeID: nodeid.ID(d.Node), Delta: d.Value, Unit: d.Unit})
		}
		if _, dup := out.Interventions[iv.Name]; dup {
			return nil, fmt.Errorf("%s: intervention %q declared more than once", filename, iv.Name)
		}
		out.Interventions[iv.Name] = iv
	}

	return out, nil
}

var _ config.Loader = (*Loader)(nil)
