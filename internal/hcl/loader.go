package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/causalgrid/internal/config"
	"github.com/specialistvlad/causalgrid/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL record loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Extensions implements config.Loader.
func (l *Loader) Extensions() []string {
	return []string{".hcl"}
}

// LoadFile parses one HCL file. All diagnostics for the file are collected
// and returned together.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing HCL record file.", "file", path)

	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return l.decode(ctx, file.Body)
}

// LoadBytes parses in-memory HCL, used by tests and by the HTTP API.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) (*config.Model, error) {
	file, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL %s: %w", filename, diags)
	}
	return l.decode(ctx, file.Body)
}

func (l *Loader) decode(ctx context.Context, body hcl.Body) (*config.Model, error) {
	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL records: %w", diags)
	}

	out := config.NewModel()
	for _, block := range content.Blocks.OfType("node") {
		var nb nodeBlock
		if d := gohcl.DecodeBody(block.Body, nil, &nb); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		n, d := translateNode(block, &nb)
		diags = append(diags, d...)
		if n != nil {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, block := range content.Blocks.OfType("mechanism") {
		var mb mechanismBlock
		if d := gohcl.DecodeBody(block.Body, nil, &mb); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		spec, d := translateMechanism(block, &mb)
		diags = append(diags, d...)
		if spec != nil {
			out.Mechanisms = append(out.Mechanisms, spec)
		}
	}
	for _, block := range content.Blocks.OfType("consolidation") {
		var cb consolidationBlock
		if d := gohcl.DecodeBody(block.Body, nil, &cb); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		out.Consolidations = append(out.Consolidations, translateConsolidation(block, &cb))
	}
	for _, block := range content.Blocks.OfType("intervention") {
		var ib interventionBlock
		if d := gohcl.DecodeBody(block.Body, nil, &ib); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		iv := translateIntervention(block, &ib)
		if _, dup := out.Interventions[iv.Name]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate intervention",
				Detail:   fmt.Sprintf("An intervention named '%s' has already been defined.", iv.Name),
				Subject:  &block.DefRange,
			})
			continue
		}
		out.Interventions[iv.Name] = iv
	}

	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL records: %w", diags)
	}
	ctxlog.FromContext(ctx).Debug("HCL records decoded.", "nodes", len(out.Nodes), "mechanisms", len(out.Mechanisms))
	return out, nil
}

var _ config.Loader = (*Loader)(nil)
