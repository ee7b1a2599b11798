package validation

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Severity separates blocking findings from informational ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies the check that produced a finding.
type Code string

const (
	CodeSchema             Code = "schema"
	CodeDanglingEdge       Code = "dangling_edge"
	CodeAliasCycle         Code = "alias_cycle"
	CodeOrphanMechanism    Code = "orphan_mechanism"
	CodeDuplicateMechanism Code = "duplicate_mechanism"
	CodeDuplicateNode      Code = "duplicate_node"
	CodeInvalidRecord      Code = "invalid_record"

	CodeUnitMismatch     Code = "unit_mismatch"
	CodeSelfLoop         Code = "self_loop"
	CodeUnknownType      Code = "unknown_type"
	CodeUnknownDomain    Code = "unknown_domain"
	CodeMissingBaseline  Code = "missing_baseline"
	CodeCompositeWeights Code = "composite_weights"
	CodeCollapsedEdge    Code = "collapsed_edge"
	CodeFeedbackLoop     Code = "feedback_loop"
	CodeIsolatedNode     Code = "isolated_node"
)

// Finding is a single check result. Err holds the typed error behind the
// finding, when there is one.
type Finding struct {
	Severity    Severity    `json:"severity" yaml:"severity"`
	Code        Code        `json:"code" yaml:"code"`
	Nodes       []nodeid.ID `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	MechanismID nodeid.ID   `json:"mechanism,omitempty" yaml:"mechanism,omitempty"`
	Message     string      `json:"message" yaml:"message"`
	Err         error       `json:"-" yaml:"-"`
}

func (f Finding) String() string {
	var where []string
	if f.MechanismID != "" {
		where = append(where, "mechanism="+string(f.MechanismID))
	}
	if len(f.Nodes) > 0 {
		ids := make([]string, len(f.Nodes))
		for i, id := range f.Nodes {
			ids[i] = string(id)
		}
		where = append(where, "nodes="+strings.Join(ids, ","))
	}
	if len(where) == 0 {
		return fmt.Sprintf("%s [%s] %s", f.Severity, f.Code, f.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", f.Severity, f.Code, strings.Join(where, " "), f.Message)
}

func compareFindings(a, b Finding) int {
	return cmp.Or(
		cmp.Compare(a.Code, b.Code),
		cmp.Compare(a.MechanismID, b.MechanismID),
		slices.Compare(a.Nodes, b.Nodes),
		cmp.Compare(a.Message, b.Message),
	)
}

// Report is the outcome of a validation run.
type Report struct {
	SnapshotVersion uint64    `json:"snapshot_version" yaml:"snapshot_version"`
	Errors          []Finding `json:"errors" yaml:"errors"`
	Warnings        []Finding `json:"warnings" yaml:"warnings"`
}

// NewReport creates an empty report for a snapshot version.
func NewReport(version uint64) *Report {
	return &Report{SnapshotVersion: version, Errors: []Finding{}, Warnings: []Finding{}}
}

// Add files f under its severity.
func (r *Report) Add(f Finding) {
	if f.Severity == SeverityError {
		r.Errors = append(r.Errors, f)
	} else {
		f.Severity = SeverityWarning
		r.Warnings = append(r.Warnings, f)
	}
}

// Sort orders both lists by code, mechanism, nodes and message.
func (r *Report) Sort() {
	slices.SortFunc(r.Errors, compareFindings)
	slices.SortFunc(r.Warnings, compareFindings)
}

// OK reports whether there are no errors.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Count returns the findings with the given code across both lists.
func (r *Report) Count(code Code) int {
	n := 0
	for _, f := range r.Errors {
		if f.Code == code {
			n++
		}
	}
	for _, f := range r.Warnings {
		if f.Code == code {
			n++
		}
	}
	return n
}

// Err joins the typed errors of every error finding, or returns nil when
// the report is clean. Findings without a typed error contribute their
// message.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, f := range r.Errors {
		if f.Err != nil {
			errs = append(errs, f.Err)
		} else {
			errs = append(errs, errors.New(f.String()))
		}
	}
	return errors.Join(errs...)
}
