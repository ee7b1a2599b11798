// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the error taxonomy shared by every layer of the graph.
//
// Each typed error carries the identifiers needed to locate the offending
// record and unwraps to one of the sentinels below, so callers branch with
// errors.Is and extract details with errors.As.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

var (
	ErrSchemaValidation     = errors.New("schema validation failed")
	ErrDuplicateNodeID      = errors.New("duplicate node id")
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrConsistency          = errors.New("lineage consistency violation")
	ErrDivergentSimulation  = errors.New("simulation diverged")
	ErrUnitMismatch         = errors.New("unit mismatch")
	ErrUnknownNode          = errors.New("unknown node")
	ErrUnknownMechanism     = errors.New("unknown mechanism")
	ErrTombstoned           = errors.New("node is tombstoned")
	ErrUnresolvable         = errors.New("tombstone has no resolution target")
	ErrDuplicateMechanism   = errors.New("duplicate mechanism")
)

// SchemaValidationError reports a malformed node or mechanism record.
type SchemaValidationError struct {
	Kind   string // "node", "mechanism", "consolidation" or "intervention"
	ID     string
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s %q: %s", e.Kind, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %q: field %q: %s", e.Kind, e.ID, e.Field, e.Reason)
}

func (e *SchemaValidationError) Unwrap() error { return ErrSchemaValidation }

// DuplicateNodeIDError is returned when an id was already issued, in any
// lifecycle state.
type DuplicateNodeIDError struct {
	ID     nodeid.ID
	Status NodeStatus
}

func (e *DuplicateNodeIDError) Error() string {
	return fmt.Sprintf("node id %q already issued (status %s)", e.ID, e.Status)
}

func (e *DuplicateNodeIDError) Unwrap() error { return ErrDuplicateNodeID }

// ReferentialIntegrityError reports a mechanism endpoint that does not
// resolve to an active node.
type ReferentialIntegrityError struct {
	MechanismID nodeid.ID
	NodeID      nodeid.ID
	Endpoint    string // "source" or "target"
	Cause       error
}

func (e *ReferentialIntegrityError) Error() string {
	msg := fmt.Sprintf("mechanism %q: %s %q does not resolve to an active node", e.MechanismID, e.Endpoint, e.NodeID)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ReferentialIntegrityError) Unwrap() error { return ErrReferentialIntegrity }

// ConsistencyError reports an alias cycle in the tombstone chain.
type ConsistencyError struct {
	Chain []nodeid.ID
}

func (e *ConsistencyError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, id := range e.Chain {
		parts[i] = string(id)
	}
	return fmt.Sprintf("alias cycle: %s", strings.Join(parts, " -> "))
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// UnresolvableError reports a tombstone without a successor.
type UnresolvableError struct {
	ID    nodeid.ID
	Chain []nodeid.ID
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("node %q is tombstoned without a successor", e.ID)
}

func (e *UnresolvableError) Unwrap() error { return ErrUnresolvable }

// DivergentSimulationError lists the nodes whose relaxation did not settle.
// It is informational: the rest of the run stays usable.
type DivergentSimulationError struct {
	Nodes      []nodeid.ID
	Iterations int
	LoopGain   float64
}

func (e *DivergentSimulationError) Error() string {
	return fmt.Sprintf("%d node(s) diverged after %d iterations (max loop gain %.4g)", len(e.Nodes), e.Iterations, e.LoopGain)
}

func (e *DivergentSimulationError) Unwrap() error { return ErrDivergentSimulation }

// UnitMismatchError describes incompatible unit families on an edge or an
// intervention whose unit disagrees with its target.
type UnitMismatchError struct {
	MechanismID nodeid.ID
	NodeID      nodeid.ID
	From        string
	To          string
}

func (e *UnitMismatchError) Error() string {
	if e.MechanismID != "" {
		return fmt.Sprintf("mechanism %q connects unit %q to %q without a transform", e.MechanismID, e.From, e.To)
	}
	return fmt.Sprintf("node %q expects unit %q, got %q", e.NodeID, e.To, e.From)
}

func (e *UnitMismatchError) Unwrap() error { return ErrUnitMismatch }

// UnknownNodeError wraps ErrUnknownNode with the id that was asked for.
func UnknownNodeError(id nodeid.ID) error {
	return fmt.Errorf("%w: %q", ErrUnknownNode, id)
}
