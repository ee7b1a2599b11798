// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Interventions, the ephemeral perturbations fed to the
// simulator, and Consolidations, the records that retire node ids.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Perturbation shifts one node by Delta. Unit, when set, must match the
// node's unit.
type Perturbation struct {
	NodeID nodeid.ID `json:"node" yaml:"node"`
	Delta  float64   `json:"delta" yaml:"delta"`
	Unit   string    `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Intervention is a set of perturbations plus free-text implementation notes.
type Intervention struct {
	Name          string            `json:"name" yaml:"name"`
	Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Perturbations []Perturbation    `json:"perturbations" yaml:"perturbations"`
}

// IsZero reports whether every perturbation is zero.
func (i *Intervention) IsZero() bool {
	for _, p := range i.Perturbations {
		if p.Delta != 0 {
			return false
		}
	}
	return true
}

// Validate checks ids and magnitudes.
func (i *Intervention) Validate() error {
	for idx, p := range i.Perturbations {
		if _, err := nodeid.Parse(string(p.NodeID)); err != nil {
			return &SchemaValidationError{Kind: "intervention", ID: i.Name, Field: fmt.Sprintf("perturbations[%d].node", idx), Reason: err.Error()}
		}
		if math.IsNaN(p.Delta) || math.IsInf(p.Delta, 0) {
			return &SchemaValidationError{Kind: "intervention", ID: i.Name, Field: fmt.Sprintf("perturbations[%d].delta", idx), Reason: "delta must be finite"}
		}
	}
	return nil
}

// ConsolidationAction names what a consolidation does to its ids.
type ConsolidationAction string

const (
	ActionDeprecate ConsolidationAction = "deprecate"
	ActionMerge     ConsolidationAction = "merge"
)

// Consolidation retires one or more ids, optionally folding them into a
// successor with component weights.
type Consolidation struct {
	Name    string                `json:"name" yaml:"name"`
	Action  ConsolidationAction   `json:"action" yaml:"action"`
	From    []nodeid.ID           `json:"from" yaml:"from"`
	Into    nodeid.ID             `json:"into,omitempty" yaml:"into,omitempty"`
	Reason  string                `json:"reason,omitempty" yaml:"reason,omitempty"`
	Weights map[nodeid.ID]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	Origin  string                `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// Validate checks the record shape. Lineage rules are enforced by the tracker.
func (c *Consolidation) Validate() error {
	fail := func(field, reason string) error {
		return &SchemaValidationError{Kind: "consolidation", ID: c.Name, Field: field, Reason: reason}
	}
	switch ConsolidationAction(strings.ToLower(string(c.Action))) {
	case ActionDeprecate:
		if len(c.From) != 1 {
			return fail("from", "deprecate takes exactly one id")
		}
	case ActionMerge:
		if len(c.From) == 0 {
			return fail("from", "merge needs at least one id")
		}
		if c.Into == "" {
			return fail("into", "merge needs a successor")
		}
	default:
		return fail("action", fmt.Sprintf("unknown action %q", c.Action))
	}
	for id, w := range c.Weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return fail("weights", fmt.Sprintf("weight for %q must be positive", id))
		}
	}
	return nil
}

// Tombstone records how a retired id resolves.
type Tombstone struct {
	ID        nodeid.ID           `json:"id" yaml:"id"`
	Action    ConsolidationAction `json:"action" yaml:"action"`
	Successor nodeid.ID           `json:"successor,omitempty" yaml:"successor,omitempty"`
	Weight    float64             `json:"weight,omitempty" yaml:"weight,omitempty"`
	Reason    string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	At        time.Time           `json:"at" yaml:"at"`
}

// HasWeight reports whether the id is a weighted component of its successor.
func (t *Tombstone) HasWeight() bool {
	return t.Weight > 0
}
