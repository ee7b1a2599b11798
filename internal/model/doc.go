// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model defines the format-agnostic records of the causal graph and
// the error taxonomy every other package reports through.
//
// # Core Concepts
//
//   - Node: a measurable state variable with a scale (or bridge pair of
//     scales), open-vocabulary domains and type, a unit, an optional baseline
//     and a lifecycle status. Nodes are never deleted, only tombstoned.
//
//   - Mechanism: a directed causal edge with a signed linear coefficient,
//     confidence interval and evidence tier. Multi-endpoint records are
//     declared as a MechanismSpec and expanded into pairwise edges.
//
//   - Consolidation and Tombstone: how retired ids point at their successor,
//     optionally as weighted components of a composite.
//
//   - Intervention: an ephemeral set of perturbations used as simulation input.
//
//   - AuditEntry: the immutable trail of successful mutations.
//
// Loaders (HCL, YAML) produce these records; the registry, lineage tracker
// and graph packages own their lifecycle.
package model
