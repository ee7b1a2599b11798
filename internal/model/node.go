// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Node, the measurable state variable of the taxonomy,
// together with its scale, type and lifecycle vocabularies.
//
// Type and domain are open vocabularies: unrecognised values are kept as-is
// and surface as validation warnings instead of rejections. Scale is a small
// sorted set so that a bridge node valid at two levels is one record.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Scale is the 1..5 ordinal level a node operates at.
type Scale int

const (
	ScaleStructural    Scale = 1
	ScaleInstitutional Scale = 2
	ScaleIndividual    Scale = 3
	ScalePathway       Scale = 4
	ScaleCrisis        Scale = 5
)

var scaleNames = map[Scale]string{
	ScaleStructural:    "structural",
	ScaleInstitutional: "institutional",
	ScaleIndividual:    "individual",
	ScalePathway:       "pathway",
	ScaleCrisis:        "crisis",
}

// Valid reports whether s is within 1..5.
func (s Scale) Valid() bool {
	return s >= ScaleStructural && s <= ScaleCrisis
}

func (s Scale) String() string {
	if name, ok := scaleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scale(%d)", int(s))
}

// ParseScale accepts either the ordinal or the level name.
func ParseScale(raw string) (Scale, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for s, name := range scaleNames {
		if raw == name || raw == fmt.Sprint(int(s)) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown scale %q", raw)
}

// ScaleSet is a sorted set of scales. Two members make a bridge node.
type ScaleSet []Scale

// NewScaleSet sorts the given scales. Duplicates are kept so that validation
// can report them.
func NewScaleSet(scales ...Scale) ScaleSet {
	out := slices.Clone(scales)
	slices.Sort(out)
	return out
}

func (s ScaleSet) Contains(x Scale) bool { return slices.Contains(s, x) }
func (s ScaleSet) IsBridge() bool       { return len(s) == 2 }

// HasDuplicates reports a repeated scale, which a bridge pair may not have.
func (s ScaleSet) HasDuplicates() bool {
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			return true
		}
	}
	return false
}

// NodeType is the open enum of node kinds.
type NodeType string

const (
	TypeStock    NodeType = "stock"
	TypeRate     NodeType = "rate"
	TypePolicy   NodeType = "policy"
	TypeQuality  NodeType = "quality"
	TypeAccess   NodeType = "access"
	TypeExposure NodeType = "exposure"
	TypeOther    NodeType = "other"
)

// KnownNodeTypes lists the recognised variants.
var KnownNodeTypes = []NodeType{TypeStock, TypeRate, TypePolicy, TypeQuality, TypeAccess, TypeExposure, TypeOther}

// Known reports whether t is one of the recognised variants.
func (t NodeType) Known() bool {
	return slices.Contains(KnownNodeTypes, NodeType(strings.ToLower(string(t))))
}

// NodeStatus is the lifecycle state of a node.
type NodeStatus string

const (
	StatusActive     NodeStatus = "active"
	StatusDeprecated NodeStatus = "deprecated"
	StatusMerged     NodeStatus = "merged"
)

// IsTombstone reports whether the node has been retired.
func (s NodeStatus) IsTombstone() bool {
	return s == StatusDeprecated || s == StatusMerged
}

// UnknownDomain is the placeholder tag the corpus uses for unclassified nodes.
const UnknownDomain = "Unknown"

// Range is a closed interval.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Baseline is the optional reference measurement of a node.
type Baseline struct {
	Point       *float64           `json:"point,omitempty" yaml:"point,omitempty"`
	Range       *Range             `json:"range,omitempty" yaml:"range,omitempty"`
	Year        int                `json:"year,omitempty" yaml:"year,omitempty"`
	Disparities map[string]float64 `json:"disparities,omitempty" yaml:"disparities,omitempty"`
}

// IsEmpty reports whether no baseline figure was supplied.
func (b *Baseline) IsEmpty() bool {
	return b == nil || (b.Point == nil && b.Range == nil && len(b.Disparities) == 0)
}

func (b *Baseline) clone() *Baseline {
	if b == nil {
		return nil
	}
	out := *b
	if b.Point != nil {
		p := *b.Point
		out.Point = &p
	}
	if b.Range != nil {
		r := *b.Range
		out.Range = &r
	}
	out.Disparities = maps.Clone(b.Disparities)
	return &out
}

// Node is a measurable state variable.
type Node struct {
	ID          nodeid.ID  `json:"id" yaml:"id" validate:"required,nodeid"`
	Name        string     `json:"name" yaml:"name" validate:"required"`
	Scales      ScaleSet   `json:"scales" yaml:"scales" validate:"min=1,max=2,dive,min=1,max=5"`
	Domains     []string   `json:"domains" yaml:"domains" validate:"min=1,dive,required"`
	Type        NodeType   `json:"type" yaml:"type" validate:"required"`
	Unit        string     `json:"unit" yaml:"unit" validate:"required"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Baseline    *Baseline  `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Source      string     `json:"source" yaml:"source" validate:"required"`
	Status      NodeStatus `json:"status" yaml:"status"`
	Version     int        `json:"version" yaml:"version"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
	Origin      string     `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Scales = slices.Clone(n.Scales)
	out.Domains = slices.Clone(n.Domains)
	out.Baseline = n.Baseline.clone()
	return &out
}

// Active reports whether the node is live.
func (n *Node) Active() bool {
	return n.Status == "" || n.Status == StatusActive
}

// UnitFamily classifies the node's unit.
func (n *Node) UnitFamily() UnitFamily {
	return ClassifyUnit(n.Unit)
}

// HasUnknownDomain reports whether any domain is the Unknown placeholder.
func (n *Node) HasUnknownDomain() bool {
	for _, d := range n.Domains {
		if strings.EqualFold(strings.TrimSpace(d), UnknownDomain) {
			return true
		}
	}
	return false
}

// Fingerprint hashes the content fields. Version bookkeeping and origin are
// excluded so that re-ingesting an unchanged record hashes the same.
func (n *Node) Fingerprint() string {
	content := struct {
		ID          nodeid.ID
		Name        string
		Scales      ScaleSet
		Domains     []string
		Type        NodeType
		Unit        string
		Description string
		Baseline    *Baseline
		Source      string
		Status      NodeStatus
	}{n.ID, n.Name, n.Scales, n.Domains, n.Type, n.Unit, n.Description, n.Baseline, n.Source, n.Status}
	raw, _ := json.Marshal(content)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// NodePatch carries the non-identity fields of an update. Nil fields are left
// untouched.
type NodePatch struct {
	Name        *string
	Scales      ScaleSet
	Domains     []string
	Type        *NodeType
	Unit        *string
	Description *string
	Baseline    *Baseline
	Source      *string
}

// IsEmpty reports whether the patch changes nothing.
func (p NodePatch) IsEmpty() bool {
	return p.Name == nil && p.Scales == nil && p.Domains == nil && p.Type == nil &&
		p.Unit == nil && p.Description == nil && p.Baseline == nil && p.Source == nil
}

// Apply returns a copy of n with the patch applied.
func (p NodePatch) Apply(n *Node) *Node {
	out := n.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Scales != nil {
		out.Scales = NewScaleSet(p.Scales...)
	}
	if p.Domains != nil {
		out.Domains = slices.Clone(p.Domains)
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Unit != nil {
		out.Unit = *p.Unit
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Baseline != nil {
		out.Baseline = p.Baseline.clone()
	}
	if p.Source != nil {
		out.Source = *p.Source
	}
	return out
}
