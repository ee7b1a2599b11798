// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Mechanism, a directed causal edge, and the
// MechanismSpec record it is declared with. A spec may name several sources
// and targets; Expand turns it into the pairwise edges the graph stores.
//
// Strength is kept as a magnitude with a confidence interval; the sign lives
// in Direction. The transfer function is assumed linear, so the signed
// coefficient of an edge is Direction * Strength.Point.
package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Direction is the sign of a causal effect.
type Direction int8

const (
	Positive Direction = 1
	Negative Direction = -1
)

// ParseDirection accepts the spellings used in the corpus.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "+", "increase", "increases", "up":
		return Positive, nil
	case "negative", "-", "decrease", "decreases", "down":
		return Negative, nil
	}
	return 0, fmt.Errorf("unknown direction %q", raw)
}

func (d Direction) String() string {
	switch d {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	}
	return fmt.Sprintf("direction(%d)", int8(d))
}

func (d Direction) MarshalText() ([]byte, error) {
	if d != Positive && d != Negative {
		return nil, fmt.Errorf("invalid direction %d", int8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Strength is the magnitude of a mechanism with its confidence interval,
// both aligned with the mechanism's Direction. A negative Low means the
// evidence admits an effect of the opposite sign.
type Strength struct {
	Point float64 `json:"point" yaml:"point"`
	Low   float64 `json:"low" yaml:"low"`
	High  float64 `json:"high" yaml:"high"`
}

// Validate checks finiteness, a non-negative point and low <= point <= high.
func (s Strength) Validate() error {
	for _, v := range []float64{s.Point, s.Low, s.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("strength must be finite")
		}
	}
	if s.Point < 0 {
		return fmt.Errorf("strength magnitude must be non-negative")
	}
	if s.Low > s.Point || s.Point > s.High {
		return fmt.Errorf("confidence interval [%g, %g] does not contain point estimate %g", s.Low, s.High, s.Point)
	}
	return nil
}

// MechanismStatus is the lifecycle state of a mechanism.
type MechanismStatus string

const (
	MechanismActive  MechanismStatus = "active"
	MechanismRetired MechanismStatus = "retired"
)

// Mechanism is a pairwise directed edge between two declared node ids.
// Endpoints are stored as declared; resolution happens when the graph
// builds its edge index.
type Mechanism struct {
	ID            nodeid.ID       `json:"id" yaml:"id"`
	Source        nodeid.ID       `json:"source" yaml:"source"`
	Target        nodeid.ID       `json:"target" yaml:"target"`
	Pathway       string          `json:"pathway" yaml:"pathway"`
	Direction     Direction       `json:"direction" yaml:"direction"`
	Strength      Strength        `json:"strength" yaml:"strength"`
	EvidenceTier  int             `json:"evidence_tier" yaml:"evidence_tier"`
	Transform     string          `json:"transform,omitempty" yaml:"transform,omitempty"`
	Status        MechanismStatus `json:"status" yaml:"status"`
	RetiredReason string          `json:"retired_reason,omitempty" yaml:"retired_reason,omitempty"`
	Composite     nodeid.ID       `json:"composite,omitempty" yaml:"composite,omitempty"`
	Origin        string          `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// Active reports whether the mechanism takes part in propagation.
func (m *Mechanism) Active() bool {
	return m.Status == "" || m.Status == MechanismActive
}

// Coefficient is the signed linear transfer coefficient.
func (m *Mechanism) Coefficient() float64 {
	return float64(m.Direction) * m.Strength.Point
}

// CoefficientInterval returns the signed interval of the coefficient.
func (m *Mechanism) CoefficientInterval() (lo, hi float64) {
	if m.Direction == Negative {
		return -m.Strength.High, -m.Strength.Low
	}
	return m.Strength.Low, m.Strength.High
}

// Clone returns a copy.
func (m *Mechanism) Clone() *Mechanism {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// MechanismSpec is a mechanism record as authored. Strength may be signed.
type MechanismSpec struct {
	ID           string
	Sources      []string
	Targets      []string
	Pathway      string
	Direction    string
	Strength     float64
	Low          *float64
	High         *float64
	EvidenceTier int
	Transform    string
	Status       string
	Origin       string
}

// DerivedMechanismID names an edge declared without an id.
func DerivedMechanismID(source, target nodeid.ID) nodeid.ID {
	return nodeid.ID(string(source) + "__" + string(target))
}

func (s *MechanismSpec) label() string {
	if s.ID != "" {
		return s.ID
	}
	if len(s.Sources) > 0 && len(s.Targets) > 0 {
		return s.Sources[0] + "__" + s.Targets[0]
	}
	return "<unnamed>"
}

func (s *MechanismSpec) schemaErr(field, format string, args ...any) error {
	return &SchemaValidationError{Kind: "mechanism", ID: s.label(), Field: field, Reason: fmt.Sprintf(format, args...)}
}

// strength converts the authored point and bounds into a direction-aligned
// Strength. Bounds may be written in the signed convention of the point
// (-0.3 within [-0.5, -0.1]) or as magnitudes (0.3 within [0.1, 0.5]). A
// bound on the other side of zero is kept, so the interval may cross it.
func (s *MechanismSpec) strength() (Strength, error) {
	if s.Low != nil && s.High != nil && *s.Low > *s.High {
		return Strength{}, s.schemaErr("strength", "confidence interval low %g exceeds high %g", *s.Low, *s.High)
	}
	bounds := func(def float64) (float64, float64) {
		lo, hi := def, def
		if s.Low != nil {
			lo = *s.Low
		}
		if s.High != nil {
			hi = *s.High
		}
		return lo, hi
	}

	point := math.Abs(s.Strength)
	lo, hi := bounds(s.Strength)
	signed := Strength{Point: point, Low: lo, High: hi}
	if s.Strength < 0 {
		signed.Low, signed.High = -hi, -lo
	}
	err := signed.Validate()
	if err == nil {
		return signed, nil
	}
	if s.Strength < 0 {
		lo, hi = bounds(point)
		if magnitude := (Strength{Point: point, Low: lo, High: hi}); magnitude.Validate() == nil {
			return magnitude, nil
		}
	}
	return Strength{}, s.schemaErr("strength", "%v", err)
}

// Expand validates the record and produces one Mechanism per (source, target)
// pair. A single-pair spec keeps its id; a composite gets ids of the form
// <id>.<source>.<target>. An empty id is derived from the endpoints.
func (s *MechanismSpec) Expand() ([]*Mechanism, error) {
	if len(s.Sources) == 0 {
		return nil, s.schemaErr("source", "at least one source is required")
	}
	if len(s.Targets) == 0 {
		return nil, s.schemaErr("target", "at least one target is required")
	}
	var baseID nodeid.ID
	if s.ID != "" {
		id, err := nodeid.Parse(s.ID)
		if err != nil {
			return nil, s.schemaErr("id", "%v", err)
		}
		baseID = id
	}
	if strings.TrimSpace(s.Pathway) == "" {
		return nil, s.schemaErr("pathway", "pathway description is required")
	}

	dir := Positive
	if s.Strength < 0 {
		dir = Negative
	}
	if s.Direction != "" {
		declared, err := ParseDirection(s.Direction)
		if err != nil {
			return nil, s.schemaErr("direction", "%v", err)
		}
		if s.Strength < 0 && declared == Positive {
			return nil, s.schemaErr("direction", "negative strength contradicts positive direction")
		}
		dir = declared
	}

	strength, err := s.strength()
	if err != nil {
		return nil, err
	}
	if s.EvidenceTier < 1 || s.EvidenceTier > 4 {
		return nil, s.schemaErr("evidence_tier", "must be within 1..4, got %d", s.EvidenceTier)
	}

	status := MechanismActive
	switch MechanismStatus(strings.ToLower(s.Status)) {
	case "", MechanismActive:
	case MechanismRetired:
		status = MechanismRetired
	default:
		return nil, s.schemaErr("status", "unknown status %q", s.Status)
	}

	composite := len(s.Sources)*len(s.Targets) > 1
	out := make([]*Mechanism, 0, len(s.Sources)*len(s.Targets))
	for _, rawSrc := range s.Sources {
		src, err := nodeid.Parse(rawSrc)
		if err != nil {
			return nil, s.schemaErr("source", "%v", err)
		}
		for _, rawTgt := range s.Targets {
			tgt, err := nodeid.Parse(rawTgt)
			if err != nil {
				return nil, s.schemaErr("target", "%v", err)
			}
			m := &Mechanism{
				Source:       src,
				Target:       tgt,
				Pathway:      s.Pathway,
				Direction:    dir,
				Strength:     strength,
				EvidenceTier: s.EvidenceTier,
				Transform:    s.Transform,
				Status:       status,
				Origin:       s.Origin,
			}
			switch {
			case baseID == "":
				m.ID = DerivedMechanismID(src, tgt)
			case composite:
				m.ID = nodeid.Join(string(baseID), string(src), string(tgt))
				m.Composite = baseID
			default:
				m.ID = baseID
			}
			out = append(out, m)
		}
	}
	return out, nil
}
