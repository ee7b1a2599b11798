package propagation

import (
	"encoding/json"
	"math"
	"slices"
	"time"

	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Status is the per-node outcome of a run.
type Status string

const (
	StatusConverged Status = "converged"
	StatusDiverged  Status = "diverged"
	StatusTimedOut  Status = "timed_out"
)

// Contribution is one path carrying part of the intervention to a node.
type Contribution struct {
	Nodes      []nodeid.ID `json:"nodes"`
	Mechanisms []nodeid.ID `json:"mechanisms"`
	Effect     float64     `json:"effect"`
}

// Effect is the simulated change of one node.
type Effect struct {
	Node nodeid.ID
	// Delta is the raw fixed point value. It is NaN when the node diverged.
	Delta float64
	// Clamped keeps baseline + delta inside the plausible domain of the
	// node's unit family. It is for presentation only.
	Clamped float64
	// Low and High bound Delta according to the uncertainty mode.
	Low    float64
	High   float64
	Status Status
	Paths  []Contribution
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON encodes non-finite numbers as null.
func (e Effect) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Node    nodeid.ID      `json:"node"`
		Delta   *float64       `json:"delta"`
		Clamped *float64       `json:"clamped"`
		Low     *float64       `json:"low"`
		High    *float64       `json:"high"`
		Status  Status         `json:"status"`
		Paths   []Contribution `json:"paths,omitempty"`
	}{e.Node, finiteOrNil(e.Delta), finiteOrNil(e.Clamped), finiteOrNil(e.Low), finiteOrNil(e.High), e.Status, e.Paths})
}

// EffectReport is the result of a simulation.
type EffectReport struct {
	Intervention    string        `json:"intervention,omitempty"`
	SnapshotVersion uint64        `json:"snapshot_version"`
	Mode            Mode          `json:"mode"`
	Iterations      int           `json:"iterations"`
	Converged       bool          `json:"converged"`
	TimedOut        bool          `json:"timed_out"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	Samples         int           `json:"samples,omitempty"`
	DroppedSamples  int           `json:"dropped_samples,omitempty"`
	// Effects covers every node reachable from a perturbed node, sorted by
	// id. Nodes not listed are unaffected.
	Effects []Effect `json:"effects"`
	// Divergence is set when some nodes diverged. It does not invalidate
	// the other effects.
	Divergence *model.DivergentSimulationError `json:"-"`
	Diverged   []nodeid.ID                     `json:"diverged,omitempty"`
}

// Effect returns the effect recorded for id.
func (r *EffectReport) Effect(id nodeid.ID) (Effect, bool) {
	i, ok := slices.BinarySearchFunc(r.Effects, id, func(e Effect, id nodeid.ID) int {
		switch {
		case e.Node < id:
			return -1
		case e.Node > id:
			return 1
		}
		return 0
	})
	if !ok {
		return Effect{}, false
	}
	return r.Effects[i], true
}

// Delta returns the raw delta of id, zero for unaffected nodes.
func (r *EffectReport) Delta(id nodeid.ID) float64 {
	e, _ := r.Effect(id)
	return e.Delta
}

// Err returns the divergence error, if any, as an error value.
func (r *EffectReport) Err() error {
	if r.Divergence == nil {
		return nil
	}
	return r.Divergence
}
