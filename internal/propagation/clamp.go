package propagation

import (
	"math"

	"github.com/specialistvlad/causalgrid/internal/model"
)

// clampDelta keeps a delta presentable for the node's unit family. With a
// baseline point the shifted value stays inside the family's domain; without
// one the magnitude is bounded by the domain width. The raw delta is never
// changed.
func clampDelta(n *model.Node, delta float64) float64 {
	if n == nil || math.IsNaN(delta) {
		return delta
	}
	lo, hi, ok := n.UnitFamily().Domain()
	if !ok {
		return delta
	}
	if b := n.Baseline; b != nil && b.Point != nil {
		base := *b.Point
		return math.Min(math.Max(base+delta, lo), hi) - base
	}
	width := hi - lo
	if math.IsInf(width, 1) {
		return delta
	}
	return math.Max(-width, math.Min(delta, width))
}
