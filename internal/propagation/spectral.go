package propagation

import "math"

const (
	gainTolerance   = 1e-9
	powerIterations = 10_000
)

// perronRoot estimates the spectral radius of a non-negative irreducible
// matrix by power iteration on w+I, which is primitive, and narrows the
// estimate with the Collatz-Wielandt bounds
//
//	min_i (Bx)_i/x_i <= ρ(B) <= max_i (Bx)_i/x_i
//
// The result is ρ(w) = ρ(w+I) - 1.
func perronRoot(w [][]float64) float64 {
	n := len(w)
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = 1
	}
	lo, hi := 0.0, math.Inf(1)
	for iter := 0; iter < powerIterations; iter++ {
		for i := 0; i < n; i++ {
			sum := x[i]
			for j, v := range w[i] {
				sum += v * x[j]
			}
			y[i] = sum
		}
		lo, hi = math.Inf(1), 0.0
		peak := 0.0
		for i := range y {
			r := y[i] / x[i]
			lo = min(lo, r)
			hi = max(hi, r)
			peak = max(peak, y[i])
		}
		if hi-lo <= 1e-12*hi {
			break
		}
		// Decisive before converged: the bounds already sit on one side of 1.
		if lo-1 >= 1 || hi-1 < 1-gainTolerance {
			break
		}
		for i := range x {
			x[i] = y[i] / peak
		}
	}
	if hi-1 < 1-gainTolerance {
		return hi - 1
	}
	if lo-1 >= 1 {
		return lo - 1
	}
	return (lo+hi)/2 - 1
}
