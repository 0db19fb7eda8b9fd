// Package analyze is a diagnostic layer, informational only: it watches
// how the confidence-interval half-width shrinks round over round and
// flags when the run has effectively converged or has settled into a
// slow linear decay, the way a human operator eyeballing a convergence
// plot would. Nothing here feeds back into the planner or sampler.
package analyze

import "math"

// Point is one round's convergence measurement: X is the round number,
// Y is the confidence-interval half-width after that round.
type Point struct {
	X float64
	Y float64
}

// Analysis identifies key transitions in a convergence curve.
type Analysis struct {
	LinearLimit     Point // round where the half-width stopped shrinking at its initial rate
	SaturationPoint Point // round where further sampling buys almost nothing
}

// Detector holds the slope-ratio thresholds used to call a transition.
type Detector struct {
	LinearThreshold float64 // e.g. 0.5: half-width shrink rate fell below 50% of the initial rate
	SatThreshold    float64 // e.g. 0.05: shrink rate fell below 5% of the initial rate
}

// Analyze processes a series of (round, half-width) points and finds the
// round where shrinkage first slows and where it effectively stops.
func (d *Detector) Analyze(points []Point) Analysis {
	if len(points) < 3 {
		return Analysis{}
	}

	initialSlope := (points[1].Y - points[0].Y) / (points[1].X - points[0].X)
	if initialSlope >= 0 {
		// half-width is not shrinking at all; nothing to detect.
		return Analysis{}
	}

	var analysis Analysis
	for i := 2; i < len(points); i++ {
		currentSlope := (points[i].Y - points[i-1].Y) / (points[i].X - points[i-1].X)

		if analysis.LinearLimit.X == 0 && currentSlope > initialSlope*d.LinearThreshold {
			analysis.LinearLimit = points[i-1]
		}

		avgSlope := currentSlope
		if i >= 3 {
			prevSlope := (points[i-1].Y - points[i-2].Y) / (points[i-1].X - points[i-2].X)
			avgSlope = (currentSlope + prevSlope) / 2
		}
		if analysis.SaturationPoint.X == 0 && avgSlope > initialSlope*d.SatThreshold {
			analysis.SaturationPoint = points[i-1]
		}
	}
	return analysis
}

// CalculateConfidence returns a value in [0, 1] measuring how cleanly
// the half-width shrinks round over round: 1 means every round improved
// on the last, lower values mean the estimate bounced around.
func CalculateConfidence(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	violations := 0
	for i := 1; i < len(points); i++ {
		if points[i].Y > points[i-1].Y {
			violations++
		}
	}
	return math.Max(0, 1.0-float64(violations)/float64(len(points)))
}
