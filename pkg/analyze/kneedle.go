package analyze

import "sort"

// FindKnee implements the Kneedle algorithm to find the point of
// maximum curvature in a convergence curve. It assumes Y decreases and
// flattens out as X (the round number) increases, the usual shape of a
// confidence-interval half-width over successive rounds.
func FindKnee(points []Point) Point {
	if len(points) < 3 {
		if len(points) > 0 {
			return points[len(points)-1]
		}
		return Point{}
	}

	sorted := append([]Point(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].X < sorted[j].X
	})

	minX, maxX := sorted[0].X, sorted[len(sorted)-1].X
	minY, maxY := sorted[0].Y, sorted[0].Y
	for _, p := range sorted {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	if maxX == minX || maxY == minY {
		return sorted[len(sorted)-1]
	}

	// Y decreases while X increases, so the diagonal running from
	// (0,1) to (1,0) is the "no curvature" baseline; distance above it
	// is (1 - yNorm) - xNorm, flipped from the increasing-curve case.
	// Distances that differ only by rounding count as ties, and ties keep
	// the earliest point, so a straight line reports its first point.
	const tieTolerance = 1e-9
	maxDist := -1.0
	var knee Point
	for _, p := range sorted {
		xNorm := (p.X - minX) / (maxX - minX)
		yNorm := (p.Y - minY) / (maxY - minY)
		dist := (1 - yNorm) - xNorm
		if dist > maxDist+tieTolerance {
			maxDist = dist
			knee = p
		}
	}
	return knee
}
