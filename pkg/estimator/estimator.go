// Package estimator implements the stratified-sum point estimate and its
// 95% confidence interval (C6), accumulated across every round of the
// run.
package estimator

import (
	"math"

	"github.com/thsslxf/hadoop-ev/pkg/stats"
)

// confidenceZ is the z-score for a 95% confidence interval.
const confidenceZ = 1.96

type stratumAccum struct {
	totalCount   int
	sumWeightedV float64 // sum of (per-round mean_v * per-round count), so sumWeightedV/totalCount is the running mean_v(s)
}

// Estimator accumulates each round's per-stratum reduced-value mean and
// sample count into a running weighted mean_v(s) for every stratum seen
// across the whole run.
type Estimator struct {
	strata map[string]*stratumAccum
	order  []string
}

// New returns an empty Estimator.
func New() *Estimator {
	return &Estimator{strata: make(map[string]*stratumAccum)}
}

// Ingest folds one round's observation for stratum s — its mean reduced
// value and how many records contributed to that mean — into the
// running cumulative mean_v(s).
func (e *Estimator) Ingest(stratum string, meanV float64, count int) {
	if count <= 0 {
		return
	}
	a, ok := e.strata[stratum]
	if !ok {
		a = &stratumAccum{}
		e.strata[stratum] = a
		e.order = append(e.order, stratum)
	}
	a.totalCount += count
	a.sumWeightedV += meanV * float64(count)
}

// MeanV returns the running weighted mean_v(s) and whether stratum has
// been sampled at all.
func (e *Estimator) MeanV(stratum string) (float64, bool) {
	a, ok := e.strata[stratum]
	if !ok || a.totalCount == 0 {
		return 0, false
	}
	return a.sumWeightedV / float64(a.totalCount), true
}

// SampledCount returns the cumulative number of records sampled from
// stratum across the whole run.
func (e *Estimator) SampledCount(stratum string) int {
	a, ok := e.strata[stratum]
	if !ok {
		return 0
	}
	return a.totalCount
}

// Result is the stratified-sum estimate and its 95% confidence bound.
type Result struct {
	PointEstimate float64
	Variance      float64
	MarginOfError float64
	Lower         float64
	Upper         float64
}

// Estimate computes the stratified-sum point estimate — the sum across
// strata of each stratum's cumulative mean_v(s) — and its variance,
// Σ mean_var(s)/sampledCount(s), drawn from model's post-floor var_v for
// each stratum this estimator has sampled.
func (e *Estimator) Estimate(model *stats.Model) Result {
	var point, variance float64
	for _, s := range e.order {
		meanV, ok := e.MeanV(s)
		if !ok {
			continue
		}
		point += meanV

		n := e.SampledCount(s)
		if n == 0 {
			continue
		}
		meanVar := 0.0
		if st, ok := model.Lookup(s); ok {
			meanVar = st.VarV
		}
		variance += meanVar / float64(n)
	}

	margin := confidenceZ * math.Sqrt(variance)
	return Result{
		PointEstimate: point,
		Variance:      variance,
		MarginOfError: margin,
		Lower:         point - margin,
		Upper:         point + margin,
	}
}
