// Package stats implements the per-stratum statistics model (C1): a
// two-pass running mean/variance of per-record processing time with
// outlier rejection, plus the floor invariant applied to the externally
// supplied reduced-value variance.
package stats

import (
	"math"
)

// varianceFloor is the minimum var_v the sampler is allowed to see; below
// it a stratum would be zero-weighted in the next MH/proportional draw.
const varianceFloor = 1e-4

// varianceFloorSubstitute is used when even the cross-stratum mean of
// positive var_v values falls below varianceFloor.
const varianceFloorSubstitute = 0.01

// outlierSigma is the width, in standard deviations, of the acceptance
// band used by the second-pass outlier filter.
const outlierSigma = 2.0

// StratumStats is Stats(s) from spec.md §3: the running statistics for
// one stratum, rewritten from scratch by each round that samples it
// (see FinalizeRound).
type StratumStats struct {
	Count  int     // samples accepted for time statistics this round
	SumT   float64 // sufficient statistic: sum of accepted per-record times (ms)
	SumSqT float64 // sufficient statistic: sum of squares of accepted times (ms^2)
	AvgT   float64 // computable only when Count >= 1
	VarT   float64 // computable only when Count >= 2
	VarV   float64 // variance of the reduced value contributed this round
}

// ComputeAvg returns AvgT and whether it is defined (Count >= 1).
func (s *StratumStats) ComputeAvg() (float64, bool) {
	if s == nil || s.Count < 1 {
		return 0, false
	}
	return s.AvgT, true
}

// ComputeVar returns VarT and whether it is defined (Count >= 2).
func (s *StratumStats) ComputeVar() (float64, bool) {
	if s == nil || s.Count < 2 {
		return 0, false
	}
	return s.VarT, true
}

// Model holds Stats(s) for every stratum observed so far. It is owned
// exclusively by the Controller; nothing here is safe for concurrent use
// from multiple goroutines (the collector, not the model, deals with
// concurrent ingestion).
type Model struct {
	strata map[string]*StratumStats
	order  []string
}

// NewModel returns an empty statistics model.
func NewModel() *Model {
	return &Model{strata: make(map[string]*StratumStats)}
}

// Strata returns the strata observed so far, in first-seen order.
func (m *Model) Strata() []string {
	return append([]string(nil), m.order...)
}

// Get returns Stats(s), creating an empty entry on first observation.
func (m *Model) Get(stratum string) *StratumStats {
	s, ok := m.strata[stratum]
	if !ok {
		s = &StratumStats{}
		m.strata[stratum] = s
		m.order = append(m.order, stratum)
	}
	return s
}

// Lookup returns Stats(s) without creating it.
func (m *Model) Lookup(stratum string) (*StratumStats, bool) {
	s, ok := m.strata[stratum]
	return s, ok
}

// FinalizeRound rewrites Stats(s).{Count,SumT,SumSqT,AvgT,VarT} for every
// stratum named in raw, from that round's collected per-record timings in
// milliseconds (§3 Lifecycle: "rewritten each round ... not cumulatively").
// Strata not present in raw keep their previous avg_t/var_t: a round that
// drew zero samples from a stratum should not zero out the sampler's
// memory of that stratum's cost.
func (m *Model) FinalizeRound(raw map[string][]float64) {
	for stratum, samples := range raw {
		s := m.Get(stratum)
		accepted := filterOutliers(samples)
		s.Count = len(accepted)
		s.SumT, s.SumSqT = sumAndSumSq(accepted)
		if s.Count >= 1 {
			s.AvgT = s.SumT / float64(s.Count)
		}
		if s.Count >= 2 {
			s.VarT = sampleVariance(accepted, s.AvgT)
		} else {
			s.VarT = 0
		}
	}
}

// filterOutliers runs the two-pass outlier filter described in spec.md
// §4.1: a sample v is accepted only if |v - avg| < 2*sqrt(var), where avg
// and var come from the pre-filter first pass. If the first pass has no
// spread (var == 0, including n < 2), nothing can be an outlier.
func filterOutliers(samples []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	sum, _ := sumAndSumSq(samples)
	n := float64(len(samples))
	avg1 := sum / n
	var var1 float64
	if len(samples) >= 2 {
		var1 = sampleVariance(samples, avg1)
	}
	if var1 <= 0 {
		return append([]float64(nil), samples...)
	}
	band := outlierSigma * math.Sqrt(var1)
	accepted := make([]float64, 0, len(samples))
	for _, v := range samples {
		if math.Abs(v-avg1) < band {
			accepted = append(accepted, v)
		}
	}
	return accepted
}

func sumAndSumSq(samples []float64) (sum, sumsq float64) {
	for _, v := range samples {
		sum += v
		sumsq += v * v
	}
	return
}

func sampleVariance(samples []float64, mean float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var ss float64
	for _, v := range samples {
		d := v - mean
		ss += d * d
	}
	return ss / float64(len(samples)-1)
}

// SetReducedVariance records the pre-floor var_v for stratum s, supplied
// externally by the estimator (§4.6).
func (m *Model) SetReducedVariance(stratum string, v float64) {
	m.Get(stratum).VarV = v
}

// ApplyVarianceFloor enforces the floor invariant of spec.md §4.1 across
// every known stratum: any var_v below varianceFloor is replaced by the
// cross-stratum mean of the positive var_v values, or by
// varianceFloorSubstitute if that mean is itself too small.
func (m *Model) ApplyVarianceFloor() {
	var sum float64
	var n int
	for _, s := range m.strata {
		if s.VarV > 0 {
			sum += s.VarV
			n++
		}
	}
	fallback := varianceFloorSubstitute
	if n > 0 {
		mean := sum / float64(n)
		if mean >= varianceFloor {
			fallback = mean
		}
	}
	for _, s := range m.strata {
		if s.VarV < varianceFloor {
			s.VarV = fallback
		}
	}
}
