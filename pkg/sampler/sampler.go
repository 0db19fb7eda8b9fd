// Package sampler implements the three allocation strategies (C3) the
// Controller chooses between each round: uniform-per-stratum for round
// 1, proportional-to-sigma quota allocation, and a
// Metropolis-Hastings walk over strata for later rounds.
package sampler

import (
	"math"
	"math/rand"

	"github.com/thsslxf/hadoop-ev/pkg/jobrt"
	"github.com/thsslxf/hadoop-ev/pkg/stats"
)

// Strategy allocates a round's total sample budget across strata.
type Strategy interface {
	Plan(model *stats.Model, strata []string, totalN int) []jobrt.StratumPlan
}

// UniformStrategy gives every named stratum the same fixed count,
// regardless of anything the model has learned. It is always used for
// round 1, since there is no variance estimate yet to weight by.
type UniformStrategy struct {
	PerStratum int
}

// Plan ignores totalN and the model: every stratum gets PerStratum.
func (u UniformStrategy) Plan(model *stats.Model, strata []string, totalN int) []jobrt.StratumPlan {
	plan := make([]jobrt.StratumPlan, 0, len(strata))
	for _, s := range strata {
		plan = append(plan, jobrt.StratumPlan{Stratum: s, Count: u.PerStratum})
	}
	return plan
}

// ProportionalStrategy allocates totalN across strata in proportion to
// sqrt(var_t(s)), the stratum's observed processing-time spread: strata
// whose cost is noisier get more of the next round's budget. Strata with
// no variance estimate yet (count < 2) fall back to a flat weight so
// they are not starved of further samples. Quotas are computed directly
// from the weights: no per-record draws or rejections take place, and Rng
// is not consulted.
type ProportionalStrategy struct {
	Rng *rand.Rand
}

// maxRejectionFactor is not referenced by any strategy in this package:
// ProportionalStrategy computes its quotas directly and makes no draws
// for such a limit to bound.
const maxRejectionFactor = 10

func (p ProportionalStrategy) Plan(model *stats.Model, strata []string, totalN int) []jobrt.StratumPlan {
	weights := make(map[string]float64, len(strata))
	var sum float64
	for _, s := range strata {
		w := 1.0
		if st, ok := model.Lookup(s); ok {
			if v, ok := st.ComputeVar(); ok && v > 0 {
				w = math.Sqrt(v)
			}
		}
		weights[s] = w
		sum += w
	}

	plan := make([]jobrt.StratumPlan, 0, len(strata))
	allocated := 0
	for i, s := range strata {
		var quota int
		if i == len(strata)-1 {
			quota = totalN - allocated // last stratum absorbs rounding remainder
		} else {
			quota = int(math.Round(float64(totalN) * weights[s] / sum))
			allocated += quota
		}
		if quota < 0 {
			quota = 0
		}
		plan = append(plan, jobrt.StratumPlan{Stratum: s, Count: quota})
	}
	return plan
}

// MHStrategy walks the known strata with a Metropolis-Hastings chain,
// per spec.md §4.3 Strategy C: a "current variable" cur starts at some
// stratum, and each of totalN trials first counts cur as accepted, then
// proposes a uniformly-drawn stratum y as the next cur and accepts the
// move with probability min(1,lambda). Moves toward a stratum with higher
// timing variance than cur are accepted more readily, so the walk favors
// high-variance strata; a small previous-round count on cur raises lambda
// and so makes the walk more likely to leave cur.
type MHStrategy struct {
	Rng *rand.Rand
}

func (mh MHStrategy) Plan(model *stats.Model, strata []string, totalN int) []jobrt.StratumPlan {
	if len(strata) == 0 || totalN <= 0 {
		return nil
	}

	counts := make(map[string]int, len(strata))
	for _, s := range strata {
		counts[s] = 0
	}

	cur := strata[0]
	for i := 0; i < totalN; i++ {
		counts[cur]++

		y := strata[mh.Rng.Intn(len(strata))]
		if y != cur && mh.accept(model, cur, y) {
			cur = y
		}
	}

	plan := make([]jobrt.StratumPlan, 0, len(strata))
	for _, s := range strata {
		plan = append(plan, jobrt.StratumPlan{Stratum: s, Count: counts[s]})
	}
	return plan
}

// accept decides whether the proposed stratum y replaces cur as the
// Metropolis-Hastings current variable, per spec.md §4.3 Strategy C:
//
//	alpha(x) = (count_x - 1) / 2
//	beta(x)  = (count_x - 1) / (2 * var_x)
//	lambda   = sqrt( alpha_y * beta_cur / ( beta_y * (alpha_cur - 1) ) )
//
// accepted with probability min(1, lambda). count_x/var_x are cur's and
// y's timing count and variance from the previous round's model
// (Stats(s).Count/VarT), held fixed for the whole walk, so the decision
// is a pure function of (cur, y, var_cur, count_cur, var_y, count_y) and
// the rng draw. (alpha_cur - 1) is zero or negative once cur's count is
// small, leaving lambda undefined; per spec.md §9 the move is then
// always accepted rather than computed against an undefined ratio.
func (mh MHStrategy) accept(model *stats.Model, cur, y string) bool {
	countCur, varCur, okCur := mhParams(model, cur)
	countY, varY, okY := mhParams(model, y)
	if !okCur || !okY {
		return true
	}

	alphaCur := float64(countCur-1) / 2
	betaCur := float64(countCur-1) / (2 * varCur)
	alphaY := float64(countY-1) / 2
	betaY := float64(countY-1) / (2 * varY)

	denom := betaY * (alphaCur - 1)
	if denom <= 0 {
		return true
	}
	lambda := math.Sqrt(alphaY * betaCur / denom)
	if lambda >= 1 {
		return true
	}
	return mh.Rng.Float64() < lambda
}

// mhParams returns stratum's timing count and variance for the
// acceptance formula, and whether both are defined (Count >= 2 so VarT
// is computable, and VarT > 0 so beta is defined). A stratum that has
// not been sampled enough to weigh has not earned a place in the
// formula yet, so the caller always accepts moving to or from it.
func mhParams(model *stats.Model, stratum string) (count int, variance float64, ok bool) {
	st, found := model.Lookup(stratum)
	if !found {
		return 0, 0, false
	}
	v, vok := st.ComputeVar()
	if !vok || v <= 0 {
		return st.Count, 0, false
	}
	return st.Count, v, true
}
