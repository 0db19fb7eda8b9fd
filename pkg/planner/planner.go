// Package planner implements the round planner (C4): deciding how many
// records the next round should sample, from how long the current round
// actually took and how much deadline remains.
package planner

import (
	"math"
	"time"
)

// Planner computes the next round's sample size from the deadline
// budget and the previous round's observed cost.
type Planner struct {
	// SampleTimePctg caps round 2's size at this fraction of the
	// remaining-time budget's record estimate, since round 2 is the
	// first round with any cost observation at all and a single bad
	// estimate should not consume the whole deadline.
	SampleTimePctg float64
	// Slots is P, the controller's parallel execution width.
	Slots int
}

// NextRoundSize returns the number of records round should sample
// (summed across strata), and whether the deadline is effectively
// exhausted and the controller should move to FINAL instead. round is
// the round about to be planned (the round that just finished plus
// one), so that the §4.4 time-percentage cap, which applies only to
// round 2, can key directly on round == 2.
//
//   - tauR is the previous round's observed average per-record processing time.
//   - tR is the previous round's observed wall-clock duration.
//   - nR is the number of records the previous round actually sampled.
//   - elapsed/deadline are measured from the run's start.
func (p *Planner) NextRoundSize(round int, nR int, tauR, tR, elapsed, deadline time.Duration) (nextN int, done bool) {
	if p.Slots <= 0 || tauR <= 0 {
		return 0, true
	}

	extraR := tR.Seconds() - tauR.Seconds()*float64(nR)/float64(p.Slots)
	remain := (deadline - elapsed).Seconds()

	budgetEstimate := int(math.Floor(remain / tauR.Seconds() * float64(p.Slots)))
	nextNf := (remain - extraR) / tauR.Seconds() * float64(p.Slots)
	next := int(math.Floor(nextNf))

	if round == 2 && p.SampleTimePctg > 0 {
		cap := int(math.Floor(float64(budgetEstimate) * p.SampleTimePctg))
		if next > cap {
			next = cap
		}
	}

	if next <= 0 {
		return 0, true
	}
	return next, false
}
