// Package jobrt defines the job-runtime boundary (§4.4/§6): submitting one
// round's per-stratum sample plan to the cluster and waiting for it to
// finish. The Controller blocks on exactly one Runtime call per round —
// the single suspension point of the state machine.
package jobrt

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// StratumPlan is one stratum's requested sample count for a round.
type StratumPlan struct {
	Stratum string `json:"stratum"`
	Count   int    `json:"count"`
}

// RoundInput is everything a round needs to execute: which round it is,
// the wall-clock deadline for the whole run, and how many records to draw
// from each stratum.
type RoundInput struct {
	Round    int           `json:"round"`
	Deadline time.Time     `json:"deadline"`
	Plan     []StratumPlan `json:"plan"`
}

// RoundReport is the runtime's acknowledgement that a round finished.
// It carries no per-record data: that flows out of band through the
// StatsSink (or, for a real cluster, through the evstats push server) as
// the round executes, per §6's ingestion protocol.
type RoundReport struct {
	Round     int  `json:"round"`
	Completed bool `json:"completed"`
	NodesUsed int  `json:"nodesUsed"`
}

// StatsSink is the subset of the collector's ingestion surface a Runtime
// needs to push samples into as a round executes. It is satisfied by
// *collector.Collector without jobrt importing that package.
type StatsSink interface {
	AddTime(stratum, recordKey string, micros int64) error
	AddReduce(strata []string, values, variances []float64) error
	AddMapperTime(startMs, durationMs int64)
	AddReducerTime(startMs, durationMs int64)
}

// Runtime submits one round's sample plan to the cluster and blocks until
// it completes or ctx is done. Implementations that execute out of
// process (cluster.HTTPRuntime) may ignore sink, since their workers push
// stats directly to the controller's evstats server instead.
type Runtime interface {
	SubmitRound(ctx context.Context, input RoundInput, sink StatsSink) (RoundReport, error)
}

// Generator produces one synthetic (reduced value, processing time)
// observation for a stratum. LocalRuntime uses one per stratum.
type Generator func(rng *rand.Rand) (value float64, timeMs float64)

// LocalRuntime executes rounds in process against caller-supplied
// per-stratum generators, pushing samples straight into the StatsSink
// passed to SubmitRound. It underpins single-node runs and the
// deterministic end-to-end scenarios in the controller's own tests: a
// seeded *rand.Rand makes every round reproducible.
type LocalRuntime struct {
	gens map[string]Generator
	rng  *rand.Rand

	// Default generates samples for any stratum not present in gens. A
	// nil Default makes an unknown stratum an error instead.
	Default Generator
}

// NewLocalRuntime returns a Runtime that, for each stratum named in gens,
// draws samples from the corresponding Generator using rng.
func NewLocalRuntime(gens map[string]Generator, rng *rand.Rand) *LocalRuntime {
	return &LocalRuntime{gens: gens, rng: rng}
}

// SubmitRound draws input.Plan's requested counts from the configured
// generators, pushing each record's time and each stratum's aggregated
// reduced value/variance into sink.
func (lr *LocalRuntime) SubmitRound(ctx context.Context, input RoundInput, sink StatsSink) (RoundReport, error) {
	start := time.Now()
	for _, sp := range input.Plan {
		if err := ctx.Err(); err != nil {
			return RoundReport{}, fmt.Errorf("round %d: %w", input.Round, err)
		}
		gen, ok := lr.gens[sp.Stratum]
		if !ok {
			if lr.Default == nil {
				return RoundReport{}, fmt.Errorf("round %d: no generator registered for stratum %q", input.Round, sp.Stratum)
			}
			gen = lr.Default
		}
		if sp.Count <= 0 {
			continue
		}
		values := make([]float64, 0, sp.Count)
		for i := 0; i < sp.Count; i++ {
			v, tMs := gen(lr.rng)
			sink.AddTime(sp.Stratum, fmt.Sprintf("%s-%d", sp.Stratum, i), int64(tMs*1000))
			values = append(values, v)
		}
		mean, variance := meanAndVariance(values)
		sink.AddReduce([]string{sp.Stratum}, []float64{mean}, []float64{variance})
	}
	sink.AddMapperTime(start.UnixMilli(), time.Since(start).Milliseconds())
	return RoundReport{Round: input.Round, Completed: true, NodesUsed: 1}, nil
}

func meanAndVariance(values []float64) (mean, variance float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, ss / float64(len(values)-1)
}
