// Package controller drives the INIT -> ROUND(r) -> FINAL state machine
// (C5): each round plans a sample, blocks on the single suspension point
// of the run (waiting for the job runtime to finish the round), folds
// the results into the statistics model and estimator, and decides
// whether another round fits in the remaining deadline.
package controller

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/thsslxf/hadoop-ev/pkg/analyze"
	"github.com/thsslxf/hadoop-ev/pkg/catalog"
	"github.com/thsslxf/hadoop-ev/pkg/collector"
	"github.com/thsslxf/hadoop-ev/pkg/config"
	"github.com/thsslxf/hadoop-ev/pkg/estimator"
	"github.com/thsslxf/hadoop-ev/pkg/evstats"
	"github.com/thsslxf/hadoop-ev/pkg/jobrt"
	"github.com/thsslxf/hadoop-ev/pkg/planner"
	"github.com/thsslxf/hadoop-ev/pkg/sampler"
	"github.com/thsslxf/hadoop-ev/pkg/stats"
)

// Controller owns one run's worth of state: the model, the estimator,
// and the strategy/planner pair that decide each round's sample plan.
type Controller struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	runtime   jobrt.Runtime
	coll      *collector.Collector
	statsSrv  *evstats.Server
	statsAddr string
	model     *stats.Model
	est       *estimator.Estimator
	plan      *planner.Planner
	rng       *rand.Rand

	// history records each round's confidence-interval half-width,
	// for the informational convergence diagnostic only.
	history []analyze.Point
}

// New returns a Controller ready to Run once. It starts this
// Controller's own evstats ingestion server here, at construction, not
// lazily on first use: an -agents cluster
// run needs the address available before it can hand any work out.
func New(cfg *config.Config, cat *catalog.Catalog, runtime jobrt.Runtime, coll *collector.Collector, rng *rand.Rand) (*Controller, error) {
	statsSrv := evstats.New(coll)
	addr, err := statsSrv.Start(cfg.EvStats.ServerPort)
	if err != nil {
		return nil, fmt.Errorf("starting evstats server: %w", err)
	}

	return &Controller{
		cfg:       cfg,
		catalog:   cat,
		runtime:   runtime,
		coll:      coll,
		statsSrv:  statsSrv,
		statsAddr: addr,
		model:     stats.NewModel(),
		est:       estimator.New(),
		plan:      &planner.Planner{SampleTimePctg: cfg.Sample.SampleTimePctg, Slots: cfg.Slots()},
		rng:       rng,
	}, nil
}

// StatsAddr returns the address of this Controller's evstats ingestion
// server, for handing to cluster agent processes (-stats flag). Rounds
// submitted through cluster.HTTPRuntime do not carry this address; each
// agent is given it when the agent is started.
func (c *Controller) StatsAddr() string {
	return c.statsAddr
}

// Run executes the full INIT -> ROUND(r) -> FINAL state machine and
// returns the stratified-sum estimate once the deadline is exhausted or
// the planner decides another round would not fit.
func (c *Controller) Run(ctx context.Context) (estimator.Result, error) {
	if c.cfg.Slots() <= 0 {
		return estimator.Result{}, &ConfigurationError{Reason: "datanodes * tasktrackerMapTasksMaximum must be > 0"}
	}
	strata := c.catalog.Strata
	if len(strata) == 0 {
		return estimator.Result{}, &ConfigurationError{Reason: "no strata discovered in catalog"}
	}

	start := time.Now()
	deadline := start.Add(time.Duration(c.cfg.Deadline.Seconds) * time.Second)

	round := 1
	n := c.cfg.Sample.SizePerFolder * len(strata)

	for {
		if time.Now().After(deadline) {
			if round == 1 {
				return estimator.Result{}, &DeadlineExceeded{Round: round}
			}
			break
		}

		strategy := c.strategyFor(round)
		roundPlan := strategy.Plan(c.model, strata, n)

		roundCtx, cancel := context.WithDeadline(ctx, deadline)
		roundStart := time.Now()
		_, err := c.runtime.SubmitRound(roundCtx, jobrt.RoundInput{Round: round, Deadline: deadline, Plan: roundPlan}, c.coll)
		cancel()
		if err != nil {
			return estimator.Result{}, &RoundSubmissionError{Round: round, Err: err}
		}
		tR := time.Since(roundStart)

		snap := c.coll.SnapshotAndClear()
		sampled := c.foldSnapshot(round, snap)
		if sampled == 0 {
			return estimator.Result{}, &SamplerStarvation{Round: round}
		}
		c.model.ApplyVarianceFloor()

		tauR := c.averageCost(snap)
		elapsed := time.Since(start)
		interim := c.est.Estimate(c.model)
		c.history = append(c.history, analyze.Point{X: float64(round), Y: interim.MarginOfError})
		fmt.Printf("round %d: sampled %d records, avg cost %.2fms, elapsed %s, CI half-width %.6f\n",
			round, sampled, tauR.Seconds()*1000, elapsed, interim.MarginOfError)

		next, done := c.plan.NextRoundSize(round+1, sampled, tauR, tR, elapsed, deadline.Sub(start))
		if done {
			break
		}
		n = next
		round++
	}

	res := c.est.Estimate(c.model)
	fmt.Printf("RESULT ESTIMATION: sum(avg(Loc)) = %.6f ± %.6f (95%% confidence)\n", res.PointEstimate, res.MarginOfError)
	fmt.Printf("per-record latency: p50 %dus, p99 %dus\n",
		c.coll.GlobalLatencyPercentile(50), c.coll.GlobalLatencyPercentile(99))

	diag := c.Diagnostics()
	fmt.Printf("diagnostics: linear-limit round %.0f, saturation round %.0f, knee round %.0f, confidence %.2f\n",
		diag.Analysis.LinearLimit.X, diag.Analysis.SaturationPoint.X, diag.Knee.X, diag.Confidence)

	return res, nil
}

// strategyFor chooses the allocation strategy for a round: round 1 is
// always uniform, since there is no variance estimate yet to weight by.
func (c *Controller) strategyFor(round int) sampler.Strategy {
	if round == 1 {
		return sampler.UniformStrategy{PerStratum: c.cfg.Sample.SizePerFolder}
	}
	switch c.cfg.Sample.Policy {
	case config.PolicyProportional:
		return sampler.ProportionalStrategy{Rng: c.rng}
	case config.PolicyEqualPerFolder:
		return sampler.UniformStrategy{PerStratum: c.cfg.Sample.SizePerFolder}
	default:
		return sampler.MHStrategy{Rng: c.rng}
	}
}

// foldSnapshot finalizes the round's timing statistics, folds its
// reduced values into the estimator, and returns how many records were
// sampled across all strata this round.
func (c *Controller) foldSnapshot(round int, snap collector.RoundSnapshot) int {
	c.model.FinalizeRound(snap.TimesByStratumMs)

	sampled := 0
	for stratum, times := range snap.TimesByStratumMs {
		sampled += len(times)

		samples := snap.ReduceByStratum[stratum]
		if len(samples) == 0 {
			continue
		}
		var sumV, sumVar float64
		for _, s := range samples {
			sumV += s.Value
			sumVar += s.Variance
		}
		meanV := sumV / float64(len(samples))
		meanVar := sumVar / float64(len(samples))

		c.model.SetReducedVariance(stratum, meanVar)
		c.est.Ingest(stratum, meanV, len(times))
	}
	return sampled
}

// averageCost returns this round's sample-weighted average per-record
// processing time, across every stratum it sampled.
func (c *Controller) averageCost(snap collector.RoundSnapshot) time.Duration {
	var sumMs float64
	var n int
	for _, times := range snap.TimesByStratumMs {
		for _, t := range times {
			sumMs += t
			n++
		}
	}
	if n == 0 {
		return time.Millisecond
	}
	return time.Duration(sumMs/float64(n)*float64(time.Millisecond))
}

// Diagnostics is the informational convergence summary produced over the
// run's per-round confidence-interval history.
type Diagnostics struct {
	Analysis   analyze.Analysis // linear-decay limit and saturation transitions
	Knee       analyze.Point    // round of maximum curvature in the half-width curve
	Confidence float64          // how monotonically the half-width shrank, in [0,1]
}

// Diagnostics runs the convergence detector over the run's per-round
// confidence-interval history. It has no effect on the run itself; it
// exists so an operator can see, after the fact, whether the run
// converged cleanly or was still shrinking linearly when the deadline
// hit.
func (c *Controller) Diagnostics() Diagnostics {
	d := &analyze.Detector{LinearThreshold: 0.5, SatThreshold: 0.05}
	return Diagnostics{
		Analysis:   d.Analyze(c.history),
		Knee:       analyze.FindKnee(c.history),
		Confidence: analyze.CalculateConfidence(c.history),
	}
}
