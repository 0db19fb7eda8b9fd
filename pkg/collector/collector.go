// Package collector implements the stats collector (C2): concurrent,
// per-task ingestion of timing and reduce-side results, with the
// round-scoped collections the Controller reads and clears between
// rounds.
//
// The locking discipline — one mutex per collection, readers snapshot
// then clear, writers append and release, never nested — follows the
// same shape as a MapReduce master guarding its intermediate-file and
// output-file maps behind separate locks.
package collector

import (
	"fmt"
	"os"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// TimeSample is one ADD_TIME push: a per-record processing time.
type TimeSample struct {
	Stratum   string
	RecordKey string
	Micros    int64
}

// ReduceSample is one (value, variance) pair contributed by a round's
// reducer for a stratum.
type ReduceSample struct {
	Value    float64
	Variance float64
}

// TaskTiming is a start/duration pair for one mapper or reducer task.
type TaskTiming struct {
	StartMs    int64
	DurationMs int64
}

// Collector is the single shared sink that worker tasks push into,
// concurrently, over the course of one round.
type Collector struct {
	timeMu     sync.Mutex
	evStatsSet []TimeSample

	reduceMu      sync.Mutex
	reduceResults map[string][]ReduceSample

	taskMu       sync.Mutex
	mapperTimes  []TaskTiming
	reducerTimes []TaskTiming

	histMu sync.Mutex
	hist   *hdrhistogram.Histogram // process-lifetime diagnostic, never cleared
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{
		reduceResults: make(map[string][]ReduceSample),
		hist:          hdrhistogram.New(1, 3600*1000*1000, 3),
	}
}

// AddTime ingests one per-record timing sample (ADD_TIME). A malformed
// submission (negative duration) is logged and dropped; an empty stratum
// is accepted, since stratum("") is the documented result of a malformed
// input path (§6) and the Controller is expected to continue regardless.
func (c *Collector) AddTime(stratum, recordKey string, micros int64) error {
	if micros < 0 {
		fmt.Fprintf(os.Stderr, "warning: dropping ADD_TIME for %s/%s: negative duration %dus\n", stratum, recordKey, micros)
		return fmt.Errorf("stats ingest: negative duration")
	}

	c.timeMu.Lock()
	c.evStatsSet = append(c.evStatsSet, TimeSample{Stratum: stratum, RecordKey: recordKey, Micros: micros})
	c.timeMu.Unlock()

	c.histMu.Lock()
	_ = c.hist.RecordValue(micros)
	c.histMu.Unlock()
	return nil
}

// AddReduce ingests a batch of per-stratum reducer outputs (ADD_REDUCE).
// Mismatched slice lengths indicate a malformed push and the whole batch
// is dropped.
func (c *Collector) AddReduce(strata []string, values, variances []float64) error {
	if len(strata) == 0 || len(strata) != len(values) || len(strata) != len(variances) {
		fmt.Fprintf(os.Stderr, "warning: dropping malformed ADD_REDUCE batch (strata=%d values=%d variances=%d)\n",
			len(strata), len(values), len(variances))
		return fmt.Errorf("stats ingest: malformed ADD_REDUCE batch")
	}

	c.reduceMu.Lock()
	for i, s := range strata {
		c.reduceResults[s] = append(c.reduceResults[s], ReduceSample{Value: values[i], Variance: variances[i]})
	}
	c.reduceMu.Unlock()
	return nil
}

// AddMapperTime ingests one mapper task's start/duration pair.
func (c *Collector) AddMapperTime(startMs, durationMs int64) {
	c.taskMu.Lock()
	c.mapperTimes = append(c.mapperTimes, TaskTiming{StartMs: startMs, DurationMs: durationMs})
	c.taskMu.Unlock()
}

// AddReducerTime ingests one reducer task's start/duration pair.
func (c *Collector) AddReducerTime(startMs, durationMs int64) {
	c.taskMu.Lock()
	c.reducerTimes = append(c.reducerTimes, TaskTiming{StartMs: startMs, DurationMs: durationMs})
	c.taskMu.Unlock()
}

// RoundSnapshot is what the Controller reads out of the collector at the
// end of a round, before clearing it (§4.5 "Between-round discipline").
type RoundSnapshot struct {
	TimesByStratumMs map[string][]float64 // per-record times, converted to milliseconds
	ReduceByStratum  map[string][]ReduceSample
	MapperTimes      []TaskTiming
	ReducerTimes     []TaskTiming
}

// SnapshotAndClear takes the mutex for each collection in turn, copies its
// contents out, clears it, and releases — satisfying the happens-before
// requirement of §5 without ever holding more than one lock at a time.
func (c *Collector) SnapshotAndClear() RoundSnapshot {
	snap := RoundSnapshot{TimesByStratumMs: make(map[string][]float64)}

	c.timeMu.Lock()
	for _, t := range c.evStatsSet {
		snap.TimesByStratumMs[t.Stratum] = append(snap.TimesByStratumMs[t.Stratum], float64(t.Micros)/1000.0)
	}
	c.evStatsSet = nil
	c.timeMu.Unlock()

	c.reduceMu.Lock()
	snap.ReduceByStratum = c.reduceResults
	c.reduceResults = make(map[string][]ReduceSample)
	c.reduceMu.Unlock()

	c.taskMu.Lock()
	snap.MapperTimes = c.mapperTimes
	snap.ReducerTimes = c.reducerTimes
	c.mapperTimes = nil
	c.reducerTimes = nil
	c.taskMu.Unlock()

	return snap
}

// GlobalLatencyPercentile reports the q-th percentile (0-100) of every
// per-record time ever ingested, across all rounds. It is purely
// diagnostic: it plays no part in the outlier-filtered avg_t/var_t the
// sampler and planner consume.
func (c *Collector) GlobalLatencyPercentile(q float64) int64 {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	return c.hist.ValueAtPercentile(q)
}
