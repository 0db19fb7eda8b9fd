package estimator

import (
	"math"
	"testing"

	"github.com/thsslxf/hadoop-ev/pkg/stats"
)

func TestIngestAccumulatesWeightedMean(t *testing.T) {
	e := New()
	e.Ingest("A", 10.0, 5)
	e.Ingest("A", 20.0, 5)

	mean, ok := e.MeanV("A")
	if !ok {
		t.Fatal("expected A to be sampled")
	}
	if mean != 15.0 {
		t.Errorf("MeanV(A) = %v, want 15 (equal-weight average of 10 and 20)", mean)
	}
	if e.SampledCount("A") != 10 {
		t.Errorf("SampledCount(A) = %d, want 10", e.SampledCount("A"))
	}
}

func TestIngestIgnoresZeroCount(t *testing.T) {
	e := New()
	e.Ingest("A", 99.0, 0)
	if _, ok := e.MeanV("A"); ok {
		t.Error("a zero-count ingest should not create a stratum entry")
	}
}

func TestEstimateSumsAcrossStrata(t *testing.T) {
	e := New()
	e.Ingest("A", 10.0, 20)
	e.Ingest("B", 5.0, 20)

	m := stats.NewModel()
	m.Get("A").VarV = 1.0
	m.Get("B").VarV = 4.0

	res := e.Estimate(m)
	if res.PointEstimate != 15.0 {
		t.Errorf("PointEstimate = %v, want 15", res.PointEstimate)
	}
	wantVariance := 1.0/20 + 4.0/20
	if math.Abs(res.Variance-wantVariance) > 1e-9 {
		t.Errorf("Variance = %v, want %v", res.Variance, wantVariance)
	}
	wantMargin := 1.96 * math.Sqrt(wantVariance)
	if math.Abs(res.MarginOfError-wantMargin) > 1e-9 {
		t.Errorf("MarginOfError = %v, want %v", res.MarginOfError, wantMargin)
	}
	if res.Lower != res.PointEstimate-wantMargin || res.Upper != res.PointEstimate+wantMargin {
		t.Errorf("bounds not centered on point estimate: %+v", res)
	}
}

func TestEstimateWithNoSamplesIsZero(t *testing.T) {
	e := New()
	res := e.Estimate(stats.NewModel())
	if res.PointEstimate != 0 || res.Variance != 0 {
		t.Errorf("expected zero result with no ingested strata, got %+v", res)
	}
}
