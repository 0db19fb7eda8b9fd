package controller

import "fmt"

// ConfigurationError reports a run that cannot even start: no strata, no
// parallel slots, or an otherwise unusable configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// RoundSubmissionError wraps a failure to execute a round against the
// job runtime (cluster unreachable, agent error, context canceled).
type RoundSubmissionError struct {
	Round int
	Err   error
}

func (e *RoundSubmissionError) Error() string {
	return fmt.Sprintf("round %d submission failed: %v", e.Round, e.Err)
}

func (e *RoundSubmissionError) Unwrap() error { return e.Err }

// StatsIngestError reports a round whose stats pushes were rejected or
// never arrived, distinct from a RoundSubmissionError because the round
// itself reported success.
type StatsIngestError struct {
	Round  int
	Reason string
}

func (e *StatsIngestError) Error() string {
	return fmt.Sprintf("round %d stats ingest error: %s", e.Round, e.Reason)
}

// DeadlineExceeded reports that the run's deadline passed before any
// round could complete, so no estimate exists at all.
type DeadlineExceeded struct {
	Round int
}

func (e *DeadlineExceeded) Error() string {
	return fmt.Sprintf("deadline exceeded before round %d could complete", e.Round)
}

// SamplerStarvation reports a round that drew zero records from every
// stratum it planned to sample — the cluster ran, but nothing came back.
type SamplerStarvation struct {
	Round int
}

func (e *SamplerStarvation) Error() string {
	return fmt.Sprintf("round %d sampled zero records across all strata", e.Round)
}
