// Package agent implements the worker-side round executor: an HTTP
// server that accepts a round's per-stratum sample plan, runs it, and
// pushes the resulting timing and reduced-value samples to the
// controller's evstats ingestion server as it goes.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/thsslxf/hadoop-ev/pkg/evstats"
	"github.com/thsslxf/hadoop-ev/pkg/jobrt"
)

// Server executes round plans it receives over HTTP, using runtime to do
// the actual sampling and statsClient to push the results back to the
// controller.
type Server struct {
	runtime     *jobrt.LocalRuntime
	statsClient *evstats.Client
}

// NewServer returns an agent Server that samples strata using gens,
// driven by rng, pushing every sample to the evstats server at
// statsAddr. defaultGen, if non-nil, handles any stratum not named in
// gens, for agents that do not know the full stratum list up front.
func NewServer(gens map[string]jobrt.Generator, rng *rand.Rand, statsAddr string, defaultGen jobrt.Generator) *Server {
	runtime := jobrt.NewLocalRuntime(gens, rng)
	runtime.Default = defaultGen
	return &Server{
		runtime:     runtime,
		statsClient: evstats.NewClient(statsAddr),
	}
}

// ListenAndServe starts the agent's HTTP server on port.
func (s *Server) ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/round", s.handleRound)
	mux.HandleFunc("/health", s.handleHealth)

	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("approxctl agent listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input jobrt.RoundInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if !input.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, input.Deadline)
		defer cancel()
	}

	report, err := s.runtime.SubmitRound(ctx, input, s.statsClient)
	if err != nil {
		http.Error(w, fmt.Sprintf("round execution failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		fmt.Printf("failed to encode round report: %v\n", err)
	}
}
