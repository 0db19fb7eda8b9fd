// Package evstats implements the stats-ingestion push protocol of
// spec.md §6: a small HTTP server in front of the collector that agent
// nodes push ADD_TIME/ADD_REDUCE/ADD_MAPPER_TIME/ADD_REDUCER_TIME
// submissions into, and the client side agents use to push them.
//
// Each Controller constructs and starts its own Server, once, when the
// Controller is created, and every round of that Controller's run reuses
// the same listener and port.
package evstats

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"

	"github.com/thsslxf/hadoop-ev/pkg/collector"
)

// portRangeStart and portRangeEnd bound the randomized port picked for
// the ingestion server, matching spec.md §6.
const (
	portRangeStart = 10593
	portRangeEnd   = 11593
)

// Server is an ingestion endpoint in front of a Collector.
// It holds no reference back to whatever owns the Collector: it is a
// pure message sink, never a caller into the controller.
type Server struct {
	coll     *collector.Collector
	listener net.Listener
	addr     string
}

// New returns a Server that ingests into coll. The server does not
// listen until Start is called.
func New(coll *collector.Collector) *Server {
	return &Server{coll: coll}
}

// Start binds port and begins serving in the background. port == 0
// picks randomly in [portRangeStart, portRangeEnd), per spec.md §5; a
// nonzero port (config key evstats.serverport) binds exactly that port,
// so an operator can know the ingestion address before starting any
// agent processes instead of reading it off the controller's log line.
// Calling Start again after a successful bind is a no-op that returns
// the already-bound address.
func (s *Server) Start(port int) (string, error) {
	if s.listener != nil {
		return s.addr, nil
	}

	if port != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return "", fmt.Errorf("evstats: binding configured port %d: %w", port, err)
		}
		return s.serve(ln), nil
	}

	var lastErr error
	for attempt := 0; attempt < 20; attempt++ {
		p := portRangeStart + rand.Intn(portRangeEnd-portRangeStart)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err != nil {
			lastErr = err
			continue
		}
		return s.serve(ln), nil
	}
	return "", fmt.Errorf("evstats: could not bind a port in [%d, %d): %w", portRangeStart, portRangeEnd, lastErr)
}

// serve records ln as the server's listener, mounts the four push
// endpoints, and starts serving in the background.
func (s *Server) serve(ln net.Listener) string {
	s.listener = ln
	s.addr = ln.Addr().String()
	mux := http.NewServeMux()
	mux.HandleFunc("/add_time", s.handleAddTime)
	mux.HandleFunc("/add_reduce", s.handleAddReduce)
	mux.HandleFunc("/add_mapper_time", s.handleAddMapperTime)
	mux.HandleFunc("/add_reducer_time", s.handleAddReducerTime)
	go func() {
		if err := http.Serve(ln, mux); err != nil {
			fmt.Printf("evstats server on %s stopped: %v\n", s.addr, err)
		}
	}()
	fmt.Printf("evstats ingestion server listening on %s\n", s.addr)
	return s.addr
}

// Addr returns the server's listen address, or "" if it has not started.
func (s *Server) Addr() string {
	return s.addr
}

type addTimeRequest struct {
	Stratum   string `json:"stratum"`
	RecordKey string `json:"recordKey"`
	Micros    int64  `json:"micros"`
}

func (s *Server) handleAddTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req addTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.coll.AddTime(req.Stratum, req.RecordKey, req.Micros); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type addReduceRequest struct {
	Strata    []string  `json:"strata"`
	Values    []float64 `json:"values"`
	Variances []float64 `json:"variances"`
}

func (s *Server) handleAddReduce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req addReduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.coll.AddReduce(req.Strata, req.Values, req.Variances); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type taskTimeRequest struct {
	StartMs    int64 `json:"startMs"`
	DurationMs int64 `json:"durationMs"`
}

func (s *Server) handleAddMapperTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req taskTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	s.coll.AddMapperTime(req.StartMs, req.DurationMs)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAddReducerTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req taskTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}
	s.coll.AddReducerTime(req.StartMs, req.DurationMs)
	w.WriteHeader(http.StatusOK)
}
