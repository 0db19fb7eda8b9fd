// Package cluster implements jobrt.Runtime by fanning a round's
// per-stratum sample plan out across a fixed set of agent nodes over
// HTTP, splitting each stratum's count evenly across the nodes assigned
// to it.
package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/thsslxf/hadoop-ev/pkg/jobrt"
)

// HTTPRuntime fans a round out to a fixed list of agent addresses.
type HTTPRuntime struct {
	nodes []string
}

// New returns an HTTPRuntime that distributes rounds across nodes.
func New(nodes []string) *HTTPRuntime {
	return &HTTPRuntime{nodes: nodes}
}

// SubmitRound splits every stratum's requested count evenly across the
// configured nodes and fans the per-node plans out concurrently. It
// ignores sink: agent nodes push their samples directly to the
// controller's evstats server as they execute, not through the response
// to this call.
func (c *HTTPRuntime) SubmitRound(ctx context.Context, input jobrt.RoundInput, sink jobrt.StatsSink) (jobrt.RoundReport, error) {
	if len(c.nodes) == 0 {
		return jobrt.RoundReport{}, fmt.Errorf("round %d: no agent nodes configured", input.Round)
	}

	perNode := splitPlan(input.Plan, len(c.nodes))

	var wg sync.WaitGroup
	errs := make([]error, len(c.nodes))
	used := make([]bool, len(c.nodes))

	for i, node := range c.nodes {
		plan := perNode[i]
		if len(plan) == 0 {
			continue
		}
		wg.Add(1)
		go func(idx int, host string, plan []jobrt.StratumPlan) {
			defer wg.Done()
			nodeInput := jobrt.RoundInput{Round: input.Round, Deadline: input.Deadline, Plan: plan}
			if err := c.runRemote(ctx, host, nodeInput); err != nil {
				errs[idx] = fmt.Errorf("node %s: %w", host, err)
				return
			}
			used[idx] = true
		}(i, node, plan)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return jobrt.RoundReport{}, fmt.Errorf("round %d: %w", input.Round, err)
		}
	}

	nodesUsed := 0
	for _, u := range used {
		if u {
			nodesUsed++
		}
	}
	return jobrt.RoundReport{Round: input.Round, Completed: true, NodesUsed: nodesUsed}, nil
}

// runRemote POSTs one node's share of the round plan to its /round
// endpoint and waits for acknowledgement, deriving the request timeout
// from the round's own deadline.
func (c *HTTPRuntime) runRemote(ctx context.Context, host string, input jobrt.RoundInput) error {
	data, err := json.Marshal(input)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/round", host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	timeout := time.Until(input.Deadline) + 5*time.Second
	if timeout < 10*time.Second {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent error (%s): %s", resp.Status, bytes.TrimSpace(body))
	}

	var report jobrt.RoundReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return err
	}
	if !report.Completed {
		return fmt.Errorf("agent reported round %d incomplete", input.Round)
	}
	return nil
}

// splitPlan divides each stratum's count as evenly as possible across n
// nodes, the same remainder-distribution shape the teacher used for
// Workers/QueueDepth.
func splitPlan(plan []jobrt.StratumPlan, n int) [][]jobrt.StratumPlan {
	out := make([][]jobrt.StratumPlan, n)
	for _, sp := range plan {
		base := sp.Count / n
		rem := sp.Count % n
		for i := 0; i < n; i++ {
			count := base
			if i < rem {
				count++
			}
			if count == 0 {
				continue
			}
			out[i] = append(out[i], jobrt.StratumPlan{Stratum: sp.Stratum, Count: count})
		}
	}
	return out
}
