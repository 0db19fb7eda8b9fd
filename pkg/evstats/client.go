package evstats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client pushes stats submissions at a remote Server's ingestion
// endpoints. It satisfies jobrt.StatsSink, so an agent's round executor
// can use it as a drop-in replacement for a local *collector.Collector.
type Client struct {
	addr string
	http *http.Client
}

// NewClient returns a Client that pushes to the ingestion server at addr
// (host:port, as returned by Server.Addr).
func NewClient(addr string) *Client {
	return &Client{addr: addr, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) post(path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(fmt.Sprintf("http://%s%s", c.addr, path), "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("evstats push to %s failed: %s", path, resp.Status)
	}
	return nil
}

// AddTime pushes one ADD_TIME submission.
func (c *Client) AddTime(stratum, recordKey string, micros int64) error {
	return c.post("/add_time", addTimeRequest{Stratum: stratum, RecordKey: recordKey, Micros: micros})
}

// AddReduce pushes one ADD_REDUCE batch.
func (c *Client) AddReduce(strata []string, values, variances []float64) error {
	return c.post("/add_reduce", addReduceRequest{Strata: strata, Values: values, Variances: variances})
}

// AddMapperTime pushes one ADD_MAPPER_TIME submission. Transport errors
// are swallowed: task timing is diagnostic, not load-bearing for the
// estimator, so it must never hold up a round.
func (c *Client) AddMapperTime(startMs, durationMs int64) {
	if err := c.post("/add_mapper_time", taskTimeRequest{StartMs: startMs, DurationMs: durationMs}); err != nil {
		fmt.Printf("warning: push ADD_MAPPER_TIME to %s failed: %v\n", c.addr, err)
	}
}

// AddReducerTime pushes one ADD_REDUCER_TIME submission, with the same
// best-effort semantics as AddMapperTime.
func (c *Client) AddReducerTime(startMs, durationMs int64) {
	if err := c.post("/add_reducer_time", taskTimeRequest{StartMs: startMs, DurationMs: durationMs}); err != nil {
		fmt.Printf("warning: push ADD_REDUCER_TIME to %s failed: %v\n", c.addr, err)
	}
}
