package evstats

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/thsslxf/hadoop-ev/pkg/collector"
)

func TestClientServerRoundTrip(t *testing.T) {
	coll := collector.New()
	srv := New(coll)
	addr, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	client := NewClient(addr)
	if err := client.AddTime("A", "rec-1", 1500); err != nil {
		t.Fatalf("AddTime: %v", err)
	}
	if err := client.AddReduce([]string{"A"}, []float64{1.0}, []float64{0.1}); err != nil {
		t.Fatalf("AddReduce: %v", err)
	}
	client.AddMapperTime(0, 10)
	client.AddReducerTime(0, 5)

	// give the background http.Serve goroutine a moment to finish handling.
	time.Sleep(50 * time.Millisecond)

	snap := coll.SnapshotAndClear()
	if len(snap.TimesByStratumMs["A"]) != 1 {
		t.Errorf("len(TimesByStratumMs[A]) = %d, want 1", len(snap.TimesByStratumMs["A"]))
	}
	if len(snap.ReduceByStratum["A"]) != 1 {
		t.Errorf("len(ReduceByStratum[A]) = %d, want 1", len(snap.ReduceByStratum["A"]))
	}
	if len(snap.MapperTimes) != 1 || len(snap.ReducerTimes) != 1 {
		t.Errorf("task timings not recorded: mapper=%d reducer=%d", len(snap.MapperTimes), len(snap.ReducerTimes))
	}
}

func TestStartIsIdempotent(t *testing.T) {
	srv := New(collector.New())
	addr1, err := srv.Start(0)
	if err != nil {
		t.Fatal(err)
	}
	addr2, err := srv.Start(0)
	if err != nil {
		t.Fatal(err)
	}
	if addr1 != addr2 {
		t.Errorf("Start() returned different addresses on repeat calls: %s vs %s", addr1, addr2)
	}
}

func TestStartBindsConfiguredPort(t *testing.T) {
	// port 0 would ask the OS for any free port; get one that way first,
	// stop listening, then ask Start to rebind exactly that port.
	probe, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	port := probe.Addr().(*net.TCPAddr).Port
	probe.Close()

	srv := New(collector.New())
	addr, err := srv.Start(port)
	if err != nil {
		t.Fatalf("Start(%d): %v", port, err)
	}
	if got := addr[len(addr)-len(fmtPort(port)):]; got != fmtPort(port) {
		t.Errorf("Start(%d) bound %s, want port %d", port, addr, port)
	}
}

func fmtPort(port int) string {
	return fmt.Sprintf(":%d", port)
}

func TestClientAddTimeRejectsMalformed(t *testing.T) {
	coll := collector.New()
	srv := New(coll)
	addr, err := srv.Start(0)
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(addr)
	if err := client.AddTime("A", "rec-1", -5); err == nil {
		t.Error("expected error pushing a negative duration")
	}
}
