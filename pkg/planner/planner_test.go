package planner

import (
	"testing"
	"time"
)

func TestNextRoundSizeRound2IsCapped(t *testing.T) {
	p := &Planner{SampleTimePctg: 0.30, Slots: 8}
	next, done := p.NextRoundSize(2, 100, 50*time.Millisecond, 700*time.Millisecond,
		1*time.Second, 120*time.Second)
	if done {
		t.Fatal("expected more rounds, got done")
	}
	uncapped := next
	p2 := &Planner{SampleTimePctg: 1.0, Slots: 8}
	uncappedNext, _ := p2.NextRoundSize(2, 100, 50*time.Millisecond, 700*time.Millisecond,
		1*time.Second, 120*time.Second)
	if uncapped >= uncappedNext {
		t.Errorf("round-2 cap should shrink the estimate: capped=%d uncapped=%d", uncapped, uncappedNext)
	}
}

func TestNextRoundSizeRoundThreePlusUncapped(t *testing.T) {
	p := &Planner{SampleTimePctg: 0.30, Slots: 8}
	next, done := p.NextRoundSize(3, 200, 50*time.Millisecond, 1300*time.Millisecond,
		3*time.Second, 120*time.Second)
	if done {
		t.Fatal("expected more rounds")
	}
	if next <= 0 {
		t.Errorf("next = %d, want > 0", next)
	}
}

func TestNextRoundSizeDoneWhenDeadlineExhausted(t *testing.T) {
	p := &Planner{SampleTimePctg: 0.30, Slots: 8}
	next, done := p.NextRoundSize(3, 200, 50*time.Millisecond, 1300*time.Millisecond,
		119*time.Second, 120*time.Second)
	if !done {
		t.Errorf("expected done when deadline nearly exhausted, got next=%d", next)
	}
}

func TestNextRoundSizeGuardsZeroInputs(t *testing.T) {
	p := &Planner{Slots: 0}
	if _, done := p.NextRoundSize(2, 1, time.Second, time.Second, 0, time.Minute); !done {
		t.Error("expected done with zero Slots")
	}
	p2 := &Planner{Slots: 4}
	if _, done := p2.NextRoundSize(2, 1, 0, time.Second, 0, time.Minute); !done {
		t.Error("expected done with zero tauR")
	}
}
