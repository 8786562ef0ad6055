package detect

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// deniedAccessor simulates the cross-origin steady state: every read
// fails, and the test counts how many polls still happened.
type deniedAccessor struct {
	calls atomic.Int64
}

func (a *deniedAccessor) Document() (*Snapshot, error) {
	a.calls.Add(1)
	return nil, ErrAccessDenied
}

func (a *deniedAccessor) Location() (string, error) {
	a.calls.Add(1)
	return "", ErrAccessDenied
}

type staticAccessor struct {
	snap *Snapshot
}

func (a *staticAccessor) Document() (*Snapshot, error) { return a.snap, nil }
func (a *staticAccessor) Location() (string, error)    { return a.snap.URL, nil }

func TestDOMScan_AccessDeniedNeverStopsPolling(t *testing.T) {
	accessor := &deniedAccessor{}
	strat := NewDOMScan(accessor, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		strat.Run(ctx, func(c Candidate) {
			t.Errorf("unexpected candidate from denied frame: %+v", c)
		})
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	if n := accessor.calls.Load(); n < 3 {
		t.Errorf("polls = %d; want at least 3 despite access denials", n)
	}
}

func TestDOMScan_PrefersScoreClassedElements(t *testing.T) {
	snap := &Snapshot{Elements: []Element{
		{Classes: "intro-text", Text: "you are 50% through"},
		{Classes: "final-score-box", Text: "Result: 91%"},
	}}
	strat := NewDOMScan(&staticAccessor{snap: snap}, time.Millisecond)

	raw, ok := strat.scan()
	if !ok || raw != "91%" {
		t.Errorf("scan() = (%q, %v); want (%q, true)", raw, ok, "91%")
	}
}

func TestDOMScan_FallsBackToAnyText(t *testing.T) {
	snap := &Snapshot{Elements: []Element{
		{Classes: "banner", Text: "welcome"},
		{Classes: "content", Text: "you achieved 73% today"},
	}}
	strat := NewDOMScan(&staticAccessor{snap: snap}, time.Millisecond)

	raw, ok := strat.scan()
	if !ok || raw != "73%" {
		t.Errorf("scan() = (%q, %v); want (%q, true)", raw, ok, "73%")
	}
}

func TestDOMScan_NoTextNoCandidate(t *testing.T) {
	snap := &Snapshot{Elements: []Element{{Classes: "score-area", Text: "in progress"}}}
	strat := NewDOMScan(&staticAccessor{snap: snap}, time.Millisecond)

	if raw, ok := strat.scan(); ok {
		t.Errorf("scan() = (%q, true); want no candidate", raw)
	}
}

func TestDOMScan_StopsOnCancel(t *testing.T) {
	accessor := &deniedAccessor{}
	strat := NewDOMScan(accessor, 2*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		strat.Run(ctx, func(Candidate) {})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	settled := accessor.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if after := accessor.calls.Load(); after != settled {
		t.Errorf("polls continued after cancel: %d -> %d", settled, after)
	}
}
