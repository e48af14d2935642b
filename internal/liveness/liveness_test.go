package liveness_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/liveness"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
)

// TestTracker_DeclaresNodeDownThenNodeUpAfterThresholds drives a Tracker
// against a single peer whose prober is flipped from failing to succeeding
// partway through, and asserts the resulting nodedown/nodeup events only
// fire once each threshold's consecutive-result count is met. The prober is
// a fake whose result the test flips; the Tracker's ticker is a real one,
// kept fast by a very short probe interval.
func TestTracker_DeclaresNodeDownThenNodeUpAfterThresholds(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	prober := func(_ context.Context, peer string) error {
		if failing.Load() {
			return context.DeadlineExceeded
		}
		return nil
	}

	opts := liveness.Options{Interval: 5 * time.Millisecond, FailureThreshold: 2, RecoveryThreshold: 2}
	tr := liveness.New("n1", []string{"n2"}, prober, opts, nil)

	if live := tr.LivePeers(); len(live) != 2 {
		t.Fatalf("expected self+peer alive at start, got %v", live)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)
	defer func() {
		cancel()
		<-tr.Done()
	}()

	select {
	case ev := <-tr.Events():
		if ev.Kind != proposer.NodeDown || ev.Peer != "n2" {
			t.Fatalf("got %+v, want NodeDown n2", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NodeDown")
	}

	live := tr.LivePeers()
	for _, p := range live {
		if p == "n2" {
			t.Fatalf("expected n2 to be dropped from LivePeers after NodeDown, got %v", live)
		}
	}

	failing.Store(false)

	select {
	case ev := <-tr.Events():
		if ev.Kind != proposer.NodeUp || ev.Peer != "n2" {
			t.Fatalf("got %+v, want NodeUp n2", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NodeUp")
	}

	live = tr.LivePeers()
	found := false
	for _, p := range live {
		if p == "n2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected n2 back in LivePeers after NodeUp, got %v", live)
	}
}
