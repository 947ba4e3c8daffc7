package pipeline

import (
	"context"
	"testing"
	"time"

	"golang.org/x/net/html"
)

type fakeMutations struct {
	ch chan []*html.Node
}

func (f *fakeMutations) Added() <-chan []*html.Node { return f.ch }

func TestObserve_DebouncesBursts(t *testing.T) {
	f := newFixture(t, `<html><body></body></html>`,
		true, map[string]string{"octocat": "The Octocat"})

	muts := &fakeMutations{ch: make(chan []*html.Node, 8)}

	// A burst of three notifications inside the debounce window; the single
	// drain must process all of them.
	for i := 0; i < 3; i++ {
		added, err := appendFragment(f.doc, `<a href="/octocat">octocat</a>`)
		if err != nil {
			t.Fatalf("appendFragment() error = %v", err)
		}
		muts.ch <- added
	}
	close(muts.ch)

	done := make(chan struct{})
	go func() {
		f.pipe.Observe(context.Background(), muts, 50*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Observe did not finish after the stream closed")
	}

	if f.pipe.Marked() != 3 {
		t.Errorf("Marked() = %d, want 3", f.pipe.Marked())
	}
	// One handle across three nodes: the duplicates hit the cache written by
	// the first resolution, or collapse in-flight. Never three remote calls.
	if n := f.calls.Load(); n != 1 {
		t.Errorf("remote calls = %d, want 1 for a repeated handle", n)
	}
}

func TestObserve_ContextCancelDrainsPending(t *testing.T) {
	f := newFixture(t, `<html><body></body></html>`,
		false, nil)

	muts := &fakeMutations{ch: make(chan []*html.Node, 1)}
	added, err := appendFragment(f.doc, `<a href="/monalisa">monalisa</a>`)
	if err != nil {
		t.Fatalf("appendFragment() error = %v", err)
	}
	muts.ch <- added

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.pipe.Observe(ctx, muts, time.Hour) // window longer than the test
		close(done)
	}()

	// Give Observe a moment to pick the batch up, then cancel before the
	// debounce window could ever fire.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Observe did not exit on cancellation")
	}

	if f.pipe.Marked() != 1 {
		t.Errorf("Marked() = %d, want pending batch drained on shutdown", f.pipe.Marked())
	}
}
