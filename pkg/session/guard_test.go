package session

import (
	"errors"
	"testing"
)

func TestFetchGuardComplete(t *testing.T) {
	var g FetchGuard
	t1 := g.Begin(2)
	if !g.Busy() {
		t.Fatal("Busy = false after Begin")
	}
	if err := g.Complete(t1, 2); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if g.Busy() {
		t.Error("Busy = true after Complete")
	}
	if err := g.Complete(t1, 2); !errors.Is(err, ErrStaleResponse) {
		t.Errorf("second Complete err = %v, want ErrStaleResponse", err)
	}
}

func TestFetchGuardSuperseded(t *testing.T) {
	var g FetchGuard
	old := g.Begin(2)
	latest := g.Begin(3)
	if old.ID == latest.ID {
		t.Fatal("tickets share an id")
	}

	if err := g.Complete(old, 2); !errors.Is(err, ErrStaleResponse) {
		t.Errorf("Complete(old) err = %v, want ErrStaleResponse", err)
	}
	if err := g.Fail(old); !errors.Is(err, ErrStaleResponse) {
		t.Errorf("Fail(old) err = %v, want ErrStaleResponse", err)
	}
	if !g.Busy() || g.Errored() {
		t.Error("stale response changed the guard state")
	}
	if err := g.Complete(latest, 3); err != nil {
		t.Errorf("Complete(latest): %v", err)
	}
}

func TestFetchGuardWaypointMismatch(t *testing.T) {
	var g FetchGuard
	tk := g.Begin(2)
	if err := g.Complete(tk, 3); !errors.Is(err, ErrStaleResponse) {
		t.Errorf("err = %v, want ErrStaleResponse", err)
	}
	if g.Busy() {
		t.Error("guard still busy after discarding a mismatched response")
	}
}

func TestFetchGuardFailAndAbort(t *testing.T) {
	var g FetchGuard
	if err := g.Fail(g.Begin(2)); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !g.Errored() || g.Busy() {
		t.Errorf("errored=%v busy=%v after Fail", g.Errored(), g.Busy())
	}

	if err := g.Abort(g.Begin(2)); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if g.Errored() {
		t.Error("Abort left the guard errored")
	}

	g.Fail(g.Begin(2))
	if err := g.Complete(g.Begin(2), 2); err != nil || g.Errored() {
		t.Errorf("Complete: err=%v errored=%v", err, g.Errored())
	}
}
