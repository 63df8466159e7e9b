package session

import (
	"testing"
	"time"
)

func newEmpty() *Editor { return NewEditor(nil, nil, 30) }

func TestStoreCreateGet(t *testing.T) {
	s := NewStore(10, time.Hour, newEmpty)
	ed := s.Create()
	if ed.ID == "" {
		t.Fatal("empty session id")
	}

	got, ok := s.Get(ed.ID)
	if !ok || got != ed {
		t.Fatalf("Get(%q) = %v, %v", ed.ID, got, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) = ok")
	}

	s.Delete(ed.ID)
	if s.Len() != 0 {
		t.Errorf("Len = %d after Delete", s.Len())
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(2, time.Hour, newEmpty)
	a := s.Create()
	b := s.Create()
	a.LastAccess = time.Now().Add(-time.Minute)

	c := s.Create()
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("oldest session not evicted")
	}
	for _, ed := range []*Editor{b, c} {
		if _, ok := s.Get(ed.ID); !ok {
			t.Errorf("session %s evicted", ed.ID)
		}
	}
}

func TestStoreCleanup(t *testing.T) {
	s := NewStore(10, time.Minute, newEmpty)
	stale := s.Create()
	fresh := s.Create()
	stale.LastAccess = time.Now().Add(-time.Hour)

	s.Cleanup()
	if _, ok := s.Get(stale.ID); ok {
		t.Error("stale session survived Cleanup")
	}
	if _, ok := s.Get(fresh.ID); !ok {
		t.Error("fresh session removed by Cleanup")
	}
}
