package identity

import (
	"sync"
	"testing"
)

func TestUUIDSource(t *testing.T) {
	var src UUIDSource
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := src.NewID()
		if !IsUUID(id) {
			t.Fatalf("NewID() = %q, not a UUID", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSequence(t *testing.T) {
	s := NewSequence("c")
	if got := s.NewID(); got != "c-1" {
		t.Errorf("first id = %q, want c-1", got)
	}
	if got := s.NewID(); got != "c-2" {
		t.Errorf("second id = %q, want c-2", got)
	}

	if got := NewSequence("").NewID(); got != "n-1" {
		t.Errorf("default prefix id = %q, want n-1", got)
	}
}

func TestSequenceConcurrent(t *testing.T) {
	s := NewSequence("x")
	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := s.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 400 {
		t.Errorf("got %d distinct ids, want 400", len(seen))
	}
}

func TestIsUUID(t *testing.T) {
	if IsUUID("n-1") {
		t.Error("IsUUID(n-1) = true")
	}
	if !IsUUID("2f1c6a52-7d0e-4c1b-9a55-0f6c1b7a9e21") {
		t.Error("IsUUID(valid) = false")
	}
}

func TestVisited(t *testing.T) {
	v := NewVisited()

	if !v.Visit("a") {
		t.Error("first Visit(a) should return true")
	}
	if v.Visit("a") {
		t.Error("repeat Visit(a) should return false")
	}
	v.Visit("b")

	if !v.Has("b") || v.Has("c") {
		t.Error("Has reports wrong membership")
	}
	if v.Len() != 2 {
		t.Errorf("Len = %d, want 2", v.Len())
	}
	order := v.Order()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("Order = %v, want [a b]", order)
	}
}

func TestRemap(t *testing.T) {
	r := NewRemap[int]()

	if _, ok := r.Lookup("a"); ok {
		t.Error("empty remap should not contain a")
	}

	r.Bind("a", 1)
	r.Bind("b", 2)

	if v, ok := r.Lookup("a"); !ok || v != 1 {
		t.Errorf("Lookup(a) = %v, %v", v, ok)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	ids := r.SourceIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("SourceIDs = %v", ids)
	}
}

func TestRemapBindTwicePanics(t *testing.T) {
	r := NewRemap[string]()
	r.Bind("a", "x")

	defer func() {
		if recover() == nil {
			t.Error("second Bind should panic")
		}
	}()
	r.Bind("a", "y")
}

func TestTracker(t *testing.T) {
	tr := NewTracker()

	if tr.State("a") != Unseen {
		t.Fatalf("initial state = %v", tr.State("a"))
	}
	if tr.Finish("a") {
		t.Error("Finish on Unseen should fail")
	}
	if !tr.Begin("a") {
		t.Fatal("Begin on Unseen should succeed")
	}
	if tr.Begin("a") {
		t.Error("Begin on InProgress should fail")
	}
	if tr.InProgress() != 1 {
		t.Errorf("InProgress = %d, want 1", tr.InProgress())
	}
	if !tr.Finish("a") {
		t.Fatal("Finish on InProgress should succeed")
	}
	if tr.State("a") != Attached {
		t.Errorf("final state = %v, want attached", tr.State("a"))
	}
	if tr.Begin("a") || tr.Finish("a") {
		t.Error("Attached is terminal")
	}
	if tr.InProgress() != 0 {
		t.Errorf("InProgress = %d, want 0", tr.InProgress())
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Unseen:     "unseen",
		InProgress: "in-progress",
		Attached:   "attached",
		State(9):   "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

type creatableSet map[string]bool

func (c creatableSet) Creatable(typeID string) bool { return c[typeID] }

func TestResolve(t *testing.T) {
	types := creatableSet{"folder": true}

	tests := []struct {
		name       string
		types      Creatable
		typeID     string
		want       string
		substitute bool
	}{
		{"creatable", types, "folder", "folder", false},
		{"not creatable", types, "plot", "generic", true},
		{"nil registry", nil, "folder", "generic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sub := Resolve(tt.types, tt.typeID, "generic")
			if got != tt.want || sub != tt.substitute {
				t.Errorf("Resolve = (%q, %v), want (%q, %v)", got, sub, tt.want, tt.substitute)
			}
		})
	}
}
