package cache

import (
	"testing"
	"time"
)

func TestIndexRecordAndCurrentSize(t *testing.T) {
	t.Parallel()

	idx, err := newIndex(t.TempDir())
	if err != nil {
		t.Fatalf("newIndex: %v", err)
	}
	idx.record("a", 100, time.Now())
	idx.record("b", 200, time.Now())
	if got, want := idx.currentSize(), int64(300); got != want {
		t.Fatalf("currentSize = %d, want %d", got, want)
	}

	// Re-recording the same key replaces, not adds, its contribution.
	idx.record("a", 50, time.Now())
	if got, want := idx.currentSize(), int64(250); got != want {
		t.Fatalf("currentSize after re-record = %d, want %d", got, want)
	}
}

func TestIndexRemove(t *testing.T) {
	t.Parallel()

	idx, err := newIndex(t.TempDir())
	if err != nil {
		t.Fatalf("newIndex: %v", err)
	}
	idx.record("a", 100, time.Now())
	idx.remove("a")
	if got := idx.currentSize(); got != 0 {
		t.Fatalf("currentSize after remove = %d, want 0", got)
	}
}

func TestVictimsOrderedOldestFirst(t *testing.T) {
	t.Parallel()

	t0 := time.Now().Add(-3 * time.Hour)
	t1 := time.Now().Add(-2 * time.Hour)
	t2 := time.Now().Add(-1 * time.Hour)

	idx, err := newIndex(t.TempDir())
	if err != nil {
		t.Fatalf("newIndex: %v", err)
	}
	idx.record("c", 10, t2)
	idx.record("a", 10, t0)
	idx.record("b", 10, t1)

	victims := idx.victims()
	if len(victims) != 3 {
		t.Fatalf("got %d victims, want 3", len(victims))
	}
	if victims[0].Key != "a" || victims[1].Key != "b" || victims[2].Key != "c" {
		t.Fatalf("got order %v, want a,b,c", []string{victims[0].Key, victims[1].Key, victims[2].Key})
	}
}

func TestVictimsTieBreakLargerSizeFirst(t *testing.T) {
	t.Parallel()

	same := time.Now()
	idx, err := newIndex(t.TempDir())
	if err != nil {
		t.Fatalf("newIndex: %v", err)
	}
	idx.record("small", 10, same)
	idx.record("large", 100, same)

	victims := idx.victims()
	if victims[0].Key != "large" {
		t.Fatalf("expected larger entry first on a last-access tie, got %q", victims[0].Key)
	}
}
