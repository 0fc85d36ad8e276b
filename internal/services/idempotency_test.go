package services

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(10)

	seen, err := store.Seen(ctx, "a")
	if err != nil || seen {
		t.Fatalf("Seen before Mark = (%v, %v), want (false, nil)", seen, err)
	}
	if err := store.Mark(ctx, "a"); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	seen, _ = store.Seen(ctx, "a")
	if !seen {
		t.Error("key not visible after Mark")
	}

	// Re-marking the same key is a no-op.
	if err := store.Mark(ctx, "a"); err != nil {
		t.Fatalf("second Mark: %v", err)
	}
}

func TestMemoryIdempotencyStoreEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(3)

	for i := 0; i < 5; i++ {
		_ = store.Mark(ctx, fmt.Sprintf("k%d", i))
	}

	for i, wantSeen := range []bool{false, false, true, true, true} {
		seen, _ := store.Seen(ctx, fmt.Sprintf("k%d", i))
		if seen != wantSeen {
			t.Errorf("k%d seen = %v, want %v", i, seen, wantSeen)
		}
	}
}

func TestMemoryIdempotencyStoreDefaultCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(0)

	for i := 0; i < 150; i++ {
		_ = store.Mark(ctx, fmt.Sprintf("k%d", i))
	}
	if seen, _ := store.Seen(ctx, "k0"); seen {
		t.Error("oldest key should have been evicted at default capacity")
	}
	if seen, _ := store.Seen(ctx, "k149"); !seen {
		t.Error("newest key must survive")
	}
}
