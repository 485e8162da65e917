package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jimezsa/gigscope/internal/models"
)

func TestMemoryExpires(t *testing.T) {
	mem := NewMemory()
	current := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return current }
	ctx := context.Background()

	offers := []models.Offer{{Title: "Logo", URL: "https://example.com/1"}}
	if err := mem.Set(ctx, "workconnect", offers, 2*time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := mem.Get(ctx, "workconnect")
	if err != nil || !ok || len(got) != 1 {
		t.Fatalf("expected cached offers, got ok=%v err=%v len=%d", ok, err, len(got))
	}

	current = current.Add(3 * time.Hour)
	if _, ok, _ := mem.Get(ctx, "workconnect"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	_ = mem.Set(ctx, "k", []models.Offer{{Title: "a"}}, 0)

	got, _, _ := mem.Get(ctx, "k")
	got[0].Title = "mutated"

	again, _, _ := mem.Get(ctx, "k")
	if again[0].Title != "a" {
		t.Fatalf("cache entry was mutated through a returned slice")
	}
}
