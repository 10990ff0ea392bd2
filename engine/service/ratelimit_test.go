package service

import (
	"context"
	"testing"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/store"
)

func TestRateLimiter_Allow(t *testing.T) {
	st := store.NewMemStore()
	rl := NewRateLimiter(st, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "intake-form", "1.2.3.4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("expected attempt %d to be allowed", i)
		}
	}

	ok, err := rl.Allow(ctx, "intake-form", "1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected the third attempt within the window to be denied")
	}
}

func TestRateLimiter_DistinctIPsDoNotShareABudget(t *testing.T) {
	st := store.NewMemStore()
	rl := NewRateLimiter(st, 1)
	ctx := context.Background()

	ok1, _ := rl.Allow(ctx, "intake-form", "1.1.1.1")
	ok2, _ := rl.Allow(ctx, "intake-form", "2.2.2.2")
	if !ok1 || !ok2 {
		t.Error("expected distinct IPs to each get their own budget")
	}
}

func TestRateLimiter_DistinctSlugsDoNotShareABudget(t *testing.T) {
	st := store.NewMemStore()
	rl := NewRateLimiter(st, 1)
	ctx := context.Background()

	ok1, _ := rl.Allow(ctx, "form-a", "1.1.1.1")
	ok2, _ := rl.Allow(ctx, "form-b", "1.1.1.1")
	if !ok1 || !ok2 {
		t.Error("expected distinct slugs to each get their own budget")
	}
}

func TestRateLimiter_NonPositiveLimitDefaults(t *testing.T) {
	rl := NewRateLimiter(store.NewMemStore(), 0)
	if rl.limit != 10 {
		t.Errorf("expected default limit of 10, got %d", rl.limit)
	}
}

func TestHashIP(t *testing.T) {
	h1 := HashIP("1.2.3.4")
	h2 := HashIP("1.2.3.4")
	h3 := HashIP("5.6.7.8")

	if h1 != h2 {
		t.Error("expected hashing the same IP twice to be deterministic")
	}
	if h1 == h3 {
		t.Error("expected different IPs to hash differently")
	}
	if len(h1) != 16 {
		t.Errorf("expected a 16-character hash, got %d chars", len(h1))
	}
	if h1 == "1.2.3.4" {
		t.Error("expected the raw IP to never appear in the hash")
	}
}

func TestGenerateUniqueSlug(t *testing.T) {
	ctx := context.Background()

	t.Run("slugifies the base on first attempt", func(t *testing.T) {
		st := store.NewMemStore()
		slug, err := GenerateUniqueSlug(ctx, st, "Customer Intake Form!", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if slug != "customer-intake-form" {
			t.Errorf("expected slugified base, got %q", slug)
		}
	})

	t.Run("falls back to a suffixed variant on collision", func(t *testing.T) {
		st := store.NewMemStore()
		if err := st.CreateRun(ctx, store.RunRecord{ID: "run-taken", PublicSlug: "intake-form"}); err != nil {
			t.Fatalf("seed existing slug: %v", err)
		}
		slug, err := GenerateUniqueSlug(ctx, st, "Intake Form", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if slug == "intake-form" {
			t.Error("expected a suffixed slug once the base is taken")
		}
	})

	t.Run("empty base falls back to run", func(t *testing.T) {
		st := store.NewMemStore()
		slug, err := GenerateUniqueSlug(ctx, st, "!!!", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if slug != "run" {
			t.Errorf("expected fallback slug 'run', got %q", slug)
		}
	})
}
