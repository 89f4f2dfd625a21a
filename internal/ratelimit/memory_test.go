package ratelimit

import (
	"context"
	"testing"
	"time"

	"chancafe-q/backend/internal/platform/clock"
)

func TestMemoryLimiter_LoginWindow(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter(clk)
	ctx := context.Background()
	key := "login:10.0.0.1:ADV001"

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, key, 5, 15*time.Minute)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d denied", i+1)
		}
		if d.Remaining != 4-i {
			t.Errorf("attempt %d: Remaining = %d, want %d", i+1, d.Remaining, 4-i)
		}
	}

	d, err := l.Allow(ctx, key, 5, 15*time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("sixth attempt should be denied")
	}
	if d.RetryAfter != 15*time.Minute {
		t.Errorf("RetryAfter = %v, want 15m", d.RetryAfter)
	}

	clk.Advance(15 * time.Minute)
	d, _ = l.Allow(ctx, key, 5, 15*time.Minute)
	if !d.Allowed || d.Remaining != 4 {
		t.Errorf("first attempt of the next window = %+v, want allowed with 4 remaining", d)
	}
}

func TestMemoryLimiter_WindowBudgetIsFixed(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	l := NewMemoryLimiter(clk)
	ctx := context.Background()
	key := "login:10.0.0.1:ADV001"

	allowed := 0
	for i := 0; i < 15; i++ {
		d, err := l.Allow(ctx, key, 5, 15*time.Minute)
		if err != nil {
			t.Fatalf("Allow at minute %d: %v", i, err)
		}
		if d.Allowed {
			allowed++
		} else if want := start.Add(15 * time.Minute).Sub(clk.Now()); d.RetryAfter != want {
			t.Errorf("minute %d: RetryAfter = %v, want %v", i, d.RetryAfter, want)
		}
		clk.Advance(time.Minute)
	}
	if allowed != 5 {
		t.Errorf("allowed %d attempts within one 15m window, want 5", allowed)
	}
}

func TestMemoryLimiter_ZeroLimitDenies(t *testing.T) {
	l := NewMemoryLimiter(clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	d, _ := l.Allow(context.Background(), "k", 0, time.Minute)
	if d.Allowed || d.RetryAfter != time.Minute {
		t.Errorf("Allow with limit 0 = %+v", d)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter(clk)
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "a", 1, time.Minute); !d.Allowed {
		t.Fatal("first request for a denied")
	}
	if d, _ := l.Allow(ctx, "a", 1, time.Minute); d.Allowed {
		t.Error("second request for a should be denied")
	}
	if d, _ := l.Allow(ctx, "b", 1, time.Minute); !d.Allowed {
		t.Error("key b should have its own window")
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}
}

func TestMemoryLimiter_PruneDropsEndedWindows(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	l := NewMemoryLimiter(clk)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "idle", 2, time.Minute)
	_, _ = l.Allow(ctx, "busy", 2, time.Hour)
	clk.Advance(2 * time.Minute)

	l.mu.Lock()
	l.prune(clk.Now())
	l.mu.Unlock()

	if l.Len() != 1 {
		t.Errorf("Len after prune = %d, want 1", l.Len())
	}
}

func TestDecide(t *testing.T) {
	d := decide(6, 5, 90*time.Second)
	if d.Allowed || d.Remaining != 0 || d.RetryAfter != 90*time.Second {
		t.Errorf("decide(6,5) = %+v", d)
	}
	d = decide(2, 5, time.Minute)
	if !d.Allowed || d.Remaining != 3 || d.RetryAfter != 0 {
		t.Errorf("decide(2,5) = %+v", d)
	}
}
