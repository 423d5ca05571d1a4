package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/afedeli/pressline/internal/kvstore"
	"github.com/afedeli/pressline/internal/observability"
)

func testCache(t *testing.T) (*Cache, *kvstore.InMemoryStore, *observability.Metrics) {
	t.Helper()
	store := kvstore.NewInMemoryStore()
	metrics := observability.NewMetrics(fmt.Sprintf("test_cache_%s_%d", t.Name(), time.Now().UnixNano()))
	return New(store, metrics), store, metrics
}

func TestGetOrComputeSingleCall(t *testing.T) {
	c, _, metrics := testCache(t)
	ctx := context.Background()

	calls := 0
	compute := func() (string, error) {
		calls++
		return "computed", nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrCompute(ctx, "embedding", "k", time.Hour, compute)
		if err != nil {
			t.Fatalf("GetOrCompute() error = %v", err)
		}
		if got != "computed" {
			t.Fatalf("value = %q", got)
		}
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}

	s := metrics.Snapshot()
	if s.Misses != 1 || s.Hits != 2 {
		t.Errorf("hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
}

func TestGetOrComputeRecomputesAfterExpiry(t *testing.T) {
	c, store, _ := testCache(t)
	ctx := context.Background()

	now := time.Now()
	store.Now = func() time.Time { return now }

	calls := 0
	compute := func() (string, error) {
		calls++
		return fmt.Sprintf("v%d", calls), nil
	}

	if got, _ := c.GetOrCompute(ctx, "embedding", "k", time.Hour, compute); got != "v1" {
		t.Fatalf("first value = %q", got)
	}
	now = now.Add(2 * time.Hour)
	if got, _ := c.GetOrCompute(ctx, "embedding", "k", time.Hour, compute); got != "v2" {
		t.Fatalf("post-expiry value = %q", got)
	}
	if calls != 2 {
		t.Fatalf("compute called %d times, want 2", calls)
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c, _, _ := testCache(t)
	ctx := context.Background()

	boom := errors.New("provider down")
	_, err := c.GetOrCompute(ctx, "gemini", "k", time.Hour, func() (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}

	got, err := c.GetOrCompute(ctx, "gemini", "k", time.Hour, func() (string, error) {
		return "recovered", nil
	})
	if err != nil || got != "recovered" {
		t.Fatalf("recovery = %q, %v", got, err)
	}
}

func TestDigestDistinguishesParts(t *testing.T) {
	a := Digest("ctx one", "query")
	b := Digest("ctx two", "query")
	cc := Digest("ctx one", "query")
	if a == b {
		t.Errorf("different context should yield different digests")
	}
	if a != cc {
		t.Errorf("same inputs should yield the same digest")
	}
	if Digest("ab", "c") == Digest("a", "bc") {
		t.Errorf("part boundaries should be significant")
	}
}
