package observability

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func testMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(fmt.Sprintf("test_obs_%s_%d", t.Name(), time.Now().UnixNano()))
}

func TestSnapshotCounters(t *testing.T) {
	m := testMetrics(t)

	m.ObserveCache("embedding", true)
	m.ObserveCache("embedding", true)
	m.ObserveCache("gemini", false)
	m.ObserveStoreOp("get", 10*time.Millisecond, nil)
	m.ObserveStoreOp("set", 30*time.Millisecond, errors.New("down"))
	m.ObserveConnectionError()

	s := m.Snapshot()
	if s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
	if want := 2.0 / 3.0; s.HitRate < want-0.001 || s.HitRate > want+0.001 {
		t.Errorf("HitRate = %f, want ~%f", s.HitRate, want)
	}
	if s.TotalOperations != 2 {
		t.Errorf("TotalOperations = %d, want 2", s.TotalOperations)
	}
	if s.AverageLatencyMS < 19.9 || s.AverageLatencyMS > 20.1 {
		t.Errorf("AverageLatencyMS = %f, want ~20", s.AverageLatencyMS)
	}
	if s.ConnectionErrors != 1 {
		t.Errorf("ConnectionErrors = %d, want 1", s.ConnectionErrors)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	m := testMetrics(t)
	s := m.Snapshot()
	if s.HitRate != 0 || s.AverageLatencyMS != 0 {
		t.Errorf("empty snapshot should have zero rates: %+v", s)
	}
}

func TestReset(t *testing.T) {
	m := testMetrics(t)
	m.ObserveCache("embedding", true)
	m.ObserveStoreOp("get", time.Millisecond, nil)

	before := m.Snapshot().LastReset
	m.Reset()
	s := m.Snapshot()

	if s.Hits != 0 || s.Misses != 0 || s.TotalOperations != 0 || s.ConnectionErrors != 0 {
		t.Fatalf("counters should be zero after reset: %+v", s)
	}
	if !s.LastReset.After(before) && !s.LastReset.Equal(before) {
		t.Errorf("LastReset should advance, got %v (before %v)", s.LastReset, before)
	}
}
