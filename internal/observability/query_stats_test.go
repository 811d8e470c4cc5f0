package observability

import (
	"sync"
	"testing"
	"time"
)

func TestRecordQueryConcurrent(t *testing.T) {
	qs := NewFieldStats(1 * time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				qs.RecordQuery([]string{"pid"}, "process")
				qs.RecordQuery([]string{"correlation_id"}, "correlation")
				qs.RecordQuery([]string{"temporal_range"}, "temporal")
			}
		}()
	}
	wg.Wait()

	top := qs.GetTopFields(10)
	if len(top) != 3 {
		t.Errorf("expected 3 fields, got %d", len(top))
	}

	expectedFreq := int64(numGoroutines * recordsPerGoroutine)
	for _, stat := range top {
		if stat.Frequency != expectedFreq {
			t.Errorf("expected frequency %d for %s, got %d", expectedFreq, stat.Field, stat.Frequency)
		}
	}
}

func TestGetTopFieldsOrdering(t *testing.T) {
	qs := NewFieldStats(1 * time.Hour)

	for i := 0; i < 10; i++ {
		qs.RecordQuery([]string{"pid"}, "process")
	}
	for i := 0; i < 5; i++ {
		qs.RecordQuery([]string{"correlation_id"}, "correlation")
	}
	for i := 0; i < 20; i++ {
		qs.RecordQuery([]string{"temporal_range"}, "temporal")
	}

	top := qs.GetTopFields(3)
	if len(top) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(top))
	}
	if top[0].Field != "temporal_range" || top[0].Frequency != 20 {
		t.Errorf("expected temporal_range with frequency 20, got %s with %d", top[0].Field, top[0].Frequency)
	}
	if top[1].Field != "pid" || top[1].Frequency != 10 {
		t.Errorf("expected pid with frequency 10, got %s with %d", top[1].Field, top[1].Frequency)
	}
	if top[2].Field != "correlation_id" || top[2].Frequency != 5 {
		t.Errorf("expected correlation_id with frequency 5, got %s with %d", top[2].Field, top[2].Frequency)
	}
}

func TestPruneRemovesOldFields(t *testing.T) {
	window := 100 * time.Millisecond
	qs := NewFieldStats(window)

	qs.RecordQuery([]string{"pid"}, "process")

	top := qs.GetTopFields(10)
	if len(top) != 1 {
		t.Fatalf("expected 1 field before prune, got %d", len(top))
	}

	time.Sleep(window + 50*time.Millisecond)
	qs.Prune()

	top = qs.GetTopFields(10)
	if len(top) != 0 {
		t.Errorf("expected 0 fields after prune, got %d", len(top))
	}
}

func TestRecordQueryTracksDriverDistribution(t *testing.T) {
	qs := NewFieldStats(1 * time.Hour)

	for i := 0; i < 5; i++ {
		qs.RecordQuery([]string{"ast_node_id"}, "ast_node")
	}
	for i := 0; i < 3; i++ {
		qs.RecordQuery([]string{"ast_node_id"}, "full_scan")
	}

	top := qs.GetTopFields(1)
	if len(top) != 1 {
		t.Fatalf("expected 1 field, got %d", len(top))
	}
	stat := top[0]
	if stat.Frequency != 8 {
		t.Errorf("expected frequency 8, got %d", stat.Frequency)
	}
	if stat.Drivers["ast_node"] != 5 {
		t.Errorf("expected 5 ast_node drivers, got %d", stat.Drivers["ast_node"])
	}
	if stat.Drivers["full_scan"] != 3 {
		t.Errorf("expected 3 full_scan drivers, got %d", stat.Drivers["full_scan"])
	}
}

func TestRecordQueryMultipleFieldsPerQuery(t *testing.T) {
	qs := NewFieldStats(1 * time.Hour)

	qs.RecordQuery([]string{"pid", "temporal_range"}, "process")

	top := qs.GetTopFields(10)
	if len(top) != 2 {
		t.Fatalf("expected 2 fields recorded from a single multi-field query, got %d", len(top))
	}
}

func TestRecordQueryIgnoresEmptyFilter(t *testing.T) {
	qs := NewFieldStats(1 * time.Hour)
	qs.RecordQuery(nil, "full_scan")

	top := qs.GetTopFields(10)
	if len(top) != 0 {
		t.Errorf("expected no fields recorded for an empty filter, got %d", len(top))
	}
}

func TestGetTopFieldsEmpty(t *testing.T) {
	qs := NewFieldStats(1 * time.Hour)
	top := qs.GetTopFields(10)
	if len(top) != 0 {
		t.Errorf("expected 0 fields, got %d", len(top))
	}
}

func TestGetTopFieldsLimitExceedsData(t *testing.T) {
	qs := NewFieldStats(1 * time.Hour)
	qs.RecordQuery([]string{"pid"}, "process")
	qs.RecordQuery([]string{"correlation_id"}, "correlation")

	top := qs.GetTopFields(100)
	if len(top) != 2 {
		t.Errorf("expected 2 fields, got %d", len(top))
	}
}
