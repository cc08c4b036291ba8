package utils

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCardOperations(t *testing.T) {
	m := NewMetrics()

	m.RecordCardOperation(CardOperationTransfer, "")
	m.RecordCardOperation(CardOperationTransfer, "")
	m.RecordCardOperation(CardOperationCreate, "")
	m.RecordCardOperation(CardOperationTransfer, "insufficient_balance")
	m.RecordCriticalError("internal")

	snapshot := m.GetMetricsSnapshot()

	operations := snapshot["card_operations"].(map[string]int64)
	if operations["transfer"] != 2 || operations["create"] != 1 {
		t.Fatalf("operations=%v", operations)
	}
	if snapshot["transfers_total"].(int64) != 2 {
		t.Fatalf("transfers_total=%v", snapshot["transfers_total"])
	}
	if snapshot["error_count"].(int64) != 2 {
		t.Fatalf("error_count=%v", snapshot["error_count"])
	}
	if snapshot["critical_errors"].(int64) != 1 {
		t.Fatalf("critical_errors=%v", snapshot["critical_errors"])
	}
	errorTypes := snapshot["error_types"].(map[string]int64)
	if errorTypes["insufficient_balance"] != 1 || errorTypes["internal"] != 1 {
		t.Fatalf("error_types=%v", errorTypes)
	}

	// Снимок не должен меняться вместе с метриками
	m.RecordCardOperation(CardOperationCreate, "")
	if operations["create"] != 1 {
		t.Fatal("snapshot shares state with metrics")
	}
}

func TestMetricsRequestsAndReset(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordRequest(10*time.Millisecond, i%10 == 0)
		}(i)
	}
	wg.Wait()

	snapshot := m.GetMetricsSnapshot()
	if snapshot["total_requests"].(int64) != 50 {
		t.Fatalf("total_requests=%v", snapshot["total_requests"])
	}
	if snapshot["failed_requests"].(int64) != 5 {
		t.Fatalf("failed_requests=%v", snapshot["failed_requests"])
	}
	if snapshot["average_latency"].(string) != "10ms" {
		t.Fatalf("average_latency=%v", snapshot["average_latency"])
	}

	m.ResetMetrics()
	if m.GetMetricsSnapshot()["total_requests"].(int64) != 0 {
		t.Fatal("metrics not reset")
	}
}
