package utils

import (
	"sync"
	"time"
)

// CardOperation тип операции с картой для метрик
type CardOperation string

const (
	CardOperationCreate   CardOperation = "create"
	CardOperationDelete   CardOperation = "delete"
	CardOperationStatus   CardOperation = "status"
	CardOperationBlock    CardOperation = "block"
	CardOperationTransfer CardOperation = "transfer"
	CardOperationBalance  CardOperation = "balance"
	CardOperationList     CardOperation = "list"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики карт
	CardOperations    map[CardOperation]int64
	TransfersTotal    int64
	LastCardOperation time.Time

	// Метрики ошибок
	ErrorCount     int64
	LastErrorTime  time.Time
	ErrorTypes     map[string]int64
	CriticalErrors int64
}

// NewMetrics создает пустой набор метрик
func NewMetrics() *Metrics {
	return &Metrics{
		CardOperations: make(map[CardOperation]int64),
		ErrorTypes:     make(map[string]int64),
	}
}

// RecordRequest записывает метрики HTTP-запроса
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if failed {
		m.FailedRequests++
	}
}

// RecordCardOperation записывает метрики операции с картой.
// errorType пустой для успешной операции.
func (m *Metrics) RecordCardOperation(operation CardOperation, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCardOperation = time.Now()
	if errorType != "" {
		m.recordErrorLocked(errorType)
		return
	}

	m.CardOperations[operation]++
	if operation == CardOperationTransfer {
		m.TransfersTotal++
	}
}

// RecordCriticalError записывает метрики критической ошибки
func (m *Metrics) RecordCriticalError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CriticalErrors++
	m.recordErrorLocked(errorType)
}

func (m *Metrics) recordErrorLocked(errorType string) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()
	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make(map[string]int64, len(m.CardOperations))
	for op, count := range m.CardOperations {
		operations[string(op)] = count
	}
	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for errType, count := range m.ErrorTypes {
		errorTypes[errType] = count
	}

	return map[string]interface{}{
		"total_requests":  m.TotalRequests,
		"failed_requests": m.FailedRequests,
		"average_latency": m.AverageLatency.String(),
		"card_operations": operations,
		"transfers_total": m.TransfersTotal,
		"error_count":     m.ErrorCount,
		"critical_errors": m.CriticalErrors,
		"last_error_time": m.LastErrorTime,
		"error_types":     errorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.CardOperations = make(map[CardOperation]int64)
	m.TransfersTotal = 0
	m.ErrorCount = 0
	m.CriticalErrors = 0
	m.ErrorTypes = make(map[string]int64)
}
