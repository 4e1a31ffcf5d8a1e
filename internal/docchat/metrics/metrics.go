// Package metrics collects business counters for the document chat service.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds lock-free counters for the hot paths and a snapshot view
// for the status endpoint.
type Metrics struct {
	uploadsTotal  uint64
	uploadErrors  uint64
	chunksIndexed uint64

	asksTotal   uint64
	askErrors   uint64
	staleAsks   uint64
	cacheHits   uint64
	cacheMisses uint64

	llmCallsTotal  uint64
	llmCallsErrors uint64

	durationMu        sync.Mutex
	retrievalDuration float64
	llmDuration       float64

	startTime time.Time
}

var (
	global *Metrics
	once   sync.Once
)

// Get returns the process-wide metrics instance.
func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{startTime: time.Now()}
	})
	return global
}

// RecordUpload records an upload attempt and its chunk yield.
func (m *Metrics) RecordUpload(chunks int, err error) {
	atomic.AddUint64(&m.uploadsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.uploadErrors, 1)
		return
	}
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
}

// RecordAsk records an answered or failed question.
func (m *Metrics) RecordAsk(err error) {
	atomic.AddUint64(&m.asksTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.askErrors, 1)
	}
}

// RecordStaleAsk records an answer discarded because the document changed
// while it was being generated.
func (m *Metrics) RecordStaleAsk() {
	atomic.AddUint64(&m.staleAsks, 1)
}

// RecordCacheLookup records a derived-artifact cache lookup.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		atomic.AddUint64(&m.cacheHits, 1)
	} else {
		atomic.AddUint64(&m.cacheMisses, 1)
	}
}

// RecordRetrieval records one retrieval duration.
func (m *Metrics) RecordRetrieval(d time.Duration) {
	m.durationMu.Lock()
	m.retrievalDuration += d.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall records one provider call.
func (m *Metrics) RecordLLMCall(d time.Duration, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}
	m.durationMu.Lock()
	m.llmDuration += d.Seconds()
	m.durationMu.Unlock()
}

// Snapshot returns the current counter values for the status endpoint.
func (m *Metrics) Snapshot() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmDuration
	m.durationMu.Unlock()

	return map[string]any{
		"uploads_total":                    atomic.LoadUint64(&m.uploadsTotal),
		"upload_errors_total":              atomic.LoadUint64(&m.uploadErrors),
		"chunks_indexed_total":             atomic.LoadUint64(&m.chunksIndexed),
		"asks_total":                       atomic.LoadUint64(&m.asksTotal),
		"ask_errors_total":                 atomic.LoadUint64(&m.askErrors),
		"stale_asks_total":                 atomic.LoadUint64(&m.staleAsks),
		"cache_hits_total":                 atomic.LoadUint64(&m.cacheHits),
		"cache_misses_total":               atomic.LoadUint64(&m.cacheMisses),
		"llm_calls_total":                  atomic.LoadUint64(&m.llmCallsTotal),
		"llm_call_errors_total":            atomic.LoadUint64(&m.llmCallsErrors),
		"retrieval_duration_seconds_total": retrievalDuration,
		"llm_duration_seconds_total":       llmDuration,
		"uptime_seconds":                   time.Since(m.startTime).Seconds(),
	}
}
