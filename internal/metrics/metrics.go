package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	PipelineRuns       int64
	CandidatesReceived int64
	CandidatesRelevant int64
	CandidatesUnique   int64
	DuplicatesFiltered int64
	MacroRefreshes     int64
	AlertsSent         int64
	SourceFailures     map[string]int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true, SourceFailures: make(map[string]int64)}
}

// RecordPipeline adds the stage counters of one news pipeline run.
func (m *Metrics) RecordPipeline(total, relevant, unique int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PipelineRuns++
	m.CandidatesReceived += int64(total)
	m.CandidatesRelevant += int64(relevant)
	m.CandidatesUnique += int64(unique)
	m.DuplicatesFiltered += int64(relevant - unique)
}

func (m *Metrics) IncrementMacroRefreshes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MacroRefreshes++
}

func (m *Metrics) IncrementAlertsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlertsSent++
}

func (m *Metrics) IncrementSourceFailures(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceFailures[source]++
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	failures := make(map[string]int64, len(m.SourceFailures))
	for k, v := range m.SourceFailures {
		failures[k] = v
	}

	return map[string]interface{}{
		"pipeline_runs":              m.PipelineRuns,
		"candidates_received":        m.CandidatesReceived,
		"candidates_relevant":        m.CandidatesRelevant,
		"candidates_unique":          m.CandidatesUnique,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"macro_refreshes":            m.MacroRefreshes,
		"alerts_sent":                m.AlertsSent,
		"source_failures":            failures,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
