package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordPipeline(t *testing.T) {
	m := New()
	m.RecordPipeline(10, 6, 4)
	m.RecordPipeline(5, 5, 5)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["pipeline_runs"])
	assert.Equal(t, int64(15), stats["candidates_received"])
	assert.Equal(t, int64(2), stats["duplicates_filtered"])
}

func TestHealth(t *testing.T) {
	m := New()
	assert.True(t, m.Healthy())

	m.SetError("fred: status 500")
	assert.False(t, m.Healthy())
	assert.Equal(t, "fred: status 500", m.GetStats()["last_error"])

	m.SetLastRun()
	assert.True(t, m.Healthy())
}

func TestSourceFailuresAreCopied(t *testing.T) {
	m := New()
	m.IncrementSourceFailures("bls")

	failures := m.GetStats()["source_failures"].(map[string]int64)
	failures["bls"] = 99
	assert.Equal(t, int64(1), m.GetStats()["source_failures"].(map[string]int64)["bls"])
}

func TestProcessingTimeAverage(t *testing.T) {
	m := New()
	m.RecordProcessingTime(100 * time.Millisecond)
	m.RecordProcessingTime(300 * time.Millisecond)

	stats := m.GetStats()
	assert.Equal(t, int64(300), stats["last_processing_time_ms"])
	assert.Equal(t, int64(200), stats["average_processing_time_ms"])
}
