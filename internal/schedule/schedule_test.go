package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestNextOccurrence(t *testing.T) {
	ny := newYork(t)
	times := []Clock{{10, 1}, {8, 31}}

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before first", time.Date(2024, 6, 7, 7, 0, 0, 0, ny), time.Date(2024, 6, 7, 8, 31, 0, 0, ny)},
		{"between", time.Date(2024, 6, 7, 9, 0, 0, 0, ny), time.Date(2024, 6, 7, 10, 1, 0, 0, ny)},
		{"exactly at first", time.Date(2024, 6, 7, 8, 31, 0, 0, ny), time.Date(2024, 6, 7, 10, 1, 0, 0, ny)},
		{"after last", time.Date(2024, 6, 7, 11, 0, 0, 0, ny), time.Date(2024, 6, 8, 8, 31, 0, 0, ny)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextOccurrence(tc.now, times, ny)
			assert.True(t, tc.want.Equal(got), "want %v got %v", tc.want, got)
		})
	}
}

func TestNextOccurrence_OtherZoneInput(t *testing.T) {
	ny := newYork(t)
	// 12:00 UTC is 08:00 in New York during daylight time.
	now := time.Date(2024, 6, 7, 12, 0, 0, 0, time.UTC)
	got := NextOccurrence(now, []Clock{{8, 31}}, ny)
	assert.True(t, time.Date(2024, 6, 7, 12, 31, 0, 0, time.UTC).Equal(got))
}

func TestNextOccurrence_DSTChange(t *testing.T) {
	ny := newYork(t)
	// Clocks move forward on 2024-03-10.
	now := time.Date(2024, 3, 9, 11, 0, 0, 0, ny)
	got := NextOccurrence(now, []Clock{{8, 31}}, ny)
	assert.True(t, time.Date(2024, 3, 10, 12, 31, 0, 0, time.UTC).Equal(got))
}

func TestEvery(t *testing.T) {
	s := New()
	var runs atomic.Int32
	s.Every("tick", 5*time.Millisecond, func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()
}

func TestStopBeforeFirstRun(t *testing.T) {
	s := New()
	var runs atomic.Int32
	s.Every("slow", time.Hour, func(context.Context) { runs.Add(1) })
	s.DailyAt("daily", []Clock{{8, 31}}, time.UTC, func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.Wait()
	assert.Zero(t, runs.Load())
}

func TestDailyAt_EmptyIsIgnored(t *testing.T) {
	s := New()
	s.DailyAt("none", nil, time.UTC, func(context.Context) {})
	assert.Empty(t, s.entries)
}

func TestAddAfterStartPanics(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Wait()
	}()
	assert.Panics(t, func() { s.Every("late", time.Second, func(context.Context) {}) })
}
