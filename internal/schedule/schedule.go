// Package schedule runs refresh jobs on fixed intervals or at wall clock
// times in a given zone.
package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/macrotracker/internal/logger"
)

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Job is one unit of scheduled work. Runs of the same job never overlap.
type Job func(ctx context.Context)

// Scheduler owns one goroutine per registered job between Start and the
// cancellation of the context passed to Start.
type Scheduler struct {
	mu      sync.Mutex
	entries []entry
	started bool
	wg      sync.WaitGroup
	now     func() time.Time
}

type entry struct {
	name string
	next func(now time.Time) time.Time
	job  Job
}

func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Every runs job every interval, the first time one interval after Start.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	s.add(entry{
		name: name,
		next: func(now time.Time) time.Time { return now.Add(interval) },
		job:  job,
	})
}

// DailyAt runs job at each of times, read as wall clock in loc.
func (s *Scheduler) DailyAt(name string, times []Clock, loc *time.Location, job Job) {
	if len(times) == 0 {
		return
	}
	s.add(entry{
		name: name,
		next: func(now time.Time) time.Time { return NextOccurrence(now, times, loc) },
		job:  job,
	})
}

func (s *Scheduler) add(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic("schedule: job added after Start")
	}
	s.entries = append(s.entries, e)
}

// Start launches every job loop. They stop when ctx is done; Wait blocks
// until they have.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	entries := append([]entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	defer s.wg.Done()

	for {
		at := e.next(s.now())
		logger.Debug("job scheduled", "job", e.name, "at", at)

		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug("job stopped", "job", e.name)
			return
		case <-timer.C:
		}

		start := time.Now()
		e.job(ctx)
		logger.Debug("job finished", "job", e.name, "took", time.Since(start))
	}
}

// NextOccurrence returns the first of times, in loc, strictly after now.
func NextOccurrence(now time.Time, times []Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	sorted := append([]Clock(nil), times...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hour != sorted[j].Hour {
			return sorted[i].Hour < sorted[j].Hour
		}
		return sorted[i].Minute < sorted[j].Minute
	})

	y, m, d := local.Date()
	for day := 0; day < 2; day++ {
		for _, c := range sorted {
			at := time.Date(y, m, d+day, c.Hour, c.Minute, 0, 0, loc)
			if at.After(now) {
				return at
			}
		}
	}
	// Only reachable with an empty list.
	return now.Add(24 * time.Hour)
}
