// Package scheduler fires daily star map rebuilds at a fixed local time.
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// clockRegex matches a zero-padded 24h HH:MM clock time.
var clockRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Scheduler runs one job once a day at a fixed time in a timezone.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// NewScheduler creates a scheduler for the given IANA timezone.
func NewScheduler(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		location: loc,
	}, nil
}

// ScheduleDaily registers job to run every day at the given HH:MM
// clock time, replacing any previously scheduled job.
func (s *Scheduler) ScheduleDaily(clock string, job func()) error {
	spec, err := cronSpec(clock)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	return nil
}

// NextRun reports when the scheduled job fires next. The zero time
// means nothing is scheduled or the scheduler has not started.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler. A job already running is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

// cronSpec converts an HH:MM clock time to a daily cron expression.
func cronSpec(clock string) (string, error) {
	m := clockRegex.FindStringSubmatch(clock)
	if m == nil {
		return "", fmt.Errorf("invalid time %q (expected HH:MM)", clock)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	// Cron format: minute hour day month weekday
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
