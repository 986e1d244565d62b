package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"

	"github.com/mohammad-safakhou/insight/config"
)

// Scheduler fires configured research queries on a cron cadence. Runs go
// through the shared Runner, which serialises them with API-triggered runs.
type Scheduler struct {
	Runner    *Runner
	Schedules []config.ScheduleConfig
	Stop      chan struct{}
	Logger    *log.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func (s *Scheduler) Start() {
	if len(s.Schedules) == 0 {
		return
	}
	if s.Logger == nil {
		s.Logger = log.Default()
	}
	s.lastRun = make(map[string]time.Time)
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	for _, sched := range s.Schedules {
		if sched.Query == "" {
			continue
		}
		key := sched.Name
		if key == "" {
			key = sched.Query
		}
		s.mu.Lock()
		last, ran := s.lastRun[key]
		s.mu.Unlock()
		var lastPtr *time.Time
		if ran {
			lastPtr = &last
		}
		if !isDue(sched.CronSpec, lastPtr) {
			continue
		}
		s.mu.Lock()
		s.lastRun[key] = time.Now()
		s.mu.Unlock()

		id := uuid.NewString()
		s.Logger.Printf("firing %q (engine %s) as session %s", key, sched.Engine, id)
		if _, err := s.Runner.Run(context.Background(), sched.Engine, id, sched.Query); err != nil {
			s.Logger.Printf("scheduled run %q failed: %v", key, err)
		}
	}
}

// isDue determines whether a schedule with cronSpec should run now given the
// last run time. Supports "@daily", "@hourly" and standard 5-field cron
// expressions; invalid specs degrade to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}

// ValidateSchedules rejects schedules with no query up front so a bad
// config entry fails at startup rather than silently never firing.
func ValidateSchedules(schedules []config.ScheduleConfig) error {
	for i, sched := range schedules {
		if sched.Query == "" {
			return fmt.Errorf("schedule %d (%q): query is required", i, sched.Name)
		}
	}
	return nil
}
