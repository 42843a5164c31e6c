package persistentactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SnapshotSchedule drives when an Actor writes a new snapshot. Start is
// called once, at Spawn/Restore time; due is invoked from an arbitrary
// goroutine every time a snapshot decision point is reached. The returned
// stop func halts further calls and is safe to call more than once.
type SnapshotSchedule interface {
	Start(due func()) (stop func())
}

// IntervalSchedule fires due at a fixed period, grounded on the teacher's
// TimerEventSource (internal/extensibility/eventsource.go): a time.Ticker
// driven from its own goroutine, torn down over a stop channel.
type IntervalSchedule struct {
	Interval time.Duration
}

func (s IntervalSchedule) Start(due func()) func() {
	ticker := time.NewTicker(s.Interval)
	stop := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				due()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}

// CronSnapshotSchedule fires due at the next occurrence of a cron
// expression. Unlike IntervalSchedule it never runs a continuously
// ticking loop: it asks robfig/cron's Parser for the single next fire
// time and arms a time.Timer for exactly that long, re-arming itself each
// time the timer fires. This is deliberately lighter than standing up a
// full cron.Cron scheduler daemon for what is, per actor, a single
// recurring job.
type CronSnapshotSchedule struct {
	schedule cron.Schedule
}

// NewCronSnapshotSchedule parses a standard five-field cron expression
// (minute hour day-of-month month day-of-week).
func NewCronSnapshotSchedule(expr string) (*CronSnapshotSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("persistentactor: parse cron expression %q: %w", expr, err)
	}
	return &CronSnapshotSchedule{schedule: sched}, nil
}

func (s *CronSnapshotSchedule) Start(due func()) func() {
	stopped := make(chan struct{})
	var mu sync.Mutex
	var timer *time.Timer

	var arm func()
	arm = func() {
		next := s.schedule.Next(time.Now())
		mu.Lock()
		timer = time.AfterFunc(time.Until(next), func() {
			select {
			case <-stopped:
				return
			default:
			}
			due()
			arm()
		})
		mu.Unlock()
	}
	arm()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopped)
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		})
	}
}
