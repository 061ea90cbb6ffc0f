// Package scheduler runs a job on a cron-derived cadence (spec §4.G):
// a single-threaded cooperative state machine with a cancellable sleep,
// grounded on the teacher's own single-worker run loop (internal/mysql's
// Worker) but generalized from a one-shot Run to a recurring one.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ckr3453/db-backup4j/internal/cron"
)

// State is the scheduler's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Job is the unit of recurring work. Errors are swallowed into the
// scheduler's aggregated log, never stopping the schedule.
type Job func(ctx context.Context) error

// Scheduler fires Job at the next cron-computed time after each
// completed run, never coalescing missed fires.
type Scheduler struct {
	expr     *cron.Expression
	location *time.Location
	job      Job
	clock    func() time.Time

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// New constructs a Scheduler from a parsed cron expression and timezone.
func New(expr *cron.Expression, loc *time.Location, job Job) *Scheduler {
	return &Scheduler{
		expr:     expr,
		location: loc,
		job:      job,
		clock:    time.Now,
		state:    Idle,
	}
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Idle -> Running and begins the fire loop in a new
// goroutine. Calling Start on a non-Idle scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return
	}
	s.state = Running
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop signals the fire loop to exit: a pending sleep is cancelled at
// once, while a job already running is allowed to finish. It blocks until
// the loop has exited. Calling Stop on a non-Running scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	stop := s.stop
	done := s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// AwaitTermination blocks until the fire loop has exited, whether
// that happened because Stop was called or because ctx was canceled
// out from under it (e.g. by a process-level shutdown signal).
// Calling it before Start has no effect.
func (s *Scheduler) AwaitTermination() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return
	}
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.state = Stopped
		close(s.done)
		s.mu.Unlock()
	}()

	for {
		now := s.clock().In(s.location)
		next, err := s.expr.NextAfter(now, s.location)
		if err != nil {
			log.Printf("scheduler: failed to compute next fire time: %v", err)
			return
		}

		wait := next.Sub(now)
		timer := time.NewTimer(wait)

		select {
		case <-timer.C:
		case <-s.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}

		if err := s.job(ctx); err != nil {
			log.Printf("scheduler: run failed: %v", err)
		}

		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}
