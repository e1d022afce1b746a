package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/models"
)

// State of the refresh state machine.
type State int

const (
	// Idle means the scheduler has not been started.
	Idle State = iota
	// WaitingForWake means the scheduler is sleeping until the next
	// policy-dictated wake time.
	WaitingForWake
	// Fetching means a refresh is in flight.
	Fetching
	// Cooldown is the momentary annotation state entered after a failed
	// fetch, before the next wake is scheduled.
	Cooldown
	// Paused means scheduled wakes are suspended until the portfolio is
	// reconfigured. Manual refreshes still work.
	Paused
	// Stopped means the scheduler has shut down.
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForWake:
		return "waiting"
	case Fetching:
		return "fetching"
	case Cooldown:
		return "cooldown"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// FetchFunc performs one refresh. The trigger is TriggerScheduled or
// TriggerManual, recorded for fetch history.
type FetchFunc func(ctx context.Context, trigger string) (*models.PortfolioSnapshot, error)

// Result is delivered to manual-refresh callers, including callers that
// piggy-backed on an already in-flight fetch.
type Result struct {
	Snapshot *models.PortfolioSnapshot
	Err      error
}

// ErrStopped is returned by Refresh after the scheduler shuts down.
var ErrStopped = errors.New("scheduler stopped")

// Scheduler drives the refresh loop for a single portfolio. At most one
// fetch is ever in flight; manual requests arriving during a fetch share
// its result instead of starting another call.
type Scheduler struct {
	name      string
	opts      models.ScheduleOptions
	loc       *time.Location
	fetch     FetchFunc
	onSuccess func(*models.PortfolioSnapshot)
	onError   func(error)
	now       func() time.Time

	manual chan chan Result
	poke   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	paused        bool
	inFlight      bool
	nextWakeAt    time.Time
	lastAttemptAt time.Time
	lastSuccessAt time.Time
	lastError     string
	lastErrorKind string
	lastErrorAt   time.Time
}

// New creates a scheduler for one portfolio. The observers may be nil.
func New(name string, opts models.ScheduleOptions, loc *time.Location, fetch FetchFunc) *Scheduler {
	return &Scheduler{
		name:   name,
		opts:   opts,
		loc:    loc,
		fetch:  fetch,
		now:    time.Now,
		manual: make(chan chan Result, 16),
		poke:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// OnSuccess registers the observer invoked once per successful fetch.
func (s *Scheduler) OnSuccess(fn func(*models.PortfolioSnapshot)) *Scheduler {
	s.onSuccess = fn
	return s
}

// OnError registers the observer invoked once per failed fetch.
func (s *Scheduler) OnError(fn func(error)) *Scheduler {
	s.onError = fn
	return s
}

// Start launches the refresh loop. Must be called at most once.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop cancels the pending wake timer and any in-flight fetch, then waits
// for the loop to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Refresh triggers an immediate fetch and waits for its result. If a fetch
// is already in flight the call does not start a second one; it observes
// the in-flight result.
func (s *Scheduler) Refresh(ctx context.Context) (*models.PortfolioSnapshot, error) {
	ch := make(chan Result, 1)
	select {
	case s.manual <- ch:
	case <-s.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-ch:
		return r.Snapshot, r.Err
	case <-s.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pause suspends scheduled wakes. Manual refreshes remain available and a
// successful one resumes the schedule.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.wakeLoop()
}

// Resume re-enables scheduled wakes.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.wakeLoop()
}

// Snapshot returns the observable schedule state.
func (s *Scheduler) Snapshot() models.ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := models.ScheduleState{
		State:    s.state.String(),
		InFlight: s.inFlight,
	}
	if !s.nextWakeAt.IsZero() && s.state == WaitingForWake {
		t := s.nextWakeAt
		st.NextWakeAt = &t
	}
	if !s.lastAttemptAt.IsZero() {
		t := s.lastAttemptAt
		st.LastAttemptAt = &t
	}
	if !s.lastSuccessAt.IsZero() {
		t := s.lastSuccessAt
		st.LastSuccessAt = &t
	}
	if !s.lastErrorAt.IsZero() {
		t := s.lastErrorAt
		st.LastErrorAt = &t
		st.LastError = s.lastError
		st.LastErrorKind = s.lastErrorKind
	}
	return st
}

// wakeLoop nudges the run loop to re-evaluate its wait condition.
func (s *Scheduler) wakeLoop() {
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.setState(Stopped)
		close(s.done)
	}()

	for {
		if s.isPaused() {
			s.setState(Paused)
			select {
			case <-ctx.Done():
				return
			case ch := <-s.manual:
				s.doFetch(ctx, models.TriggerManual, []chan Result{ch})
			case <-s.poke:
			}
			continue
		}

		next := NextWake(s.now(), s.opts, s.loc)
		s.setWaiting(next)
		timer := time.NewTimer(next.Sub(s.now()))

		trigger := models.TriggerScheduled
		var waiters []chan Result
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case ch := <-s.manual:
			timer.Stop()
			trigger = models.TriggerManual
			waiters = append(waiters, ch)
		case <-s.poke:
			timer.Stop()
			continue
		}

		s.doFetch(ctx, trigger, waiters)
	}
}

// doFetch runs a single fetch, delivering the result to every waiter that
// asked for it, including manual requests that arrived mid-flight.
func (s *Scheduler) doFetch(ctx context.Context, trigger string, waiters []chan Result) {
	start := s.now()
	s.mu.Lock()
	s.inFlight = true
	s.state = Fetching
	s.lastAttemptAt = start
	s.mu.Unlock()

	snapshot, err := s.fetch(ctx, trigger)

	// Manual requests that arrived while the fetch was in flight
	// piggy-back on this result rather than starting another call.
	for drained := false; !drained; {
		select {
		case ch := <-s.manual:
			waiters = append(waiters, ch)
		default:
			drained = true
		}
	}

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.state = Cooldown
		s.lastError = err.Error()
		s.lastErrorKind = apperrors.Kind(err)
		s.lastErrorAt = s.now()
		// Configuration drift: stop scheduled polling until the
		// portfolio is reconfigured.
		if apperrors.IsPortfolioNotFound(err) {
			s.paused = true
		}
	} else {
		s.state = Cooldown // transient; cleared by the next setWaiting
		s.lastSuccessAt = s.now()
		s.lastError = ""
		s.lastErrorKind = ""
		s.lastErrorAt = time.Time{}
		if s.paused {
			// A manual refresh succeeded while paused.
			s.paused = false
		}
	}
	s.mu.Unlock()

	if ctx.Err() == nil {
		if err != nil {
			log.Printf("[Scheduler] %s: fetch failed (%s): %v", s.name, trigger, err)
			if s.onError != nil {
				s.onError(err)
			}
		} else {
			log.Printf("[Scheduler] %s: fetch succeeded (%s)", s.name, trigger)
			if s.onSuccess != nil {
				s.onSuccess(snapshot)
			}
		}
	}

	for _, ch := range waiters {
		ch <- Result{Snapshot: snapshot, Err: err}
	}
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setWaiting(next time.Time) {
	s.mu.Lock()
	s.state = WaitingForWake
	s.nextWakeAt = next
	s.mu.Unlock()
}
