// internal/timer/arena.go
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Checkpoints are the remaining-time values announced to clients.
var Checkpoints = map[int]bool{10: true, 30: true, 60: true, 180: true, 300: true}

// Listener receives countdown events. Both methods run on the countdown goroutine and must not
// assume any lock is held.
type Listener interface {
	// Checkpoint is called when the remaining time hits one of the Checkpoints.
	Checkpoint(code int64, remaining int)
	// Expired is called once when the countdown runs out. Implementations open their own unit of
	// work and must ignore the call unless IsCurrent(code, gen) holds inside it.
	Expired(ctx context.Context, code int64, gen uint64) error
}

type countdown struct {
	gen  uint64
	stop chan struct{}
}

// Arena keeps at most one countdown per lobby code.
//
// A countdown waits InitialDelay, then ticks every Period. On each tick: if remaining <= 0 the
// countdown expires and stops; otherwise a checkpoint value is announced, then remaining is
// decreased by Step.
type Arena struct {
	clock  clockwork.Clock
	logger logrus.FieldLogger

	InitialDelay time.Duration
	Period       time.Duration
	Step         int

	mu       sync.Mutex
	timers   map[int64]*countdown
	nextGen  uint64
	listener Listener
	wg       sync.WaitGroup
}

// NewArena creates an arena using the given clock (clockwork.NewRealClock() in production).
func NewArena(clock clockwork.Clock, initialDelay, period time.Duration, logger logrus.FieldLogger) *Arena {
	return &Arena{
		clock:        clock,
		logger:       logger,
		InitialDelay: initialDelay,
		Period:       period,
		Step:         10,
		timers:       make(map[int64]*countdown),
	}
}

// SetListener registers the receiver of checkpoint and expiry events.
func (a *Arena) SetListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = l
}

// Arm starts a countdown of the given seconds for the lobby, cancelling any previous one. The
// returned generation identifies the new countdown.
func (a *Arena) Arm(code int64, seconds int) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if old, ok := a.timers[code]; ok {
		close(old.stop)
		a.logger.WithField("lobby_code", code).Debug("replaced existing countdown")
	}
	a.nextGen++
	cd := &countdown{gen: a.nextGen, stop: make(chan struct{})}
	a.timers[code] = cd

	a.wg.Add(1)
	go a.run(code, seconds, cd)

	a.logger.WithFields(logrus.Fields{"lobby_code": code, "seconds": seconds}).Debug("armed countdown")
	return cd.gen
}

// Cancel discards the lobby's countdown, if any. Once it returns, IsCurrent is false for every
// generation previously armed for the lobby, so an expiry racing with Cancel is ignored by its unit
// of work. Safe to call from a Listener callback.
func (a *Arena) Cancel(code int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cd, ok := a.timers[code]; ok {
		close(cd.stop)
		delete(a.timers, code)
	}
}

// IsCurrent reports whether gen is the live countdown of the lobby.
func (a *Arena) IsCurrent(code int64, gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	cd, ok := a.timers[code]
	return ok && cd.gen == gen
}

// Active reports whether the lobby has a live countdown.
func (a *Arena) Active(code int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[code]
	return ok
}

// Len returns the number of live countdowns.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// Stop cancels every countdown and waits for their goroutines to exit or ctx to end.
func (a *Arena) Stop(ctx context.Context) error {
	a.mu.Lock()
	for code, cd := range a.timers {
		close(cd.stop)
		delete(a.timers, code)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Arena) run(code int64, remaining int, cd *countdown) {
	defer a.wg.Done()

	log := a.logger.WithField("lobby_code", code)
	delay := a.InitialDelay
	for {
		t := a.clock.NewTimer(delay)
		select {
		case <-cd.stop:
			stopAndDrainTimer(t)
			return
		case <-t.Chan():
		}
		delay = a.Period

		if !a.IsCurrent(code, cd.gen) {
			return
		}
		listener := a.currentListener()

		if remaining <= 0 {
			if listener != nil {
				if err := listener.Expired(context.Background(), code, cd.gen); err != nil {
					log.WithError(err).Error("countdown expiry failed")
				}
			}
			a.Discard(code, cd.gen)
			return
		}
		if Checkpoints[remaining] && listener != nil {
			listener.Checkpoint(code, remaining)
		}
		remaining -= a.Step
	}
}

func (a *Arena) currentListener() Listener {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener
}

// Discard cancels the lobby's countdown only if gen is still the live one.
func (a *Arena) Discard(code int64, gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cd, ok := a.timers[code]; ok && cd.gen == gen {
		close(cd.stop)
		delete(a.timers, code)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
