// Package engine provides the building blocks shared by all engines: the
// Unit lifecycle helper and the message handler that buffers inbound network
// traffic for asynchronous processing.
package engine

import (
	"context"
	"sync"
	"time"
)

// Unit handles synchronization management, startup, and shutdown for engines.
type Unit struct {
	admitLock sync.Mutex // protects forbidding new work against shutdown

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewUnit returns an initialized Unit.
func NewUnit() *Unit {
	ctx, cancel := context.WithCancel(context.Background())
	return &Unit{
		ctx:    ctx,
		cancel: cancel,
	}
}

// admit registers new work unless the unit has begun shutting down.
func (u *Unit) admit() bool {
	u.admitLock.Lock()
	defer u.admitLock.Unlock()

	select {
	case <-u.ctx.Done():
		return false
	default:
	}

	u.wg.Add(1)
	return true
}

func (u *Unit) stopAdmitting() {
	u.admitLock.Lock()
	defer u.admitLock.Unlock()
	u.cancel()
}

// Do synchronously executes the input function f unless the unit has shut
// down.
func (u *Unit) Do(f func() error) error {
	if !u.admit() {
		return nil
	}
	defer u.wg.Done()
	return f()
}

// Launch asynchronously executes the input function unless the unit has
// shut down.
func (u *Unit) Launch(f func()) {
	if !u.admit() {
		return
	}
	go func() {
		defer u.wg.Done()
		f()
	}()
}

// LaunchPeriodically asynchronously executes the input function on interval
// periods, starting after the delay, until the unit shuts down.
func (u *Unit) LaunchPeriodically(f func(), interval time.Duration, delay time.Duration) {
	u.Launch(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		select {
		case <-time.After(delay):
		case <-u.ctx.Done():
			return
		}

		for {
			select {
			case <-ticker.C:
				f()
			case <-u.ctx.Done():
				return
			}
		}
	})
}

// Ready returns a channel that is closed when the unit is ready, which is
// the case once all the given check functions have been executed.
func (u *Unit) Ready(checks ...func()) <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		for _, check := range checks {
			check()
		}
		close(ready)
	}()
	return ready
}

// Quit returns a channel that is closed when the unit begins to shut down.
func (u *Unit) Quit() <-chan struct{} {
	return u.ctx.Done()
}

// Done returns a channel that is closed when the unit is done. A unit is
// done when (i) all the given action functions have been executed and (ii)
// all pending work admitted through Do or Launch has completed.
func (u *Unit) Done(actions ...func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for _, action := range actions {
			action()
		}
		u.stopAdmitting()
		u.wg.Wait()
		close(done)
	}()
	return done
}
