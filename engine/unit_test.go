package engine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cardinal-Cryptography/alephsync/engine"
	"github.com/Cardinal-Cryptography/alephsync/utils/unittest"
)

func TestUnitDoneWaitsForWork(t *testing.T) {
	defer leaktest.Check(t)()

	unit := engine.NewUnit()

	started := make(chan struct{})
	release := make(chan struct{})
	finished := false

	unit.Launch(func() {
		close(started)
		<-release
		finished = true
	})
	<-started

	done := unit.Done()
	select {
	case <-done:
		t.Fatal("done closed while work was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	unittest.RequireCloseBefore(t, done, time.Second, "unit did not shut down")
	assert.True(t, finished)
}

func TestUnitRejectsWorkAfterDone(t *testing.T) {
	defer leaktest.Check(t)()

	unit := engine.NewUnit()
	unittest.RequireCloseBefore(t, unit.Done(), time.Second, "unit did not shut down")

	executed := false
	unit.Launch(func() {
		executed = true
	})
	err := unit.Do(func() error {
		executed = true
		return nil
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, executed)
}

func TestUnitQuitSignalsShutdown(t *testing.T) {
	defer leaktest.Check(t)()

	unit := engine.NewUnit()

	select {
	case <-unit.Quit():
		t.Fatal("quit closed before shutdown")
	default:
	}

	unittest.RequireCloseBefore(t, unit.Done(), time.Second, "unit did not shut down")

	select {
	case <-unit.Quit():
	default:
		t.Fatal("quit not closed after shutdown")
	}
}

func TestUnitLaunchPeriodically(t *testing.T) {
	defer leaktest.Check(t)()

	unit := engine.NewUnit()

	var mu sync.Mutex
	ticks := 0
	unit.LaunchPeriodically(func() {
		mu.Lock()
		defer mu.Unlock()
		ticks++
	}, time.Millisecond, 0)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, time.Second, time.Millisecond)

	unittest.RequireCloseBefore(t, unit.Done(), time.Second, "unit did not shut down")
}

func TestUnitReadyRunsChecks(t *testing.T) {
	defer leaktest.Check(t)()

	unit := engine.NewUnit()

	checked := false
	unittest.RequireCloseBefore(t, unit.Ready(func() { checked = true }), time.Second, "unit not ready")
	assert.True(t, checked)

	unittest.RequireCloseBefore(t, unit.Done(), time.Second, "unit did not shut down")
}
