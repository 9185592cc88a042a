package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/drivestate"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChassis struct {
	lock   sync.Mutex
	drives []float64
	steers []float64
	stops  int
	err    error
}

func (f *fakeChassis) Drive(percent float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.drives = append(f.drives, percent)
	return f.err
}

func (f *fakeChassis) Steer(percent float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.steers = append(f.steers, percent)
	return f.err
}

func (f *fakeChassis) Stop() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.stops++
	return nil
}

func (f *fakeChassis) setErr(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.err = err
}

type fakeGimbal struct {
	lock    sync.Mutex
	pans    []float64
	tilts   []float64
	centers int
}

func (f *fakeGimbal) Pan(percent float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.pans = append(f.pans, percent)
	return nil
}

func (f *fakeGimbal) Tilt(percent float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.tilts = append(f.tilts, percent)
	return nil
}

func (f *fakeGimbal) Center() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.centers++
	return nil
}

func testConfig() config.ControlConfig {
	return config.ControlConfig{
		Period:             5 * time.Millisecond,
		FailureReportTicks: 3,
		FinalNeutral:       true,
	}
}

func TestTickReassertsUnchangedState(t *testing.T) {
	state := drivestate.New()
	state.Set(drivestate.Drive, 30)
	state.Set(drivestate.Pan, -10)
	chassis := &fakeChassis{}
	gimbal := &fakeGimbal{}
	loop := NewLoop(testConfig(), state, chassis, gimbal, hclog.NewNullLogger())

	loop.Tick()
	loop.Tick()
	loop.Tick()

	assert.Equal(t, []float64{30, 30, 30}, chassis.drives)
	assert.Equal(t, []float64{0, 0, 0}, chassis.steers)
	assert.Equal(t, []float64{-10, -10, -10}, gimbal.pans)
	assert.Equal(t, []float64{0, 0, 0}, gimbal.tilts)

	stats := loop.Stats()
	assert.Equal(t, uint64(3), stats.Ticks)
	assert.Equal(t, uint64(2), stats.LastVersion)
	assert.Zero(t, stats.FailedTicks)
}

func TestTickCountsFailuresAndKeepsGoing(t *testing.T) {
	state := drivestate.New()
	chassis := &fakeChassis{err: errors.New("i2c write failed")}
	gimbal := &fakeGimbal{}
	loop := NewLoop(testConfig(), state, chassis, gimbal, hclog.NewNullLogger())

	for i := 0; i < 4; i++ {
		loop.Tick()
	}

	stats := loop.Stats()
	assert.Equal(t, uint64(4), stats.Ticks)
	assert.Equal(t, uint64(4), stats.FailedTicks)
	assert.Equal(t, uint64(8), stats.FailedCalls)
	assert.Equal(t, uint64(4), stats.FailureStreak)
	assert.Len(t, gimbal.pans, 4)

	chassis.setErr(nil)
	loop.Tick()
	assert.Zero(t, loop.Stats().FailureStreak)
	assert.Equal(t, uint64(4), loop.Stats().FailedTicks)
}

func TestNilGimbal(t *testing.T) {
	chassis := &fakeChassis{}
	loop := NewLoop(testConfig(), drivestate.New(), chassis, nil, hclog.NewNullLogger())
	assert.NotPanics(t, loop.Tick)
	assert.Len(t, chassis.drives, 1)
}

func TestStartTicksAndNeutralsOnCancel(t *testing.T) {
	state := drivestate.New()
	state.Set(drivestate.Steer, 45)
	chassis := &fakeChassis{}
	gimbal := &fakeGimbal{}
	loop := NewLoop(testConfig(), state, chassis, gimbal, hclog.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return loop.Stats().Ticks >= 5
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	chassis.lock.Lock()
	assert.Equal(t, 1, chassis.stops)
	assert.Equal(t, 45.0, chassis.steers[0])
	chassis.lock.Unlock()
	gimbal.lock.Lock()
	assert.Equal(t, 1, gimbal.centers)
	gimbal.lock.Unlock()
}

func TestLoopDoesNotWaitOnWriters(t *testing.T) {
	state := drivestate.New()
	chassis := &fakeChassis{}
	loop := NewLoop(testConfig(), state, chassis, nil, hclog.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Start(ctx)

	for i := 0; i < 1000; i++ {
		state.Set(drivestate.Drive, float64(i%100))
	}

	require.Eventually(t, func() bool {
		return loop.Stats().LastVersion == 1000
	}, 2*time.Second, time.Millisecond)
}

type moverChassis struct {
	fakeChassis
	moves [][2]float64
}

func (m *moverChassis) Move(drive, steer float64) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.moves = append(m.moves, [2]float64{drive, steer})
	return nil
}

func TestTickMovesDriveAndSteerTogether(t *testing.T) {
	state := drivestate.New()
	state.Set(drivestate.Drive, 60)
	state.Set(drivestate.Steer, -20)
	chassis := &moverChassis{}
	loop := NewLoop(testConfig(), state, chassis, nil, hclog.NewNullLogger())

	loop.Tick()
	loop.Tick()

	assert.Equal(t, [][2]float64{{60, -20}, {60, -20}}, chassis.moves)
	assert.Empty(t, chassis.drives)
	assert.Empty(t, chassis.steers)
}
