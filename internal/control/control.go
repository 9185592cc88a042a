package control

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/drivestate"
	"github.com/Speshl/gorrc_robot/internal/vehicle"
	"github.com/hashicorp/go-hclog"
)

type Snapshotter interface {
	Snapshot() drivestate.Snapshot
}

type Stats struct {
	Ticks         uint64
	FailedTicks   uint64
	FailedCalls   uint64
	FailureStreak uint64
	LastVersion   uint64
}

// Loop re-asserts the desired drive state on the actuators every period, whether
// or not it changed.
type Loop struct {
	cfg     config.ControlConfig
	logger  hclog.Logger
	state   Snapshotter
	chassis vehicle.Chassis
	gimbal  vehicle.GimbalControl

	ticks         atomic.Uint64
	failedTicks   atomic.Uint64
	failedCalls   atomic.Uint64
	failureStreak atomic.Uint64
	lastVersion   atomic.Uint64
}

// NewLoop builds the control loop. gimbal may be nil for robots without a camera mount.
func NewLoop(cfg config.ControlConfig, state Snapshotter, chassis vehicle.Chassis, gimbal vehicle.GimbalControl, logger hclog.Logger) *Loop {
	if cfg.Period <= 0 {
		cfg.Period = config.DefaultControlPeriod
	}
	return &Loop{
		cfg:     cfg,
		logger:  logger,
		state:   state,
		chassis: chassis,
		gimbal:  gimbal,
	}
}

func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("starting control loop", "period", l.cfg.Period.String())
	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if l.cfg.FinalNeutral {
				l.neutral()
			}
			l.logger.Info("control loop stopped", "ticks", l.ticks.Load(), "failed_ticks", l.failedTicks.Load())
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick applies one snapshot to every actuator. Failures are counted and logged but
// never stop the loop.
func (l *Loop) Tick() {
	snap := l.state.Snapshot()
	l.ticks.Add(1)
	l.lastVersion.Store(snap.Version)

	var errs []error
	if mover, ok := l.chassis.(vehicle.Mover); ok {
		errs = append(errs, wrap("move", mover.Move(snap.DrivePct, snap.SteerPct)))
	} else {
		errs = append(errs,
			wrap("drive", l.chassis.Drive(snap.DrivePct)),
			wrap("steer", l.chassis.Steer(snap.SteerPct)),
		)
	}
	if l.gimbal != nil {
		errs = append(errs,
			wrap("pan", l.gimbal.Pan(snap.PanPct)),
			wrap("tilt", l.gimbal.Tilt(snap.TiltPct)),
		)
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}

	if failed == 0 {
		streak := l.failureStreak.Swap(0)
		if streak >= uint64(l.reportTicks()) {
			l.logger.Info("actuators recovered", "failed_ticks", streak)
		}
		return
	}

	l.failedCalls.Add(uint64(failed))
	l.failedTicks.Add(1)
	streak := l.failureStreak.Add(1)
	err := errors.Join(errs...)
	l.logger.Debug("actuator command failed", "error", err)

	if streak == uint64(l.reportTicks()) {
		l.logger.Error("actuators failing persistently, still re-asserting", "failed_ticks", streak, "error", err)
	}
}

func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:         l.ticks.Load(),
		FailedTicks:   l.failedTicks.Load(),
		FailedCalls:   l.failedCalls.Load(),
		FailureStreak: l.failureStreak.Load(),
		LastVersion:   l.lastVersion.Load(),
	}
}

func (l *Loop) neutral() {
	err := l.chassis.Stop()
	if l.gimbal != nil {
		err = errors.Join(err, l.gimbal.Center())
	}
	if err != nil {
		l.logger.Error("failed setting final neutral", "error", err)
		return
	}
	l.logger.Info("actuators returned to neutral")
}

func (l *Loop) reportTicks() int {
	if l.cfg.FailureReportTicks <= 0 {
		return 1
	}
	return l.cfg.FailureReportTicks
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
