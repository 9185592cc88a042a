package vehicle

import (
	"errors"
	"math"
	"sync"
)

// Mover is a chassis that can take drive and steer in one call, so outputs that
// depend on both are computed once from a consistent pair.
type Mover interface {
	Move(drive, steer float64) error
}

// SingleMotorChassis is one drive motor with a steering servo.
type SingleMotorChassis struct {
	steer *PercentServo
	drive Actuator
}

func NewSingleMotorChassis(steer *PercentServo, drive Actuator) *SingleMotorChassis {
	return &SingleMotorChassis{
		steer: steer,
		drive: drive,
	}
}

func (c *SingleMotorChassis) Drive(percent float64) error {
	return c.drive.SetSpeed(clampPercent(percent))
}

func (c *SingleMotorChassis) Steer(percent float64) error {
	return c.steer.SetPercent(clampPercent(percent))
}

func (c *SingleMotorChassis) Move(drive, steer float64) error {
	return errors.Join(c.Drive(drive), c.Steer(steer))
}

func (c *SingleMotorChassis) Stop() error {
	return c.Move(0, 0)
}

// DifferentialChassis is two rear motors with a steering servo. The inner wheel on a
// turn runs at 1-|steer|/100 of the drive power.
type DifferentialChassis struct {
	lock   sync.Mutex
	steer  *PercentServo
	wheels Wheels

	drivePct float64
	steerPct float64
}

func NewDifferentialChassis(steer *PercentServo, wheels Wheels) *DifferentialChassis {
	return &DifferentialChassis{
		steer:  steer,
		wheels: wheels,
	}
}

func (c *DifferentialChassis) Drive(percent float64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.drivePct = clampPercent(percent)
	return c.applyDrive()
}

func (c *DifferentialChassis) Steer(percent float64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.steerPct = clampPercent(percent)
	err := c.steer.SetPercent(c.steerPct)
	return errors.Join(err, c.applyDrive())
}

// Move sets steering then drives both wheels once with the split for this steer.
func (c *DifferentialChassis) Move(drive, steer float64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.drivePct = clampPercent(drive)
	c.steerPct = clampPercent(steer)
	err := c.steer.SetPercent(c.steerPct)
	return errors.Join(err, c.applyDrive())
}

func (c *DifferentialChassis) Stop() error {
	return c.Move(0, 0)
}

func (c *DifferentialChassis) applyDrive() error {
	left, right := WheelPower(c.drivePct, c.steerPct)
	return c.wheels.SetSpeeds(left, right)
}

// WheelPower splits drive power between left and right wheels for a steering percent.
func WheelPower(drive, steer float64) (float64, float64) {
	if steer == 0 {
		return drive, drive
	}

	powerScale := 1.0 - math.Abs(steer)/MaxPercent
	if steer > 0 {
		return drive, drive * powerScale
	}
	return drive * powerScale, drive
}
