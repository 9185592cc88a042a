package vehicle

import (
	"errors"
	"fmt"

	"github.com/Speshl/gorrc_robot/internal/command"
)

// ChannelActuator drives a named command driver channel as a motor. Factor scales
// and/or reverses output; -0.5 runs reversed at half speed.
type ChannelActuator struct {
	driver command.Driver
	name   string
	factor float64
}

func NewChannelActuator(driver command.Driver, name string, factor float64) *ChannelActuator {
	if factor > 1 {
		factor = 1
	} else if factor < -1 {
		factor = -1
	}
	return &ChannelActuator{
		driver: driver,
		name:   name,
		factor: factor,
	}
}

func (c *ChannelActuator) Command(percent float64) command.DriverCommand {
	return command.DriverCommand{
		Name:  c.name,
		Value: clampPercent(percent) * c.factor,
		Min:   MinPercent,
		Max:   MaxPercent,
	}
}

func (c *ChannelActuator) SetSpeed(percent float64) error {
	err := c.driver.Set(c.Command(percent))
	if err != nil {
		return fmt.Errorf("failed setting %s speed: %w", c.name, err)
	}
	return nil
}

// Wheels sets the left and right rear motors together.
type Wheels interface {
	SetSpeeds(left, right float64) error
}

// ChannelWheels sends both wheel commands to the driver in one batch.
type ChannelWheels struct {
	driver command.Driver
	left   *ChannelActuator
	right  *ChannelActuator
}

func NewChannelWheels(driver command.Driver, left, right *ChannelActuator) *ChannelWheels {
	return &ChannelWheels{
		driver: driver,
		left:   left,
		right:  right,
	}
}

func (w *ChannelWheels) SetSpeeds(left, right float64) error {
	err := w.driver.SetMany([]command.DriverCommand{
		w.left.Command(left),
		w.right.Command(right),
	})
	if err != nil {
		return fmt.Errorf("failed setting wheel speeds: %w", err)
	}
	return nil
}

// ActuatorWheels pairs two independent actuators.
type ActuatorWheels struct {
	Left  Actuator
	Right Actuator
}

func (w ActuatorWheels) SetSpeeds(left, right float64) error {
	return errors.Join(w.Left.SetSpeed(left), w.Right.SetSpeed(right))
}

// ChannelServo drives a named command driver channel as a servo whose full pulse
// range covers [minAngle, maxAngle].
type ChannelServo struct {
	driver   command.Driver
	name     string
	minAngle float64
	maxAngle float64
}

func NewChannelServo(driver command.Driver, name string, minAngle, maxAngle float64) *ChannelServo {
	return &ChannelServo{
		driver:   driver,
		name:     name,
		minAngle: minAngle,
		maxAngle: maxAngle,
	}
}

func (c *ChannelServo) SetAngle(degrees float64) error {
	err := c.driver.Set(command.DriverCommand{
		Name:  c.name,
		Value: degrees,
		Min:   c.minAngle,
		Max:   c.maxAngle,
	})
	if err != nil {
		return fmt.Errorf("failed setting %s angle: %w", c.name, err)
	}
	return nil
}
