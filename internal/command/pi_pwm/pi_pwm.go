package pipwm

import (
	"fmt"

	"github.com/Speshl/gorrc_robot/internal/command"
	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/hashicorp/go-hclog"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	Frequency          = 100000
	CycleLength        = uint32(2000)
	MaxSupportedServos = 2
)

var PinMap = []int{12, 13} //Servo0, Servo1

type CommandDriver struct {
	cfg    config.CommandConfig
	logger hclog.Logger
	opened bool
	servos map[string]Servo
}

type Servo struct {
	name     string
	inverted bool
	offset   float64
	servo    rpio.Pin
	maxValue uint32
	minValue uint32
}

func NewCommand(cfg config.CommandConfig, logger hclog.Logger) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *CommandDriver) Init() error {
	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}
	c.opened = true

	servos := make(map[string]Servo, MaxSupportedServos)
	for i := range c.cfg.ServoCfgs {
		if i >= MaxSupportedServos {
			c.logger.Warn("only two hardware pwm pins available, ignoring servo", "name", c.cfg.ServoCfgs[i].Name)
			continue
		}

		name := c.cfg.ServoCfgs[i].Name
		servos[name] = Servo{
			name:     name,
			inverted: c.cfg.ServoCfgs[i].Inverted,
			offset:   float64(c.cfg.ServoCfgs[i].Offset) / 100,
			servo:    rpio.Pin(PinMap[i]),
			maxValue: uint32(c.cfg.ServoCfgs[i].MaxPulse),
			minValue: uint32(c.cfg.ServoCfgs[i].MinPulse),
		}
		servos[name].servo.Mode(rpio.Pwm)
		servos[name].servo.Freq(Frequency)
		c.logger.Info("servo added", "name", name, "pin", PinMap[i])
	}
	c.servos = servos
	c.CenterAll()
	return nil
}

func (c *CommandDriver) Stop() error {
	if !c.opened {
		return nil
	}
	c.CenterAll()
	c.opened = false
	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	return nil
}

func (c *CommandDriver) CenterAll() {
	c.logger.Debug("centering all servos")
	for i := range c.servos {
		midValue := (c.servos[i].maxValue + c.servos[i].minValue) / 2
		c.servos[i].servo.DutyCycle(midValue, CycleLength)
	}
}

func (c *CommandDriver) SetMany(cmds []command.DriverCommand) error {
	return command.SetEach(cmds, c.Set)
}

func (c *CommandDriver) Set(cmd command.DriverCommand) error {
	val, ok := c.servos[cmd.Name]
	if !ok {
		return command.ErrUnknownChannel{Name: cmd.Name}
	}

	span := float64(val.maxValue - val.minValue)
	mappedValue := command.MapToRange(cmd.Value, cmd.Min, cmd.Max, float64(val.minValue), float64(val.maxValue))
	mappedValue = command.MapToRange(mappedValue+val.offset*span, float64(val.minValue), float64(val.maxValue), float64(val.minValue), float64(val.maxValue))
	if val.inverted {
		mappedValue = float64(val.maxValue+val.minValue) - mappedValue
	}

	val.servo.DutyCycle(uint32(mappedValue), CycleLength)
	return nil
}
