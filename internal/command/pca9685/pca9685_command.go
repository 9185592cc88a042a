package pca9685

import (
	"fmt"

	"github.com/Speshl/gorrc_robot/internal/command"
	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
	"github.com/hashicorp/go-hclog"
)

const (
	MaxValue = 1.0
	MinValue = 0.0
	AcRange  = pca9685.ServoRangeDef

	MaxSupportedServos = 16
)

type CommandDriver struct {
	cfg    config.CommandConfig
	logger hclog.Logger
	bus    *i2c.Options
	driver *pca9685.PCA9685
	servos map[string]Servo
}

type Servo struct {
	name     string
	inverted bool
	offset   float64
	servo    *pca9685.Servo
}

func NewCommand(cfg config.CommandConfig, logger hclog.Logger) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *CommandDriver) Init() error {
	bus, err := i2c.New(c.cfg.Address, c.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}
	c.bus = bus

	c.driver, err = pca9685.New(bus, nil)
	if err != nil {
		return fmt.Errorf("error getting servo driver - %w", err)
	}

	servos := make(map[string]Servo, MaxSupportedServos)
	for i := range c.cfg.ServoCfgs {
		name := c.cfg.ServoCfgs[i].Name
		servos[name] = Servo{
			name:     name,
			inverted: c.cfg.ServoCfgs[i].Inverted,
			offset:   float64(c.cfg.ServoCfgs[i].Offset) / 100,
			servo: c.driver.ServoNew(c.cfg.ServoCfgs[i].Channel, &pca9685.ServOptions{
				AcRange:  AcRange,
				MinPulse: float32(c.cfg.ServoCfgs[i].MinPulse),
				MaxPulse: float32(c.cfg.ServoCfgs[i].MaxPulse),
			}),
		}
		c.logger.Info("servo added", "name", name, "channel", c.cfg.ServoCfgs[i].Channel)
	}
	c.servos = servos
	c.CenterAll()
	return nil
}

func (c *CommandDriver) Stop() error {
	c.CenterAll()
	if c.bus == nil {
		return nil
	}
	err := c.bus.Close()
	c.bus = nil
	if err != nil {
		return fmt.Errorf("failed closing i2c bus: %w", err)
	}
	return nil
}

func (c *CommandDriver) CenterAll() {
	c.logger.Debug("centering all servos")
	for i := range c.servos {
		err := c.servos[i].servo.Fraction(0.5)
		if err != nil {
			c.logger.Warn("failed centering servo", "name", c.servos[i].name, "error", err)
		}
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

	mappedValue := command.MapToRange(cmd.Value, cmd.Min, cmd.Max, MinValue, MaxValue)
	mappedValue = command.MapToRange(mappedValue+val.offset, MinValue, MaxValue, MinValue, MaxValue)
	if val.inverted {
		mappedValue = MaxValue - mappedValue
	}

	err := val.servo.Fraction(float32(mappedValue))
	if err != nil {
		return fmt.Errorf("failed setting servo value - name: %s value: %.2f - error: %w", cmd.Name, mappedValue, err)
	}
	return nil
}
