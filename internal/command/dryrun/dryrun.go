package dryrun

import (
	"sync"

	"github.com/Speshl/gorrc_robot/internal/command"
	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/hashicorp/go-hclog"
)

const (
	MaxValue = 1.0
	MinValue = 0.0
	MidValue = 0.5
)

// CommandDriver stands in for a servo board. It records the last fraction written
// to each configured channel and logs every command at trace level.
type CommandDriver struct {
	lock     sync.RWMutex
	cfg      config.CommandConfig
	logger   hclog.Logger
	channels map[string]float64
	writes   int
	stopped  bool
}

func NewCommand(cfg config.CommandConfig, logger hclog.Logger) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *CommandDriver) Init() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.channels = make(map[string]float64, len(c.cfg.ServoCfgs))
	for i := range c.cfg.ServoCfgs {
		c.channels[c.cfg.ServoCfgs[i].Name] = MidValue
		c.logger.Info("dry run channel added", "name", c.cfg.ServoCfgs[i].Name)
	}
	c.stopped = false
	return nil
}

func (c *CommandDriver) Stop() error {
	c.CenterAll()

	c.lock.Lock()
	defer c.lock.Unlock()
	c.stopped = true
	return nil
}

func (c *CommandDriver) CenterAll() {
	c.lock.Lock()
	defer c.lock.Unlock()

	for name := range c.channels {
		c.channels[name] = MidValue
	}
}

func (c *CommandDriver) SetMany(cmds []command.DriverCommand) error {
	return command.SetEach(cmds, c.Set)
}

func (c *CommandDriver) Set(cmd command.DriverCommand) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.channels[cmd.Name]; !ok {
		return command.ErrUnknownChannel{Name: cmd.Name}
	}

	fraction := command.MapToRange(cmd.Value, cmd.Min, cmd.Max, MinValue, MaxValue)
	c.channels[cmd.Name] = fraction
	c.writes++
	c.logger.Trace("set channel", "name", cmd.Name, "value", cmd.Value, "fraction", fraction)
	return nil
}

// Fraction returns the last output written to a channel, 0.5 being center.
func (c *CommandDriver) Fraction(name string) (float64, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	value, ok := c.channels[name]
	return value, ok
}

func (c *CommandDriver) Writes() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.writes
}

func (c *CommandDriver) Stopped() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.stopped
}
