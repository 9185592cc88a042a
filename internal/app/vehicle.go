package app

import (
	"fmt"
	"time"

	"github.com/Speshl/gorrc_robot/internal/command"
	"github.com/Speshl/gorrc_robot/internal/command/dryrun"
	"github.com/Speshl/gorrc_robot/internal/command/pca9685"
	pipwm "github.com/Speshl/gorrc_robot/internal/command/pi_pwm"
	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/models"
	"github.com/Speshl/gorrc_robot/internal/vehicle"
	"github.com/hashicorp/go-hclog"
)

func NewCommandDriver(cfg config.CommandConfig, logger hclog.Logger) (command.Driver, error) {
	switch cfg.CommandDriver {
	case "pca9685":
		return pca9685.NewCommand(cfg, logger), nil
	case "pipwm", "pi_pwm":
		return pipwm.NewCommand(cfg, logger), nil
	case "dryrun", "":
		return dryrun.NewCommand(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported command driver: %s", cfg.CommandDriver)
	}
}

// RequiredChannels lists every command channel the chassis and gimbal will drive.
func RequiredChannels(cfg config.Config) []string {
	channels := []string{cfg.ChassisCfg.Steer.Channel}
	if cfg.ChassisCfg.Type == "differential" {
		channels = append(channels, cfg.ChassisCfg.LeftChannel, cfg.ChassisCfg.RightChannel)
	} else {
		channels = append(channels, cfg.ChassisCfg.DriveChannel)
	}
	if cfg.GimbalCfg.Enabled {
		channels = append(channels, cfg.GimbalCfg.Pan.Channel)
		if cfg.GimbalCfg.TiltEnabled {
			channels = append(channels, cfg.GimbalCfg.Tilt.Channel)
		}
	}
	return channels
}

// withDryRunChannels adds a dry run channel for every required channel not configured.
func withDryRunChannels(cfg config.Config) config.CommandConfig {
	commandCfg := cfg.CommandCfg
	configured := make(map[string]bool, len(commandCfg.ServoCfgs))
	for _, servoCfg := range commandCfg.ServoCfgs {
		configured[servoCfg.Name] = true
	}

	servoCfgs := append([]config.ServoConfig{}, commandCfg.ServoCfgs...)
	for _, name := range RequiredChannels(cfg) {
		if configured[name] {
			continue
		}
		configured[name] = true
		servoCfgs = append(servoCfgs, config.ServoConfig{
			Name:     name,
			Channel:  len(servoCfgs),
			MaxPulse: config.DefaultMaxPulse,
			MinPulse: config.DefaultMinPulse,
		})
	}
	commandCfg.ServoCfgs = servoCfgs
	return commandCfg
}

func (a *App) buildVehicle() error {
	commandCfg := a.Cfg.CommandCfg
	if commandCfg.CommandDriver == "dryrun" || commandCfg.CommandDriver == "" {
		commandCfg = withDryRunChannels(a.Cfg)
	}

	driver, err := NewCommandDriver(commandCfg, a.logger.Named("command"))
	if err != nil {
		return err
	}
	err = driver.Init()
	if err != nil {
		return fmt.Errorf("failed initializing command driver %s: %w", commandCfg.CommandDriver, err)
	}
	a.command = driver

	a.chassis, err = NewChassis(a.Cfg.ChassisCfg, driver)
	if err != nil {
		a.shutdownDriver()
		return err
	}

	if a.Cfg.GimbalCfg.Enabled {
		a.gimbal, err = NewGimbal(a.Cfg.GimbalCfg, driver)
		if err != nil {
			a.shutdownDriver()
			return err
		}
	}
	return nil
}

func newPercentServo(cfg config.AngleServoConfig, driver command.Driver) (*vehicle.PercentServo, error) {
	servo := vehicle.NewChannelServo(driver, cfg.Channel, cfg.MinAngle, cfg.MaxAngle)
	percentServo, err := vehicle.NewPercentServo(servo, cfg.MinAngle, cfg.MaxAngle, cfg.ZeroAngle, cfg.Reverse)
	if err != nil {
		return nil, fmt.Errorf("servo %s: %w", cfg.Channel, err)
	}
	return percentServo, nil
}

func NewChassis(cfg config.ChassisConfig, driver command.Driver) (vehicle.Chassis, error) {
	steer, err := newPercentServo(cfg.Steer, driver)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "single", "":
		drive := vehicle.NewChannelActuator(driver, cfg.DriveChannel, cfg.DriveFactor)
		return vehicle.NewSingleMotorChassis(steer, drive), nil
	case "differential":
		left := vehicle.NewChannelActuator(driver, cfg.LeftChannel, cfg.LeftFactor)
		right := vehicle.NewChannelActuator(driver, cfg.RightChannel, cfg.RightFactor)
		return vehicle.NewDifferentialChassis(steer, vehicle.NewChannelWheels(driver, left, right)), nil
	default:
		return nil, fmt.Errorf("unsupported chassis type: %s", cfg.Type)
	}
}

func NewGimbal(cfg config.GimbalConfig, driver command.Driver) (vehicle.GimbalControl, error) {
	pan, err := newPercentServo(cfg.Pan, driver)
	if err != nil {
		return nil, err
	}

	var tilt *vehicle.PercentServo
	if cfg.TiltEnabled {
		tilt, err = newPercentServo(cfg.Tilt, driver)
		if err != nil {
			return nil, err
		}
	}
	return vehicle.NewServoGimbal(pan, tilt), nil
}

func (a *App) health() models.Health {
	stats := a.loop.Stats()
	health := models.Health{
		Status:      "healthy",
		Ticks:       stats.Ticks,
		FailedTicks: stats.FailedTicks,
		TimeStamp:   time.Now().UnixMilli(),
	}
	if stats.FailureStreak >= uint64(max(a.Cfg.ControlCfg.FailureReportTicks, 1)) {
		health.Status = "actuator_failure"
	}

	if info, ok := a.server.Session(); ok {
		health.Connected = true
		health.SessionId = info.ID
	}

	snap := a.state.Snapshot()
	health.DrivePct = snap.DrivePct
	health.SteerPct = snap.SteerPct

	if a.sampler != nil {
		sample, err := a.sampler.Sample()
		if err != nil {
			a.logger.Debug("health sample incomplete", "error", err)
		}
		health.CPUTempC = sample.CPUTempC
		health.RxBytes = sample.Network.RxBytes
		health.TxBytes = sample.Network.TxBytes
		health.RxDropped = sample.Network.RxDropped
		health.TxDropped = sample.Network.TxDropped
	}
	return health
}
