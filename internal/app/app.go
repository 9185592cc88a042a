package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Speshl/gorrc_robot/internal/command"
	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/Speshl/gorrc_robot/internal/control"
	"github.com/Speshl/gorrc_robot/internal/drivestate"
	"github.com/Speshl/gorrc_robot/internal/hub"
	"github.com/Speshl/gorrc_robot/internal/server"
	"github.com/Speshl/gorrc_robot/internal/speaker"
	"github.com/Speshl/gorrc_robot/internal/telemetry"
	"github.com/Speshl/gorrc_robot/internal/updater"
	"github.com/Speshl/gorrc_robot/internal/vehicle"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

var ErrSignal = errors.New("received signal")

const shutdownSoundTimeout = 3 * time.Second

type App struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	Cfg    config.Config
	logger hclog.Logger

	state   *drivestate.State
	command command.Driver
	chassis vehicle.Chassis
	gimbal  vehicle.GimbalControl

	updater  *updater.Updater
	server   *server.Server
	loop     *control.Loop
	speaker  *speaker.Speaker
	sampler  *telemetry.Sampler
	streamer *telemetry.Streamer
	reporter *hub.Reporter
}

// NewApp builds every component from cfg. The command driver is initialized here so
// hardware problems stop startup before the control socket is bound.
func NewApp(cfg config.Config, logger hclog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		ctx:       ctx,
		ctxCancel: cancel,
		Cfg:       cfg,
		logger:    logger,
		state:     drivestate.New(),
		speaker:   speaker.NewSpeaker(cfg.SpeakerCfg, logger.Named("speaker")),
	}

	err := a.buildVehicle()
	if err != nil {
		cancel()
		return nil, err
	}

	a.updater, err = updater.New(cfg.MappingCfg, a.state, logger.Named("updater"),
		updater.WithAction("horn", func(*drivestate.State) {
			a.speaker.Queue(speaker.SoundHorn)
		}),
	)
	if err != nil {
		a.shutdownDriver()
		cancel()
		return nil, fmt.Errorf("invalid controller mapping: %w", err)
	}

	a.loop = control.NewLoop(cfg.ControlCfg, a.state, a.chassis, a.gimbal, logger.Named("control"))

	if cfg.TelemetryCfg.Enabled {
		a.sampler, err = telemetry.NewSampler(cfg.TelemetryCfg, a.state)
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		}
	}

	if cfg.HubCfg.Enabled {
		client, err := hub.NewClient(cfg.HubCfg)
		if err != nil {
			a.shutdownDriver()
			cancel()
			return nil, err
		}
		a.reporter = hub.NewReporter(cfg.HubCfg, client, hub.HealthFunc(a.health), logger.Named("hub"))
	}

	a.server = server.NewServer(cfg.ServerCfg, a.updater, a.state, logger.Named("server"),
		server.OnSessionStart(a.onSessionStart),
		server.OnSessionEnd(a.onSessionEnd),
	)

	if a.sampler != nil {
		a.streamer = telemetry.NewStreamer(cfg.TelemetryCfg, a.sampler, a.server, logger.Named("telemetry"))
	}
	return a, nil
}

// RegisterHandlers connects to the hub. When that fails hub reporting is turned off
// and the robot keeps running without it.
func (a *App) RegisterHandlers() error {
	if a.reporter == nil {
		return nil
	}
	err := a.reporter.RegisterHandlers()
	if err != nil {
		a.reporter = nil
		return err
	}
	return nil
}

func (a *App) Start() error {
	group, groupCtx := errgroup.WithContext(a.ctx)
	a.logger.Info("starting...")

	defer func() {
		a.logger.Info("stopping...")
		soundCtx, cancel := context.WithTimeout(context.Background(), shutdownSoundTimeout)
		defer cancel()
		err := a.speaker.Play(soundCtx, speaker.SoundShutdown)
		if err != nil {
			a.logger.Warn("failed to play shutdown sound", "error", err)
		}
		a.shutdownDriver()
	}()

	err := a.server.Listen()
	if err != nil {
		return err
	}

	group.Go(func() error {
		return a.speaker.Start(groupCtx)
	})

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			a.logger.Info("received signal", "signal", sig.String())
			a.ctxCancel()
			return fmt.Errorf("%w: %s", ErrSignal, sig)
		case <-groupCtx.Done():
			a.logger.Debug("closing signal goroutine")
			return groupCtx.Err()
		}
	})

	group.Go(func() error {
		return a.loop.Start(groupCtx)
	})

	group.Go(func() error {
		return a.server.Serve(groupCtx)
	})

	if a.streamer != nil {
		group.Go(func() error {
			return a.streamer.Start(groupCtx)
		})
	}

	if a.reporter != nil {
		group.Go(func() error {
			return a.reporter.Start(groupCtx)
		})
	}

	a.speaker.Queue(speaker.SoundStartup)

	err = group.Wait()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrSignal) {
			a.logger.Info("shutting down")
			return nil
		}
		return fmt.Errorf("server stopping due to error - %w", err)
	}

	a.logger.Info("shutting down")
	return nil
}

func (a *App) Stop() {
	a.ctxCancel()
}

func (a *App) shutdownDriver() {
	if a.command == nil {
		return
	}
	err := a.command.Stop()
	if err != nil {
		a.logger.Error("failed stopping command driver", "error", err)
	}
}

func (a *App) onSessionStart(info server.SessionInfo) {
	a.speaker.Queue(speaker.SoundClientConnected)
	if a.reporter != nil {
		a.reporter.SessionStarted(info)
	}
}

func (a *App) onSessionEnd(info server.SessionInfo, reason server.EndReason) {
	a.speaker.Queue(speaker.SoundClientDisconnected)
	if a.reporter != nil {
		a.reporter.SessionEnded(info, reason)
	}
}
