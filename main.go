package main

import (
	"os"

	"github.com/Speshl/gorrc_robot/internal/app"
	"github.com/Speshl/gorrc_robot/internal/config"
	"github.com/hashicorp/go-hclog"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "gorrc_robot",
		Level: hclog.LevelFromString(config.GetStringEnv("LOGLEVEL", config.DefaultLogLevel)),
	})
	hclog.SetDefault(logger)

	cfg, err := config.GetConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	robot, err := app.NewApp(cfg, logger)
	if err != nil {
		logger.Error("failed creating robot", "error", err)
		os.Exit(1)
	}

	err = robot.RegisterHandlers()
	if err != nil {
		logger.Warn("hub unavailable, continuing without it", "error", err)
	}

	err = robot.Start()
	if err != nil {
		logger.Error("robot shutdown with error", "error", err)
		os.Exit(1)
	}
	logger.Info("robot shutdown successfully")
}
