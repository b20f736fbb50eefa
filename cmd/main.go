package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/cli"
	"github.com/Krchnk/valutatrade-wallet/internal/config"
	"github.com/Krchnk/valutatrade-wallet/internal/logging"
)

func main() {
	configPath := flag.String("c", "config.env", "path to config file")
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.New("error").WithError(err).Fatal("failed to load config")
	}
	logger := logging.New(cfg.LogLevel)
	logger.WithFields(logrus.Fields{
		"storage":  cfg.Storage,
		"data_dir": cfg.DataDir,
	}).Debug("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialise wallet")
	}
	cli.Register(commander, app)

	status := commander.Execute(ctx)
	if err := app.Close(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
	stop()
	os.Exit(int(status))
}
