package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"headlessrun/internal/command"
	"headlessrun/internal/config"
	"headlessrun/internal/logging"
)

var version = "dev"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig:   func() config.Config { return *config.GetConfig() },
		RunCommand:   runCommand,
		ShowHistory:  showHistory,
		ShowPatterns: showPatterns,
		RunMigrateUp: runMigrateUp,
		EnvKeygen:    envKeygen,
		EnvEncrypt:   envEncrypt,
		EnvDecrypt:   envDecrypt,
	})
	app.Version = version

	// cli.Exit errors terminate inside RunContext with their own code;
	// anything surfacing here is a plain failure.
	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "headlessrun"}).Error("headlessrun failed", "err", err)
		os.Exit(1)
	}
}
