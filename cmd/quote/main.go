// Command quote looks up reference exchange rates and ticker prices from the
// command line.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"marketdata/internal/app"
	"marketdata/internal/config"
	"marketdata/internal/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range newCommands() {
		commander.Register(c, "market data")
	}

	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(int(subcommands.ExitFailure))
	}
	a, err := app.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("wiring")
		os.Exit(int(subcommands.ExitFailure))
	}
	loc, _ := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout())
	defer cancel()
	os.Exit(int(commander.Execute(ctx, &session{app: a, out: os.Stdout, errOut: os.Stderr, loc: loc})))
}
