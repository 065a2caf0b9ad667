package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/setanarut/pfpbuilder/logger"
)

func main() {
	app := cli.NewApp()
	app.HideHelpCommand = true
	app.Name = "pfpbuilder"
	app.Usage = "Generate unique layered profile-picture collections"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Value:   "pfpbuilder.yaml",
			Usage:   "config file path (yaml, json or toml)",
			Aliases: []string{"c"},
		},
		&cli.StringFlag{
			Name:  "env",
			Value: "development",
			Usage: "development logs to the console, anything else as JSON",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "trace, debug, info, warn or error",
		},
	}

	app.Before = func(c *cli.Context) error {
		level, err := zerolog.ParseLevel(c.String("log-level"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("bad log level: %v", err), 2)
		}
		logger.Init(c.String("env"), level)
		return nil
	}

	app.Commands = []*cli.Command{
		generateCommand,
		rarityCommand,
		spaceCommand,
		silhouetteCommand,
		paletteCommand,
	}

	if err := app.Run(os.Args); err != nil {
		switch value := err.(type) {
		case cli.ExitCoder:
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(value.ExitCode())
		default:
			fmt.Fprintln(os.Stderr, value.Error())
			os.Exit(1)
		}
	}
}
