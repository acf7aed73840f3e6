package main

import (
	"log"
	"os"
	"strings"

	"github.com/gocrud/container/cache"
	"github.com/urfave/cli"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "dicache"
	app.Usage = "Validate, warm and inspect container definition caches"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Load settings from `FILE` (.yaml, .json or .toml)",
		},
		cli.StringFlag{
			Name:  "env-file",
			Value: ".env",
			Usage: "Optional dotenv `FILE` with " + envPrefix + " settings",
		},
		cli.StringSliceFlag{
			Name:  "definitions, d",
			Usage: "Definition `FILE` to load, may be repeated",
		},
		cli.StringFlag{
			Name:  "driver",
			Usage: "Cache driver: " + strings.Join(cache.Drivers(), ", "),
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level (trace, debug, info, warn, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "check",
			Usage:  "Load the definition files and validate the service graph",
			Action: check,
		},
		{
			Name:  "dump",
			Usage: "Print resolved parameters, services and aliases as JSON",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "from-cache",
					Usage: "Read the cached snapshot instead of the definition files",
				},
			},
			Action: dump,
		},
		{
			Name:  "warm",
			Usage: "Write a snapshot of the definition files to the cache",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "force",
					Usage: "Skip graph validation before writing",
				},
			},
			Action: warm,
		},
		{
			Name:   "flush",
			Usage:  "Remove the cached snapshot",
			Action: flush,
		},
		{
			Name:  "serve",
			Usage: "Serve the read-only container inspector over HTTP",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "port, p",
					Value: 8080,
					Usage: "Inspector `PORT`",
				},
				cli.StringFlag{
					Name:  "schedule",
					Usage: "Cron `SPEC` for re-writing the snapshot, e.g. \"@every 10m\"",
				},
			},
			Action: serve,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
