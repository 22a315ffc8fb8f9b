// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	}
}

// initCommand writes the example configuration and creates the run ledger.
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Write an example config file and initialize the run ledger",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Init,
	}
}

// ingestCommand pulls genre popularity from Spotify.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Fetch genre popularity per market from Spotify and write the data file",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.BoolFlag{
				Name:  "allow-partial",
				Usage: "Write the data file even when some genres ran out of retries",
			},
		},
		Action: r.Ingest,
	}
}

// prepareCommand renders the map artifacts.
func prepareCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "prepare",
		Usage:  "Join the data file with country boundaries and render map artifacts",
		Flags:  []cli.Flag{configFlag(), verboseFlag()},
		Action: r.Prepare,
	}
}

// serveCommand starts the report server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the interactive report",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand prints the run ledger.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent ingest and prepare runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "stage",
				Usage: "Only show runs of this stage (ingest or prepare)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
