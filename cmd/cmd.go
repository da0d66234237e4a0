// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Create a config.toml from the embedded template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// serveCommand starts the HTTP API with embedded queue workers.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the import API server and background workers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// connectCommand stores provider credentials for the local user.
func connectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect streaming providers",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize Spotify via OAuth2 in the browser",
				Action: r.ConnectSpotify,
			},
			{
				Name:   "tidal",
				Usage:  "Authorize TIDAL via OAuth2 in the browser",
				Action: r.ConnectTidal,
			},
			{
				Name:  "qobuz",
				Usage: "Log in to Qobuz with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Qobuz account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "Qobuz account password",
						Required: true,
					},
				},
				Action: r.ConnectQobuz,
			},
			{
				Name:    "ytmusic",
				Aliases: []string{"ytm", "yt"},
				Usage:   "Configure YouTube Music authentication from browser headers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.ConnectYTMusic,
			},
			{
				Name:   "status",
				Usage:  "Show which providers have stored credentials",
				Action: r.ConnectStatus,
			},
		},
	}
}

// importsCommand manages import jobs from the terminal.
func importsCommand(r *Runner) *cli.Command {
	targetFlag := &cli.StringFlag{
		Name:     "target",
		Aliases:  []string{"t"},
		Usage:    "Target provider (ytmusic, tidal, qobuz)",
		Required: true,
	}

	return &cli.Command{
		Name:  "imports",
		Usage: "Create and inspect import jobs",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an import job from a Spotify playlist URL and run the match stage",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Playlist URL or comma-joined playlist IDs",
						Required: true,
					},
					targetFlag,
					&cli.BoolFlag{
						Name:  "no-run",
						Usage: "Only queue the job; don't run the match stage now",
					},
				},
				Action: r.ImportsCreate,
			},
			{
				Name:   "list",
				Usage:  "List import jobs, newest first",
				Action: r.ImportsList,
			},
			{
				Name:  "show",
				Usage: "Show one job with per-status item counts",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ImportsShow,
			},
			{
				Name:  "finalize",
				Usage: "Write a reviewed job's matched tracks to the target playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ImportsFinalize,
			},
			{
				Name:  "report",
				Usage: "Print the completion report for a finished job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the report as JSON",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Write missed tracks to a CSV file",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "CSV output path (default: {job_id}_missed.csv)",
					},
				},
				Action: r.ImportsReport,
			},
		},
	}
}

// reviewCommand opens the interactive review TUI for a job.
func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review uncertain matches in an interactive TUI",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Action: r.Review,
	}
}

// transferCommand runs the synchronous migration path that skips review.
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer playlists between services",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a synchronous Spotify → target migration without review",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Source playlist URL or ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Aliases:  []string{"t"},
						Usage:    "Target provider (ytmusic, tidal, qobuz)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Target playlist title (default: source playlist name)",
					},
					&cli.StringFlag{
						Name:  "privacy",
						Usage: "Playlist visibility (PRIVATE, PUBLIC, UNLISTED)",
						Value: "PRIVATE",
					},
				},
				Action: r.TransferRun,
			},
		},
	}
}
