// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Sync server base URL (defaults to sync.server_url)",
	}
}

func providerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "provider",
		Aliases: []string{"p"},
		Usage:   "Player to read: spotify, mpd or none (default: spotify when a refresh token is set)",
	}
}

func deviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "device",
			Usage: "Device id (generated when empty)",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Device display name",
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

// serveCommand runs the sync server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the sync server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to bind (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides server.port)",
			},
			providerFlag(),
		},
		Action: r.Serve,
	}
}

// setupCommand prepares local configuration and storage
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Configure and initialize nowplaying",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example config file",
				Action: r.SetupConfig,
			},
			{
				Name:   "migrations",
				Usage:  "List migrations and whether they are applied",
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// sessionCommand handles sync session operations
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Create, join and inspect sync sessions",
		Flags:   []cli.Flag{serverFlag()},
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create a session and print its join code",
				Flags:  outputFlags(),
				Action: r.SessionCreate,
			},
			{
				Name:  "join",
				Usage: "Add this device to a session",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key", UsageText: "session id or code"},
				},
				Flags: append(append(deviceFlags(),
					&cli.Int64Flag{
						Name:  "progress",
						Usage: "Initial progress in milliseconds",
					},
				), outputFlags()...),
				Action: r.SessionJoin,
			},
			{
				Name:  "get",
				Usage: "Show a session and its devices",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key", UsageText: "session id or code"},
				},
				Flags:  outputFlags(),
				Action: r.SessionGet,
			},
			{
				Name:  "leave",
				Usage: "Remove a device from a session",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key", UsageText: "session id or code"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "device",
						Usage:    "Device id to remove",
						Required: true,
					},
				},
				Action: r.SessionLeave,
			},
			{
				Name:  "host",
				Usage: "Join as host and push the local player's position",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key", UsageText: "session id or code (a new session is created when empty)"},
				},
				Flags:  append(deviceFlags(), providerFlag()),
				Action: r.SessionHost,
			},
			{
				Name:  "follow",
				Usage: "Join as follower and print the shared position",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key", UsageText: "session id or code"},
				},
				Flags:  append(deviceFlags(), providerFlag()),
				Action: r.SessionFollow,
			},
		},
	}
}

// watchCommand launches the TUI
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow a session in the terminal UI",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "key", UsageText: "session id or code"},
		},
		Flags: append(deviceFlags(),
			serverFlag(),
			providerFlag(),
			&cli.StringFlag{
				Name:  "role",
				Usage: "host or follower",
				Value: "follower",
			},
			&cli.BoolFlag{
				Name:  "no-lyrics",
				Usage: "Do not fetch lyrics",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the TUI owns the terminal",
				Value: "./tmp/nowplaying-tui.log",
			},
		),
		Action: r.Watch,
	}
}

// nowCommand prints the local player's state
func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "now",
		Usage:  "Show what the local player is playing",
		Flags:  append(outputFlags(), providerFlag()),
		Action: r.NowPlaying,
	}
}

// lyricsCommand looks up lyrics for a track
func lyricsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lyrics",
		Usage: "Print timed lyrics for a track or the current one",
		Flags: append(outputFlags(),
			providerFlag(),
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Track title (read from the player when empty)",
			},
			&cli.StringFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Track artist",
			},
			&cli.Int64Flag{
				Name:  "duration",
				Usage: "Track duration in milliseconds, used to time plain lyrics",
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Wrap lines at this width (0 disables wrapping)",
				Value: 80,
			},
		),
		Action: r.Lyrics,
	}
}

// historyCommand reports and records listening history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show listening history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, markdown or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of top songs",
				Value: 10,
			},
			&cli.IntFlag{
				Name:  "recent",
				Usage: "Number of recent entries",
				Value: 10,
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:   "record",
				Usage:  "Sample the local player once and record it",
				Flags:  []cli.Flag{providerFlag()},
				Action: r.HistoryRecord,
			},
		},
	}
}

// authCommand links streaming accounts
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with music services",
		Commands: []*cli.Command{
			{
				Name:  "spotify",
				Usage: "Authenticate with Spotify using OAuth2 and print a refresh token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: defaultAuthTimeout,
					},
				},
				Action: r.SpotifyAuth,
			},
		},
	}
}
