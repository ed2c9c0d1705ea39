// Command definitions for the scrubber CLI.
package main

import "github.com/urfave/cli/v3"

// runCommand starts the processing loop.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the processing loop against new play history",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would change without submitting edits",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single cycle and exit",
			},
		},
		Action: r.Run,
	}
}

// authCommand handles the desktop authentication flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Last.fm via the browser",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the stored session and whether it is still valid",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Discard the stored session",
				Action: r.AuthLogout,
			},
		},
		Action: r.Auth,
	}
}

// artistCommand processes one artist's full track list.
func artistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artist",
		Usage: "Process every track of one artist, ignoring the anchor",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "name",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would change without submitting edits",
			},
		},
		Action: r.Artist,
	}
}

// cacheCommand handles track cache maintenance.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the track cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache contents",
				Action: r.CacheStats,
			},
			{
				Name:  "clear",
				Usage: "Empty the track cache",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Clear only this artist's cached tracks",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// pendingCommand lists queued suggestions awaiting confirmation.
func pendingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "Manage suggestions awaiting confirmation",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List pending edits and proposed rules",
				Action: r.PendingList,
			},
		},
	}
}

// auditCommand reads the persisted event log.
func auditCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Show recent events from the audit log",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of events to show",
				Value: 50,
			},
		},
		Action: r.Audit,
	}
}
