package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/llehouerou/scrubber/internal/errmsg"
	"github.com/llehouerou/scrubber/internal/scrubber"
)

// Run starts the processing loop: one cycle with --once, otherwise a
// foreground daemon stopped by SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	rt, err := r.buildRuntime(ctx, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer rt.close()

	if cmd.Bool("once") {
		r.writePlainln("running a single cycle")
		if err := rt.scrub.RunOnce(ctx); err != nil {
			return fmt.Errorf("%s", errmsg.Format(errmsg.OpCycleRun, err))
		}
		r.writePlainln("cycle completed")
		return nil
	}

	if err := rt.scrub.Start(); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpScrubberStart, err))
	}
	r.logger.Info("scrubber running", "interval", r.cfg.GetScrubberConfig().IntervalSeconds)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	r.logger.Info("shutting down")
	rt.scrub.Stop()

	if rt.scrub.Status() == scrubber.StatusError {
		return fmt.Errorf("scrubber halted on an unrecoverable error")
	}
	return nil
}

// Artist processes one artist's complete track list, bypassing the
// anchor.
func (r *Runner) Artist(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("artist name is required")
	}

	rt, err := r.buildRuntime(ctx, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer rt.close()

	r.writePlainln("processing tracks for %s", name)
	if err := rt.scrub.ProcessArtist(ctx, name); err != nil {
		return fmt.Errorf("%s", errmsg.FormatWith(errmsg.OpArtistFetch, name, err))
	}
	r.writePlainln("done")
	return nil
}
