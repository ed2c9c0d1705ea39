package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/llehouerou/scrubber/internal/cache"
	"github.com/llehouerou/scrubber/internal/errmsg"
	"github.com/llehouerou/scrubber/internal/state"
)

// CacheStats prints the track cache contents.
func (r *Runner) CacheStats(_ context.Context, _ *cli.Command) error {
	path, err := cache.DefaultPath()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpCacheLoad, err))
	}

	stats := cache.Load(path, r.logger).Stats()
	r.writePlainln("cache: %s", path)
	r.writePlainln("  recent tracks: %d", stats.RecentTracks)
	r.writePlainln("  artists:       %d (%d tracks)", stats.Artists, stats.ArtistTracks)
	if !stats.LastUpdated.IsZero() {
		r.writePlainln("  last updated:  %s", stats.LastUpdated.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// CacheClear empties the track cache, or one artist's entry with
// --artist. The next run refetches from the service.
func (r *Runner) CacheClear(_ context.Context, cmd *cli.Command) error {
	path, err := cache.DefaultPath()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpCacheClear, err))
	}

	c := cache.Load(path, r.logger)
	if artist := cmd.String("artist"); artist != "" {
		c.ClearArtist(artist)
		if err := c.Save(path); err != nil {
			return fmt.Errorf("%s", errmsg.Format(errmsg.OpCacheClear, err))
		}
		r.writePlainln("cleared cached tracks for %s", artist)
		return nil
	}

	c.Clear()
	if err := c.Save(path); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpCacheClear, err))
	}
	r.writePlainln("track cache cleared")
	return nil
}

// PendingList prints queued edits and proposed rules awaiting
// confirmation.
func (r *Runner) PendingList(_ context.Context, _ *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	edits, err := store.LoadPendingEdits()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpPendingLoad, err))
	}
	rules, err := store.LoadPendingRules()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpPendingLoad, err))
	}

	if len(edits) == 0 && len(rules) == 0 {
		r.writePlainln("nothing pending")
		return nil
	}

	if len(edits) > 0 {
		r.writePlainln("pending edits (%d):", len(edits))
		for _, pe := range edits {
			r.writePlainln("  %s", pe.ID)
			r.writePlainln("    %s - %s", pe.Edit.ArtistNameOriginal, pe.Edit.TrackNameOriginal)
			r.writePlainln("    -> %s - %s", pe.Edit.ArtistName, pe.Edit.TrackName)
			if pe.Reason != "" {
				r.writePlainln("    reason: %s (%s)", pe.Reason, pe.Provider)
			}
		}
	}

	if len(rules) > 0 {
		r.writePlainln("proposed rules (%d):", len(rules))
		for _, pr := range rules {
			r.writePlainln("  %s: %s", pr.ID, pr.Reason)
		}
	}
	return nil
}

// Audit prints the most recent entries of the persisted event log,
// newest first.
func (r *Runner) Audit(_ context.Context, cmd *cli.Command) error {
	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}
	defer stateMgr.Close()

	entries, err := stateMgr.RecentEvents(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpAuditRead, err))
	}
	if len(entries) == 0 {
		r.writePlainln("audit log is empty")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-20s %s",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Message)
		if e.Track != nil {
			line += fmt.Sprintf(" [%s - %s]", e.Track.Artist, e.Track.Name)
		}
		if e.Error != "" {
			line += fmt.Sprintf(" err=%s", e.Error)
		}
		r.writePlainln("%s", line)
	}
	return nil
}
