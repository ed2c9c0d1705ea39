package scrubber

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/scrubber/internal/events"
	"github.com/llehouerou/scrubber/internal/provider"
	"github.com/llehouerou/scrubber/internal/scrobble"
	"github.com/llehouerou/scrubber/internal/storage"
)

// maxEditAttempts bounds how often one queued edit is retried before
// it is abandoned.
const maxEditAttempts = 10

// RunOnce executes a single cycle synchronously. The loop must not be
// running.
func (s *Scrubber) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusStopped && s.status != StatusError {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.status = StatusRunning
	s.mu.Unlock()
	defer s.setStatus(StatusStopped)

	return s.cycle(ctx)
}

// cycle runs one pass: retry queued edits, refresh the source bounded
// by the anchor, analyze new tracks oldest-first in batches, and
// advance the anchor after each committed batch. An anchor persist
// failure is fatal: continuing would re-edit committed work on the
// next run.
func (s *Scrubber) cycle(ctx context.Context) error {
	runID := uuid.NewString()
	s.publish(events.New(events.KindCycleStarted, "cycle started").WithRun(runID, ""))

	s.retryFailedEdits(ctx, runID)

	ts, err := s.store.LoadTimestamp()
	if err != nil {
		return fmt.Errorf("load anchor: %w", err)
	}
	anchor := ts.Anchor

	if err := s.src.Refresh(ctx, anchor); err != nil {
		return fmt.Errorf("refresh source: %w", err)
	}

	candidates := s.newTracks(anchor)

	// First run: seed the anchor from the newest track instead of
	// bulk-processing the whole history.
	if anchor == 0 {
		if len(candidates) > 0 {
			seed := candidates[len(candidates)-1].Timestamp
			if err := s.saveAnchor(seed); err != nil {
				return &fatalError{fmt.Errorf("seed anchor: %w", err)}
			}
			s.publish(events.New(events.KindAnchorUpdated, "anchor seeded from newest track").
				WithRun(runID, "").WithAnchor(seed))
		}
		s.publish(events.New(events.KindCycleCompleted, "cycle completed").WithRun(runID, ""))
		return nil
	}

	s.publish(events.New(events.KindTracksFound,
		fmt.Sprintf("%d new tracks", len(candidates))).WithRun(runID, ""))

	for batch := range slices.Chunk(candidates, s.cfg.BatchSize) {
		batchID := uuid.NewString()
		if err := s.resolveTracks(ctx, runID, batchID, batch); err != nil {
			return err
		}

		newest := batch[len(batch)-1].Timestamp
		if err := s.saveAnchor(newest); err != nil {
			return &fatalError{fmt.Errorf("save anchor: %w", err)}
		}
		s.publish(events.New(events.KindAnchorUpdated, "anchor advanced").
			WithRun(runID, batchID).WithAnchor(newest))
	}

	s.publish(events.New(events.KindCycleCompleted, "cycle completed").WithRun(runID, ""))
	return nil
}

// newTracks returns the source's tracks after the anchor, oldest
// first. Tracks without timestamps cannot be anchored and are skipped.
func (s *Scrubber) newTracks(anchor int64) []scrobble.Track {
	var out []scrobble.Track
	for _, t := range s.src.Tracks() {
		if t.Timestamp == 0 || t.Timestamp <= anchor {
			continue
		}
		out = append(out, t)
	}
	// Source order is newest first.
	slices.Reverse(out)
	return out
}

// ProcessArtist analyzes and resolves every track of one artist,
// ignoring the anchor entirely.
func (s *Scrubber) ProcessArtist(ctx context.Context, artist string) error {
	tracks, err := s.src.ArtistTracks(ctx, artist)
	if err != nil {
		return fmt.Errorf("fetch artist tracks: %w", err)
	}

	runID := uuid.NewString()
	s.publish(events.New(events.KindTracksFound,
		fmt.Sprintf("%d tracks for %s", len(tracks), artist)).WithRun(runID, ""))

	for batch := range slices.Chunk(tracks, s.cfg.BatchSize) {
		if err := s.resolveTracks(ctx, runID, uuid.NewString(), batch); err != nil {
			return err
		}
	}
	return nil
}

// ProcessLastN reprocesses the N most recent tracks without touching
// the anchor.
func (s *Scrubber) ProcessLastN(ctx context.Context, n int) error {
	if err := s.src.Refresh(ctx, 0); err != nil {
		return fmt.Errorf("refresh source: %w", err)
	}

	tracks := s.src.Tracks()
	if len(tracks) > n {
		tracks = tracks[:n]
	}
	tracks = slices.Clone(tracks)
	slices.Reverse(tracks)

	runID := uuid.NewString()
	for batch := range slices.Chunk(tracks, s.cfg.BatchSize) {
		if err := s.resolveTracks(ctx, runID, uuid.NewString(), batch); err != nil {
			return err
		}
	}
	return nil
}

// resolveTracks analyzes one batch and resolves each track's first
// suggestion: apply it, queue it for confirmation, or skip.
func (s *Scrubber) resolveTracks(ctx context.Context, runID, batchID string, tracks []scrobble.Track) error {
	pendingEdits, err := s.store.LoadPendingEdits()
	if err != nil {
		return fmt.Errorf("load pending edits: %w", err)
	}
	pendingRules, err := s.store.LoadPendingRules()
	if err != nil {
		return fmt.Errorf("load pending rules: %w", err)
	}
	settings, err := s.store.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	results, err := s.provider.AnalyzeTracks(ctx, tracks, provider.Options{
		PendingEdits: pendingEdits,
		PendingRules: pendingRules,
	})
	if err != nil {
		return fmt.Errorf("analyze tracks: %w", err)
	}

	for i, track := range tracks {
		s.publish(events.New(events.KindTrackProcessed, "track processed").
			WithRun(runID, batchID).WithTrack(track))

		suggestions := results[i]
		if len(suggestions) == 0 {
			continue
		}
		// Providers are merged in priority order; the first suggestion
		// wins.
		if err := s.resolveSuggestion(ctx, runID, batchID, track, suggestions[0], settings, &pendingEdits, &pendingRules); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scrubber) resolveSuggestion(
	ctx context.Context,
	runID, batchID string,
	track scrobble.Track,
	sug provider.Suggestion,
	settings storage.Settings,
	pendingEdits *[]storage.PendingEdit,
	pendingRules *[]storage.PendingRule,
) error {
	if sug.Rule != nil {
		return s.resolveRuleProposal(runID, batchID, sug, settings, pendingRules)
	}
	if sug.Edit == nil {
		return nil
	}

	needsConfirmation := sug.RequiresConfirmation ||
		settings.RequireConfirmation ||
		settings.RequireConfirmationForEdits

	switch {
	case needsConfirmation:
		pe := storage.PendingEdit{
			ID:        uuid.NewString(),
			Edit:      *sug.Edit,
			Provider:  sug.Provider,
			Reason:    sug.Reason,
			CreatedAt: time.Now().UTC(),
		}
		*pendingEdits = append(*pendingEdits, pe)
		if err := s.store.SavePendingEdits(*pendingEdits); err != nil {
			return fmt.Errorf("save pending edits: %w", err)
		}
		s.publish(events.New(events.KindPendingEditCreated, "edit queued for confirmation").
			WithRun(runID, batchID).WithTrack(track).WithEdit(*sug.Edit))

	case s.cfg.DryRun:
		s.publish(events.New(events.KindTrackSkipped, "dry run, edit not submitted").
			WithRun(runID, batchID).WithTrack(track).WithEdit(*sug.Edit))

	default:
		if err := s.submitEdit(ctx, *sug.Edit); err != nil {
			s.publish(events.New(events.KindTrackEditFailed, "edit submission failed").
				WithRun(runID, batchID).WithTrack(track).WithEdit(*sug.Edit).WithError(err))
			s.logger.Warn("edit submission failed",
				"artist", track.Artist, "track", track.Name, "err", err)
			if s.retries != nil {
				if qerr := s.retries.AddFailedEdit(*sug.Edit, err.Error()); qerr != nil {
					s.logger.Warn("failed to queue edit for retry", "err", qerr)
				}
			}
			return nil
		}
		s.publish(events.New(events.KindTrackEdited, "edit applied").
			WithRun(runID, batchID).WithTrack(track).WithEdit(*sug.Edit))
	}
	return nil
}

func (s *Scrubber) resolveRuleProposal(
	runID, batchID string,
	sug provider.Suggestion,
	settings storage.Settings,
	pendingRules *[]storage.PendingRule,
) error {
	needsConfirmation := sug.RequiresConfirmation ||
		settings.RequireConfirmation ||
		settings.RequireConfirmationForNewRules

	if needsConfirmation {
		pr := storage.PendingRule{
			ID:        uuid.NewString(),
			Rule:      *sug.Rule,
			Provider:  sug.Provider,
			Reason:    sug.Reason,
			CreatedAt: time.Now().UTC(),
		}
		*pendingRules = append(*pendingRules, pr)
		if err := s.store.SavePendingRules(*pendingRules); err != nil {
			return fmt.Errorf("save pending rules: %w", err)
		}
		s.publish(events.New(events.KindRuleProposed, "rule queued for adoption").
			WithRun(runID, batchID))
		return nil
	}

	rules, err := s.store.LoadRules()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	rules = append(rules, *sug.Rule)
	if err := s.store.SaveRules(rules); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	s.publish(events.New(events.KindRuleProposed, "rule auto-adopted").WithRun(runID, batchID))
	return nil
}

// retryFailedEdits drains the retry queue: each queued edit gets one
// more attempt, abandoned edits stay queued for inspection.
func (s *Scrubber) retryFailedEdits(ctx context.Context, runID string) {
	if s.retries == nil || s.cfg.DryRun {
		return
	}
	queued, err := s.retries.GetFailedEdits()
	if err != nil {
		s.logger.Warn("failed to load retry queue", "err", err)
		return
	}
	for _, f := range queued {
		if f.Attempts >= maxEditAttempts {
			continue
		}
		if err := s.submitEdit(ctx, f.Edit); err != nil {
			if uerr := s.retries.UpdateFailedEditAttempt(f.ID, err.Error()); uerr != nil {
				s.logger.Warn("failed to update retry attempt", "err", uerr)
			}
			continue
		}
		if derr := s.retries.DeleteFailedEdit(f.ID); derr != nil {
			s.logger.Warn("failed to clear retried edit", "err", derr)
		}
		s.publish(events.New(events.KindTrackEdited, "queued edit applied on retry").
			WithRun(runID, "").WithEdit(f.Edit))
	}
}

func (s *Scrubber) submitEdit(ctx context.Context, edit scrobble.Edit) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EditTimeout)
	defer cancel()
	return s.submitter.SubmitEdit(ctx, edit)
}

func (s *Scrubber) saveAnchor(anchor int64) error {
	return s.store.SaveTimestamp(storage.TimestampState{
		Anchor:    anchor,
		UpdatedAt: time.Now().UTC(),
	})
}
