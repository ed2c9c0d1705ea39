// Package provider turns tracks into proposed scrubbing actions. A
// provider analyzes a batch of tracks and returns suggestions keyed by
// track index, so callers can correlate results positionally even when
// the same track repeats in the batch.
package provider

import (
	"context"

	"github.com/llehouerou/scrubber/internal/musicbrainz"
	"github.com/llehouerou/scrubber/internal/rewrite"
	"github.com/llehouerou/scrubber/internal/scrobble"
	"github.com/llehouerou/scrubber/internal/storage"
)

// Suggestion is a proposed action for one track: either an edit or a
// new rewrite rule offered for adoption.
type Suggestion struct {
	// Edit is set for edit suggestions.
	Edit *scrobble.Edit
	// Rule is set for proposed-rule suggestions.
	Rule *rewrite.Rule

	Provider string
	Reason   string
	// RequiresConfirmation forces the suggestion into the pending
	// queue even when auto-apply is enabled.
	RequiresConfirmation bool
}

// Options carries analysis context so providers can avoid duplicating
// work already queued.
type Options struct {
	PendingEdits []storage.PendingEdit
	PendingRules []storage.PendingRule
}

// Provider is the common analysis capability. The returned map holds
// an ordered suggestion list per track index; indexes without
// suggestions are absent.
type Provider interface {
	Name() string
	AnalyzeTracks(ctx context.Context, tracks []scrobble.Track, opts Options) (map[int][]Suggestion, error)
}

// MetadataLookup is the MusicBrainz capability providers need. Defined
// here so tests can substitute a fake.
type MetadataLookup interface {
	SearchRecordings(ctx context.Context, artist, track string) ([]musicbrainz.Recording, error)
	ConfirmRelease(ctx context.Context, artist, track, album string) (bool, error)
}

// pendingEditExists reports whether an equivalent edit is already
// queued for confirmation.
func pendingEditExists(opts Options, edit scrobble.Edit) bool {
	for _, p := range opts.PendingEdits {
		if p.Edit == edit {
			return true
		}
	}
	return false
}
