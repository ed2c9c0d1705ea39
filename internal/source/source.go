// Package source supplies the candidate track set for a processing
// cycle. Two interchangeable strategies exist: a cached source backed
// by the persisted track cache, and a direct source that always asks
// the service and keeps only the latest batch in memory.
package source

import (
	"context"
	"fmt"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// maxFetchPages bounds how deep one refresh walks the remote history
// when no timestamp bound stops it earlier.
const maxFetchPages = 10

// HistoryClient is the part of the scrobbling service a track source
// needs: paged recent history, newest first, plus per-artist listings.
type HistoryClient interface {
	RecentTracksPage(ctx context.Context, page int) ([]scrobble.Track, error)
	ArtistTracks(ctx context.Context, artist string) ([]scrobble.Track, error)
}

// Source yields candidate tracks for processing.
type Source interface {
	// Refresh fetches forward from the remote service. Fetching stops
	// once a track at or before bound is seen; a zero bound means no
	// timestamp limit.
	Refresh(ctx context.Context, bound int64) error
	// Tracks returns the current candidate set, newest first.
	Tracks() []scrobble.Track
	// ArtistTracks returns one artist's tracks.
	ArtistTracks(ctx context.Context, artist string) ([]scrobble.Track, error)
}

// fetchRecent walks the remote history newest-first, collecting tracks
// until one at or before stopAt is reached, the service is exhausted,
// or the page cap is hit.
func fetchRecent(ctx context.Context, client HistoryClient, stopAt int64) ([]scrobble.Track, error) {
	var collected []scrobble.Track

	for page := 1; page <= maxFetchPages; page++ {
		tracks, err := client.RecentTracksPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetch recent tracks page %d: %w", page, err)
		}
		if len(tracks) == 0 {
			break
		}
		for _, t := range tracks {
			if t.Timestamp != 0 && stopAt > 0 && t.Timestamp <= stopAt {
				return collected, nil
			}
			collected = append(collected, t)
		}
	}
	return collected, nil
}
