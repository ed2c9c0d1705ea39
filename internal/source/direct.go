package source

import (
	"context"
	"fmt"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// DirectSource always queries the remote service and keeps only the
// most recent batch in memory. Used when persistence is unwanted.
type DirectSource struct {
	client HistoryClient
	batch  []scrobble.Track
}

var _ Source = (*DirectSource)(nil)

// NewDirectSource creates a cache-less track source.
func NewDirectSource(client HistoryClient) *DirectSource {
	return &DirectSource{client: client}
}

// Refresh replaces the in-memory batch with a fresh fetch down to
// bound.
func (s *DirectSource) Refresh(ctx context.Context, bound int64) error {
	tracks, err := fetchRecent(ctx, s.client, bound)
	if err != nil {
		return err
	}
	s.batch = tracks
	return nil
}

// Tracks returns the last fetched batch, newest first.
func (s *DirectSource) Tracks() []scrobble.Track {
	return s.batch
}

// ArtistTracks fetches the artist's tracks live.
func (s *DirectSource) ArtistTracks(ctx context.Context, artist string) ([]scrobble.Track, error) {
	tracks, err := s.client.ArtistTracks(ctx, artist)
	if err != nil {
		return nil, fmt.Errorf("fetch artist tracks for %q: %w", artist, err)
	}
	return tracks, nil
}
