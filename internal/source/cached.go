package source

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/cache"
	"github.com/llehouerou/scrubber/internal/scrobble"
)

// CachedSource extends a persisted track cache and only calls the
// remote service for history it has not seen yet.
type CachedSource struct {
	client HistoryClient
	cache  *cache.Cache
	path   string
	logger *log.Logger
}

var _ Source = (*CachedSource)(nil)

// NewCachedSource wraps a cache loaded from (and saved back to) path.
func NewCachedSource(client HistoryClient, c *cache.Cache, path string, logger *log.Logger) *CachedSource {
	if logger == nil {
		logger = log.Default()
	}
	return &CachedSource{client: client, cache: c, path: path, logger: logger}
}

// Cache exposes the underlying cache for stats and maintenance
// commands.
func (s *CachedSource) Cache() *cache.Cache {
	return s.cache
}

// Refresh fetches history newer than what the cache already holds.
// Fetching stops at the cache tip or at bound, whichever is more
// recent, so a cycle never refetches processed history.
func (s *CachedSource) Refresh(ctx context.Context, bound int64) error {
	stopAt := max(s.cache.NewestTimestamp(), bound)

	tracks, err := fetchRecent(ctx, s.client, stopAt)
	if err != nil {
		return err
	}

	stats := s.cache.MergeRecent(tracks)
	s.logger.Debug("track cache refreshed",
		"fetched", stats.Processed, "added", stats.Added, "duplicates", stats.Duplicates)

	// A failed save costs a refetch next run, not correctness.
	if err := s.cache.Save(s.path); err != nil {
		s.logger.Warn("failed to save track cache", "err", err)
	}
	return nil
}

// Tracks returns the cached recent history, newest first.
func (s *CachedSource) Tracks() []scrobble.Track {
	return s.cache.RecentTracks()
}

// ArtistTracks returns the artist's tracks from the cache, fetching
// and caching them on a miss.
func (s *CachedSource) ArtistTracks(ctx context.Context, artist string) ([]scrobble.Track, error) {
	if tracks, ok := s.cache.ArtistTracks(artist); ok {
		return tracks, nil
	}

	tracks, err := s.client.ArtistTracks(ctx, artist)
	if err != nil {
		return nil, fmt.Errorf("fetch artist tracks for %q: %w", artist, err)
	}

	s.cache.SetArtistTracks(artist, tracks)
	if err := s.cache.Save(s.path); err != nil {
		s.logger.Warn("failed to save track cache", "err", err)
	}
	return tracks, nil
}
