// Package cache persists fetched track history so repeat runs do not
// refetch the same pages from the scrobbling service. The cache holds
// recent tracks newest-first plus per-artist track lists, and is owned
// by exactly one track source at a time.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// cacheVersion tags the persisted format. A file with a different
// version is discarded and rebuilt.
const cacheVersion = 1

// Metadata carries the version and freshness stamp.
type Metadata struct {
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// Cache holds recent history and artist track lists. Not safe for
// concurrent use; the owning track source serializes access.
type Cache struct {
	Recent  []scrobble.Track            `json:"recent_tracks"`
	Artists map[string][]scrobble.Track `json:"artist_tracks"`
	Meta    Metadata                    `json:"metadata"`
}

// MergeStats summarizes one merge operation.
type MergeStats struct {
	Added      int
	Duplicates int
	Skipped    int // entries without timestamps, never cached
	Processed  int
}

// Stats summarizes cache contents.
type Stats struct {
	RecentTracks int
	Artists      int
	ArtistTracks int
	LastUpdated  time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		Artists: make(map[string][]scrobble.Track),
		Meta:    Metadata{Version: cacheVersion},
	}
}

// DefaultPath returns the cache file location under the XDG cache dir.
func DefaultPath() (string, error) {
	return xdg.CacheFile("scrubber/track_cache.json")
}

// Load reads a cache from path. A missing, unreadable or
// version-mismatched file yields a fresh empty cache.
func Load(path string, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New()
	}
	if err != nil {
		logger.Warn("unreadable track cache, starting empty", "path", path, "err", err)
		return New()
	}

	var c Cache
	if err := json.Unmarshal(raw, &c); err != nil {
		logger.Warn("corrupt track cache, starting empty", "path", path, "err", err)
		return New()
	}
	if c.Meta.Version != cacheVersion {
		logger.Warn("track cache version mismatch, starting empty",
			"path", path, "version", c.Meta.Version, "expected", cacheVersion)
		return New()
	}
	if c.Artists == nil {
		c.Artists = make(map[string][]scrobble.Track)
	}
	return &c
}

// Save writes the cache to path, creating parent directories.
func (c *Cache) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal track cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write track cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace track cache: %w", err)
	}
	return nil
}

// MergeRecent merges fetched tracks into the recent list, newest
// first, deduplicated by (artist, name, timestamp). Entries without a
// timestamp are not cached: they cannot be identified across fetches.
func (c *Cache) MergeRecent(tracks []scrobble.Track) MergeStats {
	stats := MergeStats{Processed: len(tracks)}

	merged := make([]scrobble.Track, 0, len(c.Recent)+len(tracks))
	for _, t := range tracks {
		if t.Timestamp == 0 {
			stats.Skipped++
			continue
		}
		merged = append(merged, t)
	}
	merged = append(merged, c.Recent...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})

	seen := make(map[scrobble.Key]bool, len(merged))
	deduped := merged[:0]
	for _, t := range merged {
		key := t.Key()
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true
		deduped = append(deduped, t)
	}

	stats.Added = len(deduped) - len(c.Recent)
	c.Recent = deduped
	c.touch()
	return stats
}

// RecentTracks returns the cached recent history, newest first.
func (c *Cache) RecentTracks() []scrobble.Track {
	return c.Recent
}

// NewestTimestamp returns the timestamp of the newest cached track, or
// zero when the cache is empty.
func (c *Cache) NewestTimestamp() int64 {
	if len(c.Recent) == 0 {
		return 0
	}
	return c.Recent[0].Timestamp
}

// ArtistTracks returns the cached track list for an artist.
func (c *Cache) ArtistTracks(artist string) ([]scrobble.Track, bool) {
	tracks, ok := c.Artists[artist]
	return tracks, ok
}

// SetArtistTracks replaces the cached track list for an artist.
func (c *Cache) SetArtistTracks(artist string, tracks []scrobble.Track) {
	c.Artists[artist] = tracks
	c.touch()
}

// Clear empties the whole cache.
func (c *Cache) Clear() {
	c.Recent = nil
	c.Artists = make(map[string][]scrobble.Track)
	c.touch()
}

// ClearArtist removes one artist's cached tracks.
func (c *Cache) ClearArtist(artist string) {
	delete(c.Artists, artist)
	c.touch()
}

// Stats summarizes the cache contents.
func (c *Cache) Stats() Stats {
	s := Stats{
		RecentTracks: len(c.Recent),
		Artists:      len(c.Artists),
		LastUpdated:  c.Meta.LastUpdated,
	}
	for _, tracks := range c.Artists {
		s.ArtistTracks += len(tracks)
	}
	return s
}

func (c *Cache) touch() {
	c.Meta.Version = cacheVersion
	c.Meta.LastUpdated = time.Now().UTC()
}
