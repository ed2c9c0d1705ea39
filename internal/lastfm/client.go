// Package lastfm wraps the Last.fm API for the correction pipeline:
// play-history pagination, artist track listing, the desktop auth flow
// and scrobble edit submission.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shkh/lastfm-go/lastfm"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// ErrNotAuthenticated is returned when an operation requires authentication.
var ErrNotAuthenticated = errors.New("not authenticated")

// validateTimeout bounds the session validation probe. A probe that
// does not answer in time counts as invalid.
const validateTimeout = 10 * time.Second

// recentTracksPageSize is the page size requested from
// user.getRecentTracks. 200 is the API maximum.
const recentTracksPageSize = 200

// Client wraps the Last.fm API.
type Client struct {
	api        *lastfm.Api
	apiKey     string
	apiSecret  string
	username   string
	sessionKey string

	// probe is swapped in tests.
	probe func() error
}

// New creates a new Last.fm client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	c := &Client{
		api:       lastfm.New(apiKey, apiSecret),
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
	c.probe = c.probeSession
	return c
}

// SetSession sets the authenticated user and session key.
func (c *Client) SetSession(username, key string) {
	c.username = username
	c.sessionKey = key
	c.api.SetSession(key)
}

// Username returns the authenticated user's name.
func (c *Client) Username() string {
	return c.username
}

// SessionKey returns the current session key.
func (c *Client) SessionKey() string {
	return c.sessionKey
}

// IsAuthenticated returns true if a session key is set.
func (c *Client) IsAuthenticated() bool {
	return c.sessionKey != ""
}

// GetToken requests an authentication token from Last.fm.
func (c *Client) GetToken() (string, error) {
	result, err := c.api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return result, nil
}

// GetAuthURL returns the URL for user authorization (desktop auth flow).
// User authorizes on Last.fm, then returns to the app and confirms.
func (c *Client) GetAuthURL(token string) string {
	return fmt.Sprintf("https://www.last.fm/api/auth/?api_key=%s&token=%s", c.apiKey, token)
}

// GetSession exchanges an authorized token for a session key.
func (c *Client) GetSession(token string) (username, sessionKey string, err error) {
	err = c.api.LoginWithToken(token)
	if err != nil {
		return "", "", fmt.Errorf("get session: %w", err)
	}

	sessionKey = c.api.GetSessionKey()
	c.sessionKey = sessionKey

	// Get the username by calling user.getInfo
	userInfo, err := c.api.User.GetInfo(nil)
	if err != nil {
		// Session is valid but couldn't get username - still return session
		// This can happen if Last.fm API is temporarily unavailable
		return "unknown", sessionKey, nil //nolint:nilerr // username is optional
	}

	c.username = userInfo.Name
	return userInfo.Name, sessionKey, nil
}

// ValidateSession probes a protected endpoint to check that the stored
// session still works. Timeout and errors both count as invalid.
func (c *Client) ValidateSession(ctx context.Context) bool {
	if !c.IsAuthenticated() {
		return false
	}

	result := make(chan error, 1)
	go func() {
		result <- c.probe()
	}()

	select {
	case err := <-result:
		return err == nil
	case <-time.After(validateTimeout):
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Client) probeSession() error {
	_, err := c.api.User.GetInfo(nil)
	return err
}

// RecentTracksPage fetches one page of the user's play history,
// newest first. Page numbering starts at 1. Now-playing entries come
// back with a zero timestamp.
func (c *Client) RecentTracksPage(ctx context.Context, page int) ([]scrobble.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.username == "" {
		return nil, ErrNotAuthenticated
	}

	result, err := c.api.User.GetRecentTracks(lastfm.P{
		"user":  c.username,
		"page":  page,
		"limit": recentTracksPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("get recent tracks page %d: %w", page, err)
	}

	tracks := make([]scrobble.Track, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		tracks = append(tracks, scrobble.Track{
			Name:      t.Name,
			Artist:    t.Artist.Name,
			Album:     t.Album.Name,
			Timestamp: parseUts(t.Date.Uts),
		})
	}
	return tracks, nil
}

// ArtistTracks fetches the user's play history for a single artist.
func (c *Client) ArtistTracks(ctx context.Context, artist string) ([]scrobble.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.username == "" {
		return nil, ErrNotAuthenticated
	}

	result, err := c.api.User.GetArtistTracks(lastfm.P{
		"user":   c.username,
		"artist": artist,
	})
	if err != nil {
		return nil, fmt.Errorf("get artist tracks for %q: %w", artist, err)
	}

	tracks := make([]scrobble.Track, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		tracks = append(tracks, scrobble.Track{
			Name:      t.Name,
			Artist:    t.Artist.Name,
			Album:     t.Album.Name,
			Timestamp: parseUts(t.Date.Uts),
		})
	}
	return tracks, nil
}

// parseUts converts a unix-seconds string to int64, zero when absent
// or malformed (now-playing entries carry no date).
func parseUts(uts string) int64 {
	if uts == "" {
		return 0
	}
	ts, err := strconv.ParseInt(uts, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}
