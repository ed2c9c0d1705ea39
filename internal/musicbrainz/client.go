package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	baseURL      = "https://musicbrainz.org/ws/2"
	userAgent    = "Scrubber/0.1 (https://github.com/llehouerou/scrubber)"
	rateLimitDur = time.Second // MusicBrainz requires 1 request per second

	// Retry configuration
	maxRetries   = 3
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second
)

// Client provides access to the MusicBrainz API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new MusicBrainz API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(rateLimitDur), 1),
	}
}

// SearchRecordings searches for recordings matching the given artist
// and track title. Each result carries the releases the recording
// appears on, with status and release group type information.
func (c *Client) SearchRecordings(ctx context.Context, artist, track string) ([]Recording, error) {
	query := fmt.Sprintf(`recording:%s AND artist:%s`, luceneQuote(track), luceneQuote(artist))
	return c.searchRecordings(ctx, query)
}

// SearchRecordingsOnRelease narrows the search to recordings appearing
// on a specific release title. Used to confirm that a proposed
// (artist, track, album) combination names a real released entity.
func (c *Client) SearchRecordingsOnRelease(ctx context.Context, artist, track, album string) ([]Recording, error) {
	query := fmt.Sprintf(`recording:%s AND artist:%s AND release:%s`,
		luceneQuote(track), luceneQuote(artist), luceneQuote(album))
	return c.searchRecordings(ctx, query)
}

// ConfirmRelease reports whether the (artist, track, album)
// combination exists in MusicBrainz: some matching recording must
// appear on a release with the given title.
func (c *Client) ConfirmRelease(ctx context.Context, artist, track, album string) (bool, error) {
	recordings, err := c.SearchRecordingsOnRelease(ctx, artist, track, album)
	if err != nil {
		return false, err
	}
	for _, rec := range recordings {
		for _, rel := range rec.Releases {
			if strings.EqualFold(rel.Title, album) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (c *Client) searchRecordings(ctx context.Context, query string) ([]Recording, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", "50")

	reqURL := fmt.Sprintf("%s/recording?%s", baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API status %d: %s", resp.StatusCode, string(body))
	}

	var result recordingSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return convertRecordings(result.Recordings), nil
}

// doRequestWithRetry executes an HTTP request with exponential backoff retry.
// Retries on 5xx errors and network errors.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
			delay = min(delay*2, maxDelay)
			// Re-apply rate limit after retry delay
			if err := c.limiter.Wait(req.Context()); err != nil {
				return nil, err
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Success or client error (4xx) - don't retry
		if resp.StatusCode < 500 {
			return resp, nil
		}

		// Server error (5xx) - retry
		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries+1, lastErr)
}

// convertRecordings converts raw API results to Recording structs.
func convertRecordings(results []recordingResult) []Recording {
	recordings := make([]Recording, 0, len(results))

	for i := range results {
		r := &results[i]
		rec := Recording{
			ID:     r.ID,
			Title:  r.Title,
			Artist: extractArtist(r.ArtistCredit),
			Score:  r.Score,
		}
		for j := range r.Releases {
			rec.Releases = append(rec.Releases, convertRelease(&r.Releases[j]))
		}
		recordings = append(recordings, rec)
	}

	return recordings
}

func convertRelease(r *releaseResult) Release {
	release := Release{
		ID:      r.ID,
		Title:   r.Title,
		Artist:  extractArtist(r.ArtistCredit),
		Date:    r.Date,
		Country: r.Country,
		Status:  r.Status,
	}
	if r.ReleaseGroup != nil {
		release.PrimaryType = r.ReleaseGroup.PrimaryType
		release.SecondaryTypes = r.ReleaseGroup.SecondaryTypes
	}
	return release
}

// luceneQuote quotes a value for a MusicBrainz Lucene field query.
func luceneQuote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
