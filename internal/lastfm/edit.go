package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/llehouerou/scrubber/internal/scrobble"
)

// editBaseURL is the Last.fm website root. Scrobble edits have no API
// method; they go through the library edit form the website uses.
const editBaseURL = "https://www.last.fm"

// EditClient submits scrobble edits through the Last.fm website using
// the browser session's csrf token and session cookie.
type EditClient struct {
	httpClient *http.Client
	baseURL    string
	username   string
	csrfToken  string
	sessionID  string
}

// NewEditClient creates an edit client for the given user's web session.
func NewEditClient(username, csrfToken, sessionID string) *EditClient {
	return &EditClient{
		httpClient: &http.Client{},
		baseURL:    editBaseURL,
		username:   username,
		csrfToken:  csrfToken,
		sessionID:  sessionID,
	}
}

// SubmitEdit submits one scrobble edit. The edit's Original fields must
// match the scrobble as currently recorded or Last.fm rejects it.
func (c *EditClient) SubmitEdit(ctx context.Context, edit scrobble.Edit) error {
	if c.csrfToken == "" || c.sessionID == "" {
		return ErrNotAuthenticated
	}

	form := url.Values{}
	form.Set("csrfmiddlewaretoken", c.csrfToken)
	form.Set("track_name", edit.TrackName)
	form.Set("artist_name", edit.ArtistName)
	form.Set("album_name", edit.AlbumName)
	form.Set("album_artist_name", edit.AlbumArtist)
	form.Set("timestamp", strconv.FormatInt(edit.Timestamp, 10))
	form.Set("track_name_original", edit.TrackNameOriginal)
	form.Set("artist_name_original", edit.ArtistNameOriginal)
	form.Set("album_name_original", edit.AlbumNameOriginal)
	form.Set("album_artist_name_original", edit.AlbumArtistOriginal)
	form.Set("edit_all", "0")
	form.Set("submit", "edit-scrobble")

	editURL := fmt.Sprintf("%s/user/%s/library/edit?edited-variation=library-track",
		c.baseURL, url.PathEscape(c.username))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, editURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", fmt.Sprintf("%s/user/%s", c.baseURL, url.PathEscape(c.username)))
	req.Header.Set("Cookie", fmt.Sprintf("csrftoken=%s; sessionid=%s", c.csrfToken, c.sessionID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit edit: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("submit edit: %w", ErrNotAuthenticated)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("submit edit: unexpected status %d", resp.StatusCode)
	}
	return nil
}
