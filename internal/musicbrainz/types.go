// Package musicbrainz provides a rate-limited client for the
// MusicBrainz API plus the release ranking used to pick a canonical
// release for a recording.
package musicbrainz

import "strings"

// Release represents a MusicBrainz release (album) as seen from a
// recording search result.
type Release struct {
	ID             string
	Title          string
	Artist         string // Extracted from artist-credit
	Date           string // YYYY, YYYY-MM or YYYY-MM-DD
	Country        string
	Status         string // Official, Promotion, Bootleg, Pseudo-Release
	PrimaryType    string // Album, EP, Single, Broadcast
	SecondaryTypes []string
}

// Recording represents a MusicBrainz recording and the releases it
// appears on.
type Recording struct {
	ID       string
	Title    string
	Artist   string
	Score    int
	Releases []Release
}

// recordingSearchResponse is the raw response from recording search.
type recordingSearchResponse struct {
	Recordings []recordingResult `json:"recordings"`
}

// recordingResult is a single recording from search results.
type recordingResult struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Score        int             `json:"score"`
	ArtistCredit []artistCredit  `json:"artist-credit"`
	Releases     []releaseResult `json:"releases"`
}

// releaseResult is a raw release attached to a recording result.
type releaseResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Country      string         `json:"country"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup *releaseGroup  `json:"release-group"`
}

// releaseGroup contains release type info.
type releaseGroup struct {
	ID             string   `json:"id"`
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}

// artistCredit represents an artist contribution.
type artistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		SortName string `json:"sort-name"`
	} `json:"artist"`
	JoinPhrase string `json:"joinphrase"`
}

// extractArtist extracts the artist name from artist credits.
func extractArtist(credits []artistCredit) string {
	if len(credits) == 0 {
		return ""
	}

	parts := make([]string, 0, len(credits))
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		parts = append(parts, name+c.JoinPhrase)
	}
	return strings.Join(parts, "")
}
