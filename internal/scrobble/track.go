// Package scrobble defines the core value types shared across the
// correction pipeline: immutable track snapshots from the scrobbling
// service and the edits proposed against them.
package scrobble

// Track is an immutable snapshot of a play record as reported by the
// scrobbling service. Timestamp is unix seconds; zero means the service
// did not report one (e.g. a now-playing entry).
type Track struct {
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	Playcount   int    `json:"playcount,omitempty"`
}

// Key identifies a track for deduplication purposes.
// Two plays of the same song at different times are distinct.
type Key struct {
	Artist    string
	Name      string
	Timestamp int64
}

// Key returns the track's dedup identity.
func (t Track) Key() Key {
	return Key{Artist: t.Artist, Name: t.Name, Timestamp: t.Timestamp}
}

// Edit is a proposed correction to a single scrobble. Original fields
// hold the values as currently recorded; the unprefixed fields hold the
// desired values. The timestamp is carried for identity only and is
// never changed by an edit.
type Edit struct {
	TrackNameOriginal   string `json:"track_name_original"`
	ArtistNameOriginal  string `json:"artist_name_original"`
	AlbumNameOriginal   string `json:"album_name_original,omitempty"`
	AlbumArtistOriginal string `json:"album_artist_name_original,omitempty"`

	TrackName   string `json:"track_name"`
	ArtistName  string `json:"artist_name"`
	AlbumName   string `json:"album_name,omitempty"`
	AlbumArtist string `json:"album_artist_name,omitempty"`

	Timestamp int64 `json:"timestamp,omitempty"`
}

// NewNoOpEdit builds an edit whose new values equal the track's current
// values. Rewrite rules mutate the new values from this baseline.
func NewNoOpEdit(t Track) Edit {
	albumArtist := t.AlbumArtist
	if albumArtist == "" {
		albumArtist = t.Artist
	}
	return Edit{
		TrackNameOriginal:   t.Name,
		ArtistNameOriginal:  t.Artist,
		AlbumNameOriginal:   t.Album,
		AlbumArtistOriginal: t.AlbumArtist,
		TrackName:           t.Name,
		ArtistName:          t.Artist,
		AlbumName:           t.Album,
		AlbumArtist:         albumArtist,
		Timestamp:           t.Timestamp,
	}
}

// IsNoOp reports whether the edit would leave every field unchanged.
func (e Edit) IsNoOp() bool {
	return e.TrackName == e.TrackNameOriginal &&
		e.ArtistName == e.ArtistNameOriginal &&
		e.AlbumName == e.AlbumNameOriginal &&
		(e.AlbumArtist == e.AlbumArtistOriginal ||
			(e.AlbumArtistOriginal == "" && e.AlbumArtist == e.ArtistNameOriginal))
}
