package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/musicbrainz"
	"github.com/llehouerou/scrubber/internal/scrobble"
)

// CanonicalProviderName identifies suggestions from the
// compilation-to-canonical provider.
const CanonicalProviderName = "canonical-release"

// CanonicalProvider suggests moving tracks scrobbled against a
// compilation album back to the canonical release the recording first
// appeared on.
type CanonicalProvider struct {
	lookup MetadataLookup
	logger *log.Logger
}

var _ Provider = (*CanonicalProvider)(nil)

// NewCanonicalProvider creates a canonicalization provider.
func NewCanonicalProvider(lookup MetadataLookup, logger *log.Logger) *CanonicalProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &CanonicalProvider{lookup: lookup, logger: logger}
}

func (p *CanonicalProvider) Name() string {
	return CanonicalProviderName
}

// AnalyzeTracks looks each track's recording up and, when the current
// album is a compilation, proposes the top-ranked canonical release
// instead. A lookup failure before any lookup has succeeded is treated
// as the metadata service being unreachable and aborts the batch; a
// failure after that only skips its own track.
func (p *CanonicalProvider) AnalyzeTracks(ctx context.Context, tracks []scrobble.Track, opts Options) (map[int][]Suggestion, error) {
	results := make(map[int][]Suggestion)
	succeeded := false

	for i, track := range tracks {
		if track.Album == "" {
			continue
		}

		suggestion, err := p.analyzeTrack(ctx, track)
		if err != nil {
			if !succeeded {
				return nil, fmt.Errorf("metadata lookup unavailable: %w", err)
			}
			p.logger.Warn("canonical lookup failed, skipping track",
				"track", track.Name, "artist", track.Artist, "err", err)
			continue
		}
		succeeded = true
		if suggestion == nil {
			continue
		}
		if pendingEditExists(opts, *suggestion.Edit) {
			continue
		}
		results[i] = append(results[i], *suggestion)
	}

	return results, nil
}

func (p *CanonicalProvider) analyzeTrack(ctx context.Context, track scrobble.Track) (*Suggestion, error) {
	recordings, err := p.lookup.SearchRecordings(ctx, track.Artist, track.Name)
	if err != nil {
		return nil, err
	}

	releases := collectReleases(recordings, track)
	if len(releases) == 0 {
		return nil, nil
	}

	current, found := findRelease(releases, track.Album)
	if !found || !musicbrainz.IsCompilation(current) {
		// Only tracks sitting on a compilation get moved.
		return nil, nil
	}

	ranked := musicbrainz.RankCanonical(releases)
	if len(ranked) == 0 {
		return nil, nil
	}
	canonical := ranked[0]
	if strings.EqualFold(canonical.Title, track.Album) {
		return nil, nil
	}

	edit := scrobble.NewNoOpEdit(track)
	edit.AlbumName = canonical.Title
	edit.AlbumArtist = canonical.Artist

	return &Suggestion{
		Edit:     &edit,
		Provider: CanonicalProviderName,
		Reason: fmt.Sprintf("%q is a compilation; canonical release is %q (%s)",
			track.Album, canonical.Title, canonical.Date),
		RequiresConfirmation: true,
	}, nil
}

// collectReleases gathers the releases of recordings matching the
// track's title and artist.
func collectReleases(recordings []musicbrainz.Recording, track scrobble.Track) []musicbrainz.Release {
	var releases []musicbrainz.Release
	for _, rec := range recordings {
		if !strings.EqualFold(rec.Title, track.Name) {
			continue
		}
		if !artistMatches(rec.Artist, track.Artist) {
			continue
		}
		releases = append(releases, rec.Releases...)
	}
	return releases
}

func findRelease(releases []musicbrainz.Release, title string) (musicbrainz.Release, bool) {
	for _, r := range releases {
		if strings.EqualFold(r.Title, title) {
			return r, true
		}
	}
	return musicbrainz.Release{}, false
}

// artistMatches compares credited artists loosely: featuring credits
// on either side must not break the match.
func artistMatches(credited, target string) bool {
	if strings.EqualFold(credited, target) {
		return true
	}
	c := strings.ToLower(credited)
	t := strings.ToLower(target)
	return strings.Contains(c, t) || strings.Contains(t, c)
}
